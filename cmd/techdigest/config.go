// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kraklabs/techdigest/internal/errors"
)

const (
	defaultSourcesFile = "digest.yaml"
	sourcesPathEnv     = "TECHDIGEST_CONFIG"
)

// resolveSourcesPath picks the sources file for this invocation.
//
// The resolution order:
//  1. The --config flag, when set, is used as-is
//  2. TECHDIGEST_CONFIG, when set, must point at an existing file
//  3. digest.yaml in the current directory or any parent directory
//
// Returns the path to the sources file, or a UserError if none is found.
func resolveSourcesPath(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}

	if envPath := os.Getenv(sourcesPathEnv); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
		return "", errors.NewConfigError(
			"Sources file not found",
			fmt.Sprintf("%s is set to '%s' but the file does not exist", sourcesPathEnv, envPath),
			fmt.Sprintf("Fix the %s environment variable or run 'techdigest init' to create a sources file", sourcesPathEnv),
			nil,
		)
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", errors.NewInternalError(
			"Cannot access working directory",
			"Failed to determine current directory path",
			"Check system permissions and try again",
			err,
		)
	}

	for {
		candidate := filepath.Join(dir, defaultSourcesFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return "", errors.NewConfigError(
		"Sources file not found",
		fmt.Sprintf("No %s found in the current directory or any parent directory", defaultSourcesFile),
		"Run 'techdigest init' to create a starter sources file",
		nil,
	)
}

// defaultSourcesYAML is the scaffold written by 'techdigest init'. It tracks
// a handful of well-known projects per category so a fresh install produces
// a non-empty digest before any editing.
const defaultSourcesYAML = `# techdigest source configuration.
#
# Three categories are collected each run: frontend, backend, devops.
# Every list is optional. Replace the starter entries with your own.
#
# Per-repo options:
#   release_strategy:     auto (default), releases_only, or tags_only
#   release_notes_files:  changelog paths to excerpt, tried in order
version: 1

categories:
  frontend:
    repos:
      - repo: facebook/react
        display_name: React
      - repo: vuejs/core
        display_name: Vue
      - repo: angular/angular
        display_name: Angular
    feeds:
      - url: https://github.blog/changelog/feed/
        display_name: GitHub Changelog
    registries:
      - type: npm
        name: react
      - type: npm
        name: vue
    advisories:
      - npm

  backend:
    repos:
      - repo: golang/go
        display_name: Go
        release_strategy: tags_only
      - repo: rails/rails
        display_name: Ruby on Rails
      - repo: django/django
        display_name: Django
        release_strategy: tags_only
    feeds:
      - url: https://go.dev/blog/feed.atom
        display_name: The Go Blog
    registries:
      - type: rubygems
        name: rails
      - type: pypi
        name: django
    advisories:
      - go
      - rubygems
      - pip

  devops:
    repos:
      - repo: kubernetes/kubernetes
        display_name: Kubernetes
      - repo: hashicorp/terraform
        display_name: Terraform
        release_notes_files:
          - CHANGELOG.md
    feeds:
      - url: https://kubernetes.io/feed.xml
        display_name: Kubernetes Blog
    advisories:
      - actions
`
