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

package digest

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/techdigest/internal/errors"
)

const sourcesVersion = 1

// Ecosystems accepted by the GitHub advisory database.
var advisoryEcosystems = map[string]bool{
	"actions": true, "composer": true, "erlang": true, "go": true,
	"maven": true, "npm": true, "nuget": true, "pip": true,
	"pub": true, "rubygems": true, "rust": true, "swift": true,
}

// Sources is the validated source configuration document grouping repos,
// feeds, registry packages, and advisory ecosystems by category.
type Sources struct {
	Version    int
	Categories map[Category]CategorySources
}

// CategorySources holds the sources configured for one category.
type CategorySources struct {
	Repos      []RepoRef
	Feeds      []FeedRef
	Registries []RegistryRef
	Advisories []string
}

// Category returns the sources for c; missing categories yield an empty set.
func (s *Sources) Category(c Category) CategorySources {
	return s.Categories[c]
}

// Wire shapes. Decoding is strict: unknown keys anywhere in the document are
// rejected so that a misspelled per-repo option fails loudly at load time.
type sourcesYAML struct {
	Version    int                     `yaml:"version"`
	Categories map[string]categoryYAML `yaml:"categories"`
}

type categoryYAML struct {
	Repos      []repoYAML     `yaml:"repos"`
	Feeds      []feedYAML     `yaml:"feeds"`
	Registries []registryYAML `yaml:"registries"`
	Advisories []string       `yaml:"advisories"`
}

type repoYAML struct {
	Repo              string   `yaml:"repo"`
	DisplayName       string   `yaml:"display_name"`
	ReleaseStrategy   string   `yaml:"release_strategy"`
	ReleaseNotesFiles []string `yaml:"release_notes_files"`
}

type feedYAML struct {
	URL         string `yaml:"url"`
	DisplayName string `yaml:"display_name"`
}

type registryYAML struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`
}

// LoadSources reads and validates the sources YAML document at path.
func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from user config or discovery
	if err != nil {
		return nil, errors.NewConfigError(
			"Cannot read sources file",
			fmt.Sprintf("Failed to read %s", path),
			"Check the path and file permissions, or run 'techdigest init' to create one",
			err,
		)
	}
	return ParseSources(data, path)
}

// ParseSources decodes and validates a sources document. The path is used
// only for error messages.
func ParseSources(data []byte, path string) (*Sources, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw sourcesYAML
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.NewConfigError(
			"Invalid sources format",
			fmt.Sprintf("YAML parsing of %s failed", path),
			"Fix the syntax error or unknown key, or run 'techdigest init --force' to recreate",
			err,
		)
	}

	if raw.Version != sourcesVersion {
		return nil, errors.NewConfigError(
			"Unsupported sources version",
			fmt.Sprintf("Sources version %d is not supported (expected %d)", raw.Version, sourcesVersion),
			"Run 'techdigest init --force' to regenerate the sources file",
			nil,
		)
	}

	out := &Sources{
		Version:    raw.Version,
		Categories: make(map[Category]CategorySources, len(raw.Categories)),
	}

	for name, rawCat := range raw.Categories {
		cat, err := ParseCategory(name)
		if err != nil {
			return nil, configError(fmt.Sprintf("categories.%s", name), err)
		}

		var cs CategorySources

		for i, r := range rawCat.Repos {
			ref, err := parseRepoRef(r)
			if err != nil {
				return nil, configError(fmt.Sprintf("categories.%s.repos[%d]", name, i), err)
			}
			cs.Repos = append(cs.Repos, ref)
		}

		for i, f := range rawCat.Feeds {
			if !strings.HasPrefix(f.URL, "http://") && !strings.HasPrefix(f.URL, "https://") {
				return nil, configError(
					fmt.Sprintf("categories.%s.feeds[%d]", name, i),
					fmt.Errorf("feed url %q must start with http:// or https://", f.URL),
				)
			}
			display := f.DisplayName
			if display == "" {
				display = f.URL
			}
			cs.Feeds = append(cs.Feeds, FeedRef{URL: f.URL, DisplayName: display})
		}

		for i, r := range rawCat.Registries {
			kind, err := ParseRegistryKind(r.Type)
			if err != nil {
				return nil, configError(fmt.Sprintf("categories.%s.registries[%d]", name, i), err)
			}
			if r.Name == "" {
				return nil, configError(
					fmt.Sprintf("categories.%s.registries[%d]", name, i),
					fmt.Errorf("registry entry needs a package name"),
				)
			}
			cs.Registries = append(cs.Registries, RegistryRef{Kind: kind, Name: r.Name})
		}

		for i, eco := range rawCat.Advisories {
			if !advisoryEcosystems[eco] {
				return nil, configError(
					fmt.Sprintf("categories.%s.advisories[%d]", name, i),
					fmt.Errorf("unknown advisory ecosystem %q", eco),
				)
			}
			cs.Advisories = append(cs.Advisories, eco)
		}

		out.Categories[cat] = cs
	}

	return out, nil
}

func parseRepoRef(r repoYAML) (RepoRef, error) {
	owner, repo, ok := strings.Cut(r.Repo, "/")
	if !ok || owner == "" || repo == "" {
		return RepoRef{}, fmt.Errorf("repo %q must be in owner/name form", r.Repo)
	}
	strategy, err := ParseReleaseStrategy(r.ReleaseStrategy)
	if err != nil {
		return RepoRef{}, err
	}
	display := r.DisplayName
	if display == "" {
		display = repo
	}
	return RepoRef{
		Owner:             owner,
		Name:              repo,
		DisplayName:       display,
		ReleaseStrategy:   strategy,
		ReleaseNotesFiles: r.ReleaseNotesFiles,
	}, nil
}

func configError(where string, err error) error {
	return errors.NewConfigError(
		"Invalid sources entry",
		fmt.Sprintf("%s: %v", where, err),
		"Fix the entry in the sources file",
		nil,
	)
}
