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

// Package digest defines the core data model of the weekly technology
// digest: collected items, category and source configuration, runtime
// settings, and the per-run cutoff computation.
package digest

import (
	"fmt"
	"time"
)

// Item is one digest entry produced by a collector. Items are immutable
// after emission and flow unchanged to summarization.
type Item struct {
	Title       string
	URL         string
	PublishedAt time.Time
	Body        string
	Source      string
}

// Valid reports whether the item satisfies the emission invariants:
// non-empty title and URL and a publication instant at or after cutoff.
func (it Item) Valid(cutoff time.Time) bool {
	return it.Title != "" && it.URL != "" && !it.PublishedAt.Before(cutoff)
}

// Category is a top-level grouping of sources with an independent
// configuration and a stable output ordering.
type Category string

const (
	CategoryFrontend Category = "frontend"
	CategoryBackend  Category = "backend"
	CategoryDevOps   Category = "devops"
)

// Categories returns all categories in their fixed output order.
func Categories() []Category {
	return []Category{CategoryFrontend, CategoryBackend, CategoryDevOps}
}

// ParseCategory validates a user-supplied category name.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryFrontend, CategoryBackend, CategoryDevOps:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category %q (expected frontend, backend, or devops)", s)
}

// ReleaseStrategy controls how the release collector picks candidates for a
// repository.
type ReleaseStrategy string

const (
	// StrategyAuto uses releases and falls back to tags when none exist.
	StrategyAuto ReleaseStrategy = "auto"
	// StrategyReleasesOnly never consults the tag list.
	StrategyReleasesOnly ReleaseStrategy = "releases_only"
	// StrategyTagsOnly skips the releases list entirely.
	StrategyTagsOnly ReleaseStrategy = "tags_only"
)

// ParseReleaseStrategy validates a strategy string; empty means auto.
func ParseReleaseStrategy(s string) (ReleaseStrategy, error) {
	switch ReleaseStrategy(s) {
	case "":
		return StrategyAuto, nil
	case StrategyAuto, StrategyReleasesOnly, StrategyTagsOnly:
		return ReleaseStrategy(s), nil
	}
	return "", fmt.Errorf("unknown release_strategy %q (expected auto, releases_only, or tags_only)", s)
}

// RepoRef identifies a GitHub repository tracked by the release and issue
// collectors.
type RepoRef struct {
	Owner             string
	Name              string
	DisplayName       string
	ReleaseStrategy   ReleaseStrategy
	ReleaseNotesFiles []string
}

// FullName returns the owner/name form used in API paths and log lines.
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// FeedRef identifies an RSS or Atom feed tracked by the feed collector.
type FeedRef struct {
	URL         string
	DisplayName string
}

// RegistryKind names a supported package registry.
type RegistryKind string

const (
	RegistryNPM      RegistryKind = "npm"
	RegistryRubyGems RegistryKind = "rubygems"
	RegistryPyPI     RegistryKind = "pypi"
)

// ParseRegistryKind validates a registry type string.
func ParseRegistryKind(s string) (RegistryKind, error) {
	switch RegistryKind(s) {
	case RegistryNPM, RegistryRubyGems, RegistryPyPI:
		return RegistryKind(s), nil
	}
	return "", fmt.Errorf("unknown registry type %q (expected npm, rubygems, or pypi)", s)
}

// RegistryRef identifies one package watched on a registry.
type RegistryRef struct {
	Kind RegistryKind
	Name string
}
