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

package collect

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/kraklabs/techdigest/pkg/digest"
	"github.com/kraklabs/techdigest/pkg/resolve"
	"github.com/kraklabs/techdigest/pkg/text"
)

const (
	releaseSourceLabel = "GitHub Releases"

	changelogExcerptChars = 2500
	releaseBodyChars      = 6000
)

// defaultReleaseNotesFiles are probed for a changelog excerpt when the repo
// config does not name its own files.
var defaultReleaseNotesFiles = []string{
	"CHANGELOG.md",
	"CHANGES.md",
	"Changes.md",
	"HISTORY.md",
	"RELEASE_NOTES.md",
}

// ReleaseConfig configures a ReleaseCollector for one category.
type ReleaseConfig struct {
	Repos       []digest.RepoRef
	Cutoff      time.Time
	DeepPRCrawl bool
	RepoThreads int
}

// ReleaseCollector emits at most one item per repository: the newest
// in-window release or tag, ranked by semantic version, enriched with a
// compare summary against the previous version, linked reference blocks and
// a changelog excerpt.
type ReleaseCollector struct {
	cfg      ReleaseConfig
	resolver *resolve.Resolver
	logger   *slog.Logger
}

// NewReleaseCollector builds the collector. A nil logger falls back to
// slog.Default().
func NewReleaseCollector(cfg ReleaseConfig, resolver *resolve.Resolver, logger *slog.Logger) *ReleaseCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReleaseCollector{cfg: cfg, resolver: resolver, logger: logger}
}

func (c *ReleaseCollector) Name() string { return "releases" }

// Collect walks the configured repos through the repo-level pool. A repo
// without a recent release contributes nothing; per-repo failures are
// logged and skipped.
func (c *ReleaseCollector) Collect(ctx context.Context) ([]digest.Item, error) {
	slots := make([]*digest.Item, len(c.cfg.Repos))
	runIndexed(ctx, c.cfg.RepoThreads, len(c.cfg.Repos), func(i int) {
		repo := c.cfg.Repos[i]
		item, err := c.collectRepo(ctx, repo)
		if err != nil {
			c.logger.Warn("collect.release.repo_failed",
				"repo", repo.FullName(), "error", err.Error())
			return
		}
		slots[i] = item
	})

	var items []digest.Item
	for _, item := range slots {
		if item != nil {
			items = append(items, *item)
		}
	}
	return items, nil
}

// releaseCandidate is one release or tag considered for the (current,
// previous) pair.
type releaseCandidate struct {
	Tag         string
	Body        string
	URL         string
	PublishedAt time.Time
	version     *semver.Version
}

func (c *ReleaseCollector) collectRepo(ctx context.Context, repo digest.RepoRef) (*digest.Item, error) {
	candidates, err := c.candidates(ctx, repo)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sortCandidates(candidates)

	// current is the best in-window candidate; previous is its neighbor
	// in the full ordering, which may itself predate the cutoff.
	currentIdx := -1
	for i, cand := range candidates {
		if !cand.PublishedAt.Before(c.cfg.Cutoff) {
			currentIdx = i
			break
		}
	}
	if currentIdx < 0 {
		return nil, nil
	}
	current := candidates[currentIdx]
	var previous *releaseCandidate
	if currentIdx+1 < len(candidates) {
		previous = &candidates[currentIdx+1]
	}

	item := &digest.Item{
		Title:       fmt.Sprintf("%s %s released", repo.DisplayName, current.Tag),
		URL:         current.URL,
		PublishedAt: current.PublishedAt,
		Body:        c.buildReleaseContext(ctx, repo, current, previous),
		Source:      releaseSourceLabel,
	}
	itemsCollected.WithLabelValues(c.Name()).Inc()
	return item, nil
}

// candidates assembles the release or tag pool according to the repo's
// strategy: releases, tags, or releases with a tag fallback.
func (c *ReleaseCollector) candidates(ctx context.Context, repo digest.RepoRef) ([]releaseCandidate, error) {
	strategy := repo.ReleaseStrategy
	if strategy == "" {
		strategy = digest.StrategyAuto
	}

	var candidates []releaseCandidate
	if strategy != digest.StrategyTagsOnly {
		releases, err := c.resolver.API().Releases(ctx, repo.Owner, repo.Name)
		if err != nil {
			return nil, err
		}
		for _, rel := range releases {
			if rel.Draft || rel.TagName == "" {
				continue
			}
			published := rel.PublishedAt
			if published.IsZero() {
				published = rel.CreatedAt
			}
			candidates = append(candidates, releaseCandidate{
				Tag:         rel.TagName,
				Body:        rel.Body,
				URL:         rel.HTMLURL,
				PublishedAt: published,
				version:     parseVersion(rel.TagName),
			})
		}
	}

	if strategy == digest.StrategyTagsOnly ||
		(strategy == digest.StrategyAuto && len(candidates) == 0) {
		tagCands, err := c.tagCandidates(ctx, repo)
		if err != nil {
			return nil, err
		}
		candidates = tagCands
	}
	return candidates, nil
}

// tagCandidates dates each tag through the cached commit endpoint and
// shapes it like a release. Tags without a resolvable commit are skipped.
func (c *ReleaseCollector) tagCandidates(ctx context.Context, repo digest.RepoRef) ([]releaseCandidate, error) {
	tags, err := c.resolver.API().Tags(ctx, repo.Owner, repo.Name)
	if err != nil {
		return nil, err
	}

	var candidates []releaseCandidate
	for _, tag := range tags {
		if ctx.Err() != nil {
			break
		}
		commit, err := c.resolver.API().Commit(ctx, repo.Owner, repo.Name, tag.Commit.SHA)
		if err != nil {
			c.logger.Warn("collect.release.tag_commit_failed",
				"repo", repo.FullName(), "tag", tag.Name, "error", err.Error())
			continue
		}
		if commit == nil {
			continue
		}
		candidates = append(candidates, releaseCandidate{
			Tag:         tag.Name,
			URL:         fmt.Sprintf("https://github.com/%s/%s/tree/%s", repo.Owner, repo.Name, tag.Name),
			PublishedAt: commit.Commit.Committer.Date,
			version:     parseVersion(tag.Name),
		})
	}
	return candidates, nil
}

// buildReleaseContext assembles the enriched body: release notes, compare
// summary, linked reference blocks when deep crawl is on, and a changelog
// excerpt. The result is capped at 6,000 characters.
func (c *ReleaseCollector) buildReleaseContext(ctx context.Context, repo digest.RepoRef, current releaseCandidate, previous *releaseCandidate) string {
	var parts []string
	if body := strings.TrimSpace(current.Body); body != "" {
		parts = append(parts, body)
	}

	if previous != nil {
		if summary := c.resolver.CompareSummary(ctx, repo, previous.Tag, current.Tag); summary != "" {
			parts = append(parts, summary)
		}
	}

	if c.cfg.DeepPRCrawl {
		combined := strings.Join(parts, "\n\n")
		if blocks := c.resolver.LinkedReferenceBlocks(ctx, repo, combined); blocks != "" {
			parts = append(parts, blocks)
		}
	}

	if excerpt := c.changelogExcerpt(ctx, repo, current.Tag); excerpt != "" {
		parts = append(parts, excerpt)
	}

	return text.Truncate(strings.Join(parts, "\n\n"), releaseBodyChars)
}

// changelogExcerpt probes the configured (or default) release-notes files
// and extracts the section describing tag from the first file that has one.
func (c *ReleaseCollector) changelogExcerpt(ctx context.Context, repo digest.RepoRef, tag string) string {
	paths := repo.ReleaseNotesFiles
	if len(paths) == 0 {
		paths = defaultReleaseNotesFiles
	}
	for _, path := range paths {
		if ctx.Err() != nil {
			return ""
		}
		content, err := c.resolver.API().FileContent(ctx, repo.Owner, repo.Name, path)
		if err != nil {
			c.logger.Warn("collect.release.changelog_failed",
				"repo", repo.FullName(), "path", path, "error", err.Error())
			continue
		}
		if content == "" {
			continue
		}
		section := text.ChangelogSection(content, tag)
		if section == "" {
			continue
		}
		return fmt.Sprintf("Changelog (%s):\n%s",
			path, text.Truncate(section, changelogExcerptChars))
	}
	return ""
}

// sortCandidates orders by semantic version descending with publication
// time as the tie break. Invalid versions sort last, newest first among
// themselves.
func sortCandidates(candidates []releaseCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		vi, vj := candidates[i].version, candidates[j].version
		switch {
		case vi != nil && vj != nil:
			if cmp := vi.Compare(vj); cmp != 0 {
				return cmp > 0
			}
			return candidates[i].PublishedAt.After(candidates[j].PublishedAt)
		case vi != nil:
			return true
		case vj != nil:
			return false
		default:
			if !candidates[i].PublishedAt.Equal(candidates[j].PublishedAt) {
				return candidates[i].PublishedAt.After(candidates[j].PublishedAt)
			}
			return candidates[i].Tag < candidates[j].Tag
		}
	})
}

func parseVersion(tag string) *semver.Version {
	v, err := semver.NewVersion(strings.TrimSpace(tag))
	if err != nil {
		return nil
	}
	return v
}
