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
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/techdigest/pkg/digest"
)

// releasePairMux serves the two-release fixture: v1.2.0 inside the window
// with a reference-bearing body, v1.1.0 before it.
func releasePairMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget/releases", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"tag_name":"v1.2.0","name":"v1.2.0","draft":false,
			 "html_url":"https://github.com/acme/widget/releases/tag/v1.2.0",
			 "published_at":"2026-02-15T08:00:00Z",
			 "body":"fixes [#42] and closes #43"},
			{"tag_name":"v1.1.0","name":"v1.1.0","draft":false,
			 "html_url":"https://github.com/acme/widget/releases/tag/v1.1.0",
			 "published_at":"2026-02-01T08:00:00Z",
			 "body":"older release"}
		]`)
	})
	mux.HandleFunc("/repos/acme/widget/compare/v1.1.0...v1.2.0", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"html_url":"https://github.com/acme/widget/compare/v1.1.0...v1.2.0",
			"total_commits":4,
			"files":[{"filename":"src/core.go","additions":30,"deletions":10}]}`)
	})
	mux.HandleFunc("/repos/acme/widget/issues/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number":42,"title":"speed up compare fetch","state":"closed","comments":0,
			"html_url":"https://github.com/acme/widget/pull/42",
			"body":"makes compare twice as fast",
			"updated_at":"2026-02-14T10:00:00Z",
			"pull_request":{"url":"https://api.github.com/repos/acme/widget/pulls/42"}}`)
	})
	mux.HandleFunc("/repos/acme/widget/issues/43", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number":43,"title":"crash when tags are empty","state":"open","comments":0,
			"html_url":"https://github.com/acme/widget/issues/43",
			"body":"panics on empty tag list",
			"updated_at":"2026-02-13T08:00:00Z"}`)
	})
	mux.HandleFunc("/repos/acme/widget/pulls/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number":42,"title":"speed up compare fetch","state":"closed","merged":true,
			"html_url":"https://github.com/acme/widget/pull/42",
			"commits":3,"additions":120,"deletions":40,"changed_files":1,
			"base":{"ref":"main"},"head":{"ref":"fast-compare"}}`)
	})
	mux.HandleFunc("/repos/acme/widget/pulls/42/files", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"filename":"src/compare.go","additions":120,"deletions":40}]`)
	})
	mux.HandleFunc("/repos/acme/widget/contents/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/CHANGELOG.md") {
			fmt.Fprint(w, contentsJSON("# Changelog\n\n## v1.2.0\n\n- faster compares\n\n## v1.1.0\n\n- older\n"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	return mux
}

func TestReleaseCollectorPairWithReferences(t *testing.T) {
	counter := newPathCounter()
	resolver, _ := newTestStack(t, "tok", counter.wrap(releasePairMux()))

	cutoff := mustTime(t, "2026-02-05T00:00:00Z")
	c := NewReleaseCollector(ReleaseConfig{
		Repos:       []digest.RepoRef{widgetRepo},
		Cutoff:      cutoff,
		DeepPRCrawl: true,
		RepoThreads: 1,
	}, resolver, testLogger())

	items, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "Widget v1.2.0 released", item.Title)
	assert.Equal(t, "https://github.com/acme/widget/releases/tag/v1.2.0", item.URL)
	assert.Equal(t, "GitHub Releases", item.Source)
	assert.Equal(t, mustTime(t, "2026-02-15T08:00:00Z"), item.PublishedAt)

	// Previous is v1.1.0 even though it predates the cutoff.
	assert.Contains(t, item.Body, "Compare: v1.1.0...v1.2.0")
	assert.Contains(t, item.Body, "Linked PR/Issue references:")
	assert.Contains(t, item.Body, "[PR #42] speed up compare fetch")
	assert.Contains(t, item.Body, "[Issue #43] crash when tags are empty")
	// Exactly two Stats lines: the compare summary and the #42 PR block.
	// The plain issue #43 must not grow one.
	assert.Equal(t, 2, strings.Count(item.Body, "Stats:"))
	assert.Contains(t, item.Body, "Changelog (CHANGELOG.md):")
	assert.Contains(t, item.Body, "- faster compares")
	assert.NotContains(t, item.Body, "- older\n", "changelog capture stops at the next version heading")

	// Second run: every reference lookup is served from the run cache.
	before42 := counter.get("/repos/acme/widget/issues/42")
	_, err = c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before42, counter.get("/repos/acme/widget/issues/42"),
		"cached reference must not be refetched")
	assert.Equal(t, 1, counter.get("/repos/acme/widget/releases"),
		"releases list fetched once per run cache")
}

// tagsFallbackMux serves a repo with no releases and two dated tags.
func tagsFallbackMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget/releases", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/repos/acme/widget/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"name":"v2.1.0","commit":{"sha":"aaa111"}},
			{"name":"v2.0.0","commit":{"sha":"bbb222"}}
		]`)
	})
	mux.HandleFunc("/repos/acme/widget/commits/aaa111", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sha":"aaa111","commit":{"committer":{"date":"2026-02-10T12:00:00Z"}}}`)
	})
	mux.HandleFunc("/repos/acme/widget/commits/bbb222", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sha":"bbb222","commit":{"committer":{"date":"2026-01-20T12:00:00Z"}}}`)
	})
	mux.HandleFunc("/repos/acme/widget/compare/v2.0.0...v2.1.0", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"html_url":"https://github.com/acme/widget/compare/v2.0.0...v2.1.0","total_commits":2}`)
	})
	mux.HandleFunc("/repos/acme/widget/contents/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return mux
}

func TestReleaseCollectorTagsFallback(t *testing.T) {
	resolver, _ := newTestStack(t, "tok", tagsFallbackMux())

	cutoff := mustTime(t, "2026-02-01T00:00:00Z")
	c := NewReleaseCollector(ReleaseConfig{
		Repos:       []digest.RepoRef{widgetRepo},
		Cutoff:      cutoff,
		RepoThreads: 1,
	}, resolver, testLogger())

	items, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "Widget v2.1.0 released", item.Title)
	assert.Equal(t, "https://github.com/acme/widget/tree/v2.1.0", item.URL)
	assert.Equal(t, mustTime(t, "2026-02-10T12:00:00Z"), item.PublishedAt)
	// v2.0.0 predates the cutoff but still serves as the previous tag.
	assert.Contains(t, item.Body, "Compare: v2.0.0...v2.1.0")
}

func TestReleaseCollectorEmptyRepoYieldsNothing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget/releases", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/repos/acme/widget/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	resolver, _ := newTestStack(t, "tok", mux)

	c := NewReleaseCollector(ReleaseConfig{
		Repos:       []digest.RepoRef{widgetRepo},
		Cutoff:      mustTime(t, "2026-02-01T00:00:00Z"),
		RepoThreads: 1,
	}, resolver, testLogger())

	items, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReleaseCollectorReleasesOnlyNeverFallsBack(t *testing.T) {
	counter := newPathCounter()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget/releases", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/repos/acme/widget/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name":"v9.9.9","commit":{"sha":"zzz"}}]`)
	})
	resolver, _ := newTestStack(t, "tok", counter.wrap(mux))

	repo := widgetRepo
	repo.ReleaseStrategy = digest.StrategyReleasesOnly
	c := NewReleaseCollector(ReleaseConfig{
		Repos:       []digest.RepoRef{repo},
		Cutoff:      mustTime(t, "2026-02-01T00:00:00Z"),
		RepoThreads: 1,
	}, resolver, testLogger())

	items, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, counter.get("/repos/acme/widget/tags"))
}

func TestReleaseCollectorStaleWindowYieldsNothing(t *testing.T) {
	resolver, _ := newTestStack(t, "tok", tagsFallbackMux())

	// Cutoff after every tag date: nothing qualifies.
	c := NewReleaseCollector(ReleaseConfig{
		Repos:       []digest.RepoRef{widgetRepo},
		Cutoff:      mustTime(t, "2026-03-01T00:00:00Z"),
		RepoThreads: 1,
	}, resolver, testLogger())

	items, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSortCandidates(t *testing.T) {
	at := func(s string) time.Time { return mustTime(t, s) }
	candidates := []releaseCandidate{
		{Tag: "nightly", PublishedAt: at("2026-02-20T00:00:00Z"), version: parseVersion("nightly")},
		{Tag: "v1.9.0", PublishedAt: at("2026-01-10T00:00:00Z"), version: parseVersion("v1.9.0")},
		{Tag: "v1.10.0", PublishedAt: at("2026-02-12T00:00:00Z"), version: parseVersion("v1.10.0")},
		{Tag: "v1.10.0-rc.1", PublishedAt: at("2026-02-05T00:00:00Z"), version: parseVersion("v1.10.0-rc.1")},
	}
	sortCandidates(candidates)

	var order []string
	for _, c := range candidates {
		order = append(order, c.Tag)
	}
	// Numeric semver ordering (1.10 > 1.9), prereleases below their
	// release, invalid tags last regardless of recency.
	assert.Equal(t, []string{"v1.10.0", "v1.10.0-rc.1", "v1.9.0", "nightly"}, order)
}

func TestSortCandidatesTieBreaksOnTime(t *testing.T) {
	at := func(s string) time.Time { return mustTime(t, s) }
	candidates := []releaseCandidate{
		{Tag: "1.2.0", PublishedAt: at("2026-02-01T00:00:00Z"), version: parseVersion("1.2.0")},
		{Tag: "v1.2.0", PublishedAt: at("2026-02-03T00:00:00Z"), version: parseVersion("v1.2.0")},
	}
	sortCandidates(candidates)
	assert.Equal(t, "v1.2.0", candidates[0].Tag, "newer publication wins the version tie")
}
