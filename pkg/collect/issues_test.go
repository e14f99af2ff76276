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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/techdigest/pkg/digest"
	"github.com/kraklabs/techdigest/pkg/github"
	"github.com/kraklabs/techdigest/pkg/resolve"
)

// notableIssuesMux serves four updated issues: one notable by engagement,
// one quiet, one labeled PR, and one stale leftover the server should not
// have returned but sometimes does.
func notableIssuesMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget/issues", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"number":7,"title":"Cache misses too often","state":"open","comments":5,
			 "html_url":"https://github.com/acme/widget/issues/7",
			 "body":"The cache misses on every second call.",
			 "reactions":{"total_count":0},
			 "updated_at":"2026-02-14T09:30:00Z"},
			{"number":8,"title":"Typo in README","state":"open","comments":1,
			 "html_url":"https://github.com/acme/widget/issues/8",
			 "body":"Small typo.",
			 "reactions":{"total_count":1},
			 "updated_at":"2026-02-13T09:00:00Z"},
			{"number":9,"title":"Drop the legacy v1 endpoints","state":"open","comments":0,
			 "html_url":"https://github.com/acme/widget/pull/9",
			 "body":"Removes the deprecated surface.",
			 "labels":[{"name":"breaking-change"}],
			 "reactions":{"total_count":0},
			 "updated_at":"2026-02-12T15:00:00Z",
			 "pull_request":{"url":"https://api.github.com/repos/acme/widget/pulls/9"}},
			{"number":10,"title":"Old discussion","state":"closed","comments":9,
			 "html_url":"https://github.com/acme/widget/issues/10",
			 "body":"Long settled.",
			 "reactions":{"total_count":4},
			 "updated_at":"2026-01-15T12:00:00Z"}
		]`)
	})
	mux.HandleFunc("/repos/acme/widget/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"body":"Repro confirmed on 4.2","user":{"login":"alice"},"created_at":"2026-02-10T08:00:00Z"},
			{"body":"Same here","user":{"login":"bob"},"created_at":"2026-02-10T09:00:00Z"},
			{"body":"Bisected to the LRU change","user":{"login":"carol"},"created_at":"2026-02-11T10:00:00Z"},
			{"body":"Patch incoming","user":{"login":"dave"},"created_at":"2026-02-12T11:00:00Z"},
			{"body":"Fixed on main","user":{"login":"dave"},"created_at":"2026-02-14T09:00:00Z"}
		]`)
	})
	mux.HandleFunc("/repos/acme/widget/pulls/9", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number":9,"title":"Drop the legacy v1 endpoints","state":"open","merged":false,
			"html_url":"https://github.com/acme/widget/pull/9",
			"commits":2,"additions":10,"deletions":50,"changed_files":1,
			"base":{"ref":"main"},"head":{"ref":"drop-v1"}}`)
	})
	mux.HandleFunc("/repos/acme/widget/pulls/9/files", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"filename":"lib/api.rb","additions":10,"deletions":50}]`)
	})
	return mux
}

func newIssuesCollector(t *testing.T, counter *pathCounter) *IssuesCollector {
	t.Helper()
	resolver, _ := newTestStack(t, "tok", counter.wrap(notableIssuesMux()))
	return NewIssuesCollector(IssuesConfig{
		Repos:       []digest.RepoRef{widgetRepo},
		Cutoff:      mustTime(t, "2026-02-05T00:00:00Z"),
		RepoThreads: 1,
	}, resolver, resolve.NewPRContextBuilder(resolver, true), testLogger())
}

func TestIssuesCollectorNotableByEngagement(t *testing.T) {
	counter := newPathCounter()
	c := newIssuesCollector(t, counter)

	items, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2, "quiet and stale issues are dropped")

	item := items[0]
	assert.Equal(t, "[Issue] Cache misses too often", item.Title)
	assert.Equal(t, "https://github.com/acme/widget/issues/7", item.URL)
	assert.Equal(t, "GitHub Issues", item.Source)
	assert.Equal(t, mustTime(t, "2026-02-14T09:30:00Z"), item.PublishedAt)

	assert.True(t, strings.HasPrefix(item.Body,
		"State: open | Comments: 5 | Reactions: 0 | Updated: 2026-02-14"),
		"body starts with the state header, got %q", item.Body)
	assert.Contains(t, item.Body, "\nDescription:\nThe cache misses on every second call.")
	assert.Contains(t, item.Body, "\nComments (5):\n")
	assert.Contains(t, item.Body, "- alice (2026-02-10): Repro confirmed on 4.2")
	assert.Contains(t, item.Body, "- dave (2026-02-14): Fixed on main")
}

func TestIssuesCollectorPRGetsCompareContext(t *testing.T) {
	counter := newPathCounter()
	c := newIssuesCollector(t, counter)

	items, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	item := items[1]
	assert.Equal(t, "[PR] Drop the legacy v1 endpoints", item.Title)
	assert.Contains(t, item.Body, "PR Compare:")
	assert.Contains(t, item.Body, "PR #9: Drop the legacy v1 endpoints")
	assert.Contains(t, item.Body, "Stats: files=1, commits=2, +10/-50")
	assert.Contains(t, item.Body, "- [backend] lib/api.rb (+10/-50)")

	// Zero recorded comments means no comments fetch at all.
	assert.Zero(t, counter.get("/repos/acme/widget/issues/9/comments"))
}

func TestIssuesCollectorSkipsQuietAndStale(t *testing.T) {
	counter := newPathCounter()
	c := newIssuesCollector(t, counter)

	items, err := c.Collect(context.Background())
	require.NoError(t, err)
	for _, item := range items {
		assert.NotContains(t, item.URL, "/issues/8", "score 2 stays below the bar")
		assert.NotContains(t, item.URL, "/issues/10", "stale update is re-filtered client side")
	}
}

func TestIssuesCollectorRepoFailureDegrades(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget/issues", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	resolver, _ := newTestStack(t, "tok", mux)

	c := NewIssuesCollector(IssuesConfig{
		Repos:       []digest.RepoRef{widgetRepo},
		Cutoff:      mustTime(t, "2026-02-05T00:00:00Z"),
		RepoThreads: 1,
	}, resolver, resolve.NewPRContextBuilder(resolver, false), testLogger())

	items, err := c.Collect(context.Background())
	require.NoError(t, err, "per-repo failures are logged, not returned")
	assert.Empty(t, items)
}

func TestIsNotable(t *testing.T) {
	tests := []struct {
		name  string
		issue github.Issue
		want  bool
	}{
		{
			name:  "engagement at threshold",
			issue: github.Issue{Comments: 2, Reactions: github.Reactions{TotalCount: 1}},
			want:  true,
		},
		{
			name:  "engagement below threshold",
			issue: github.Issue{Comments: 2},
			want:  false,
		},
		{
			name:  "security label fragment",
			issue: github.Issue{Labels: []github.Label{{Name: "Security Audit"}}},
			want:  true,
		},
		{
			name:  "release fragment inside larger label",
			issue: github.Issue{Labels: []github.Label{{Name: "pre-release"}}},
			want:  true,
		},
		{
			name:  "unrelated label",
			issue: github.Issue{Labels: []github.Label{{Name: "design"}}},
			want:  false,
		},
		{
			name:  "no signals at all",
			issue: github.Issue{},
			want:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotable(&tt.issue))
		})
	}
}
