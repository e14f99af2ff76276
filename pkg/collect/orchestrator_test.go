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
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/techdigest/pkg/digest"
	"github.com/kraklabs/techdigest/pkg/github"
	"github.com/kraklabs/techdigest/pkg/runcache"
)

// stubCollector is a canned source job with an optional artificial delay to
// scramble parallel completion order.
type stubCollector struct {
	name  string
	items []digest.Item
	err   error
	delay time.Duration
}

func (s *stubCollector) Name() string { return s.name }

func (s *stubCollector) Collect(ctx context.Context) ([]digest.Item, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.items, s.err
}

func jitteredJobs(t *testing.T) []Collector {
	t.Helper()
	at := mustTime(t, "2026-02-10T00:00:00Z")
	return []Collector{
		&stubCollector{name: "releases", delay: 30 * time.Millisecond, items: []digest.Item{
			{Title: "Widget v1.0.0 released", URL: "https://github.com/acme/widget/releases/tag/v1.0.0",
				Source: "GitHub Releases", Body: "notes", PublishedAt: at},
		}},
		&stubCollector{name: "registries", delay: 10 * time.Millisecond, items: []digest.Item{
			{Title: "widget 1.0.0 released", URL: "https://www.npmjs.com/package/widget",
				Source: "npm", Body: "registry copy", PublishedAt: at},
		}},
		&stubCollector{name: "feeds", items: []digest.Item{
			{Title: "Widget 2.0 roadmap", URL: "https://blog.example.com/roadmap",
				Source: "Widget Blog", PublishedAt: mustTime(t, "2026-02-12T00:00:00Z")},
			{Title: "Community call", URL: "https://blog.example.com/call",
				Source: "Widget Blog", PublishedAt: mustTime(t, "2026-02-08T00:00:00Z")},
		}},
	}
}

func newStubOrchestrator(settings digest.Settings, cutoff time.Time) *Orchestrator {
	return NewOrchestrator(OrchestratorConfig{
		Settings: settings,
		Cutoff:   cutoff,
	}, nil, nil, testLogger())
}

func TestCollectCategoryDeterministicAcrossParallelism(t *testing.T) {
	cutoff := mustTime(t, "2026-02-01T00:00:00Z")

	parallel := newStubOrchestrator(digest.Settings{
		GitHubToken: "tok", CollectParallel: true,
	}, cutoff)
	sequential := newStubOrchestrator(digest.Settings{
		GitHubToken: "tok", CollectParallel: false,
	}, cutoff)

	got1 := parallel.CollectCategory(context.Background(), digest.CategoryBackend, jitteredJobs(t))
	got2 := sequential.CollectCategory(context.Background(), digest.CategoryBackend, jitteredJobs(t))

	require.Equal(t, got2, got1, "worker scheduling must not leak into the output")

	// The reduction pipeline ran: the npm duplicate collapsed into the
	// platform release and the sort is newest first.
	require.Len(t, got1, 3)
	assert.Equal(t, "Widget 2.0 roadmap", got1[0].Title)
	assert.Equal(t, "GitHub Releases", got1[1].Source)
	assert.Equal(t, "Community call", got1[2].Title)
}

func TestCollectCategoryJobFailureDegrades(t *testing.T) {
	cutoff := mustTime(t, "2026-02-01T00:00:00Z")
	o := newStubOrchestrator(digest.Settings{CollectParallel: true, GitHubToken: "tok"}, cutoff)

	jobs := []Collector{
		&stubCollector{name: "releases", err: errors.New("boom")},
		&stubCollector{name: "feeds", items: []digest.Item{
			{Title: "Survivor", URL: "https://blog.example.com/x",
				Source: "Blog", PublishedAt: mustTime(t, "2026-02-10T00:00:00Z")},
		}},
	}

	items := o.CollectCategory(context.Background(), digest.CategoryBackend, jobs)
	require.Len(t, items, 1, "a failed job contributes nothing but never aborts the category")
	assert.Equal(t, "Survivor", items[0].Title)
}

func TestCollectCategoryDropsInvalidItems(t *testing.T) {
	cutoff := mustTime(t, "2026-02-01T00:00:00Z")
	o := newStubOrchestrator(digest.Settings{}, cutoff)

	jobs := []Collector{
		&stubCollector{name: "feeds", items: []digest.Item{
			{Title: "Good", URL: "https://x.test/a", Source: "Blog",
				PublishedAt: mustTime(t, "2026-02-10T00:00:00Z")},
			{Title: "No URL", Source: "Blog",
				PublishedAt: mustTime(t, "2026-02-10T00:00:00Z")},
			{Title: "Too old", URL: "https://x.test/b", Source: "Blog",
				PublishedAt: mustTime(t, "2026-01-10T00:00:00Z")},
		}},
	}

	items := o.CollectCategory(context.Background(), digest.CategoryBackend, jobs)
	require.Len(t, items, 1)
	assert.Equal(t, "Good", items[0].Title)
}

func TestCollectCategoryProgressCallback(t *testing.T) {
	cutoff := mustTime(t, "2026-02-01T00:00:00Z")
	o := newStubOrchestrator(digest.Settings{CollectParallel: false}, cutoff)

	var calls []int
	o.SetProgressCallback(func(done, total int, category digest.Category) {
		assert.Equal(t, 3, total)
		assert.Equal(t, digest.CategoryBackend, category)
		calls = append(calls, done)
	})

	o.CollectCategory(context.Background(), digest.CategoryBackend, jitteredJobs(t))
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestCollectCategoryNoJobs(t *testing.T) {
	o := newStubOrchestrator(digest.Settings{}, mustTime(t, "2026-02-01T00:00:00Z"))
	assert.Nil(t, o.CollectCategory(context.Background(), digest.CategoryDevOps, nil))
}

func TestBuildJobsComposition(t *testing.T) {
	o := NewOrchestrator(OrchestratorConfig{
		Sources: digest.Sources{
			Version: 1,
			Categories: map[digest.Category]digest.CategorySources{
				digest.CategoryBackend: {
					Repos:      []digest.RepoRef{widgetRepo},
					Feeds:      []digest.FeedRef{{URL: "https://blog.example.com/feed", DisplayName: "Blog"}},
					Registries: []digest.RegistryRef{{Kind: digest.RegistryNPM, Name: "widget"}},
					Advisories: []string{"npm"},
				},
			},
		},
		Settings: digest.Settings{GitHubToken: "tok", CollectParallel: true},
	}, nil, nil, testLogger())

	var names []string
	for _, job := range o.BuildJobs(digest.CategoryBackend) {
		names = append(names, job.Name())
	}
	assert.Equal(t, []string{"releases", "issues", "advisories", "feeds", "registries"}, names,
		"repos feed two collectors, every other source type one")

	assert.Empty(t, o.BuildJobs(digest.CategoryFrontend), "unconfigured categories build nothing")
}

func TestRunCollectsCategoriesInFixedOrder(t *testing.T) {
	mux := releasePairMux()
	mux.HandleFunc("/repos/acme/widget/issues", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := github.NewClient(github.Config{Token: "tok", BaseURL: srv.URL, Logger: testLogger()})
	cache := runcache.New(testLogger())
	api := github.NewAPI(client, cache, testLogger())

	o := NewOrchestrator(OrchestratorConfig{
		Sources: digest.Sources{
			Version: 1,
			Categories: map[digest.Category]digest.CategorySources{
				digest.CategoryBackend: {Repos: []digest.RepoRef{widgetRepo}},
			},
		},
		Settings: digest.Settings{GitHubToken: "tok", CollectParallel: true, DeepPRCrawl: true},
		Cutoff:   mustTime(t, "2026-02-05T00:00:00Z"),
		Now:      mustTime(t, "2026-02-16T00:00:00Z"),
	}, api, cache, testLogger())

	results, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3, "every category reports, configured or not")

	backend := results[digest.CategoryBackend]
	require.Len(t, backend, 1)
	assert.Equal(t, "Widget v1.2.0 released", backend[0].Title)
	assert.Empty(t, results[digest.CategoryFrontend])
	assert.Empty(t, results[digest.CategoryDevOps])
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	o := newStubOrchestrator(digest.Settings{}, mustTime(t, "2026-02-01T00:00:00Z"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
