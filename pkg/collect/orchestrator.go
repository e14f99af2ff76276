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
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/techdigest/pkg/digest"
	"github.com/kraklabs/techdigest/pkg/github"
	"github.com/kraklabs/techdigest/pkg/resolve"
	"github.com/kraklabs/techdigest/pkg/runcache"
)

// ProgressFunc receives job completion updates while a category collects.
// Calls may arrive concurrently from worker goroutines; implementations
// guard their own state.
type ProgressFunc func(done, total int, category digest.Category)

// OrchestratorConfig carries the run inputs: the source configuration, the
// runtime settings and the time window.
type OrchestratorConfig struct {
	Sources  digest.Sources
	Settings digest.Settings
	Cutoff   time.Time
	Now      time.Time
}

// Orchestrator runs every category's source jobs through bounded worker
// pools and reduces the results to deterministic per-category item lists.
type Orchestrator struct {
	cfg      OrchestratorConfig
	api      *github.API
	cache    *runcache.Cache
	logger   *slog.Logger
	progress ProgressFunc
}

// NewOrchestrator builds the orchestrator. A nil logger falls back to
// slog.Default().
func NewOrchestrator(cfg OrchestratorConfig, api *github.API, cache *runcache.Cache, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, api: api, cache: cache, logger: logger}
}

// SetProgressCallback installs a per-category progress callback. Must be
// called before Run.
func (o *Orchestrator) SetProgressCallback(fn ProgressFunc) {
	o.progress = fn
}

// Run collects the categories in their fixed order. Individual failures
// never abort the run; only cancellation does.
func (o *Orchestrator) Run(ctx context.Context) (map[digest.Category][]digest.Item, error) {
	results := make(map[digest.Category][]digest.Item, len(digest.Categories()))
	for _, category := range digest.Categories() {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		start := time.Now()
		jobs := o.BuildJobs(category)
		o.logger.Info("collect.category.start",
			"category", string(category), "jobs", len(jobs))

		items := o.CollectCategory(ctx, category, jobs)
		results[category] = items

		categoryDuration.WithLabelValues(string(category)).Observe(time.Since(start).Seconds())
		o.logger.Info("collect.category.complete",
			"category", string(category),
			"items", len(items),
			"duration", time.Since(start).Round(time.Millisecond).String())
	}
	return results, nil
}

// BuildJobs assembles the source jobs for one category from configuration.
// Repos feed both the release and the issues collector; feeds, registries
// and advisory ecosystems get one job each.
func (o *Orchestrator) BuildJobs(category digest.Category) []Collector {
	src := o.cfg.Sources.Categories[category]

	_, maxRepo := o.cfg.Settings.ThreadCaps()
	repoThreads := maxRepo
	if !o.cfg.Settings.CollectParallel {
		repoThreads = 1
	}

	resolver := resolve.NewResolver(o.api, category, o.logger)
	prContext := resolve.NewPRContextBuilder(resolver, o.cfg.Settings.DeepPRCrawl)

	var jobs []Collector
	if len(src.Repos) > 0 {
		jobs = append(jobs, NewReleaseCollector(ReleaseConfig{
			Repos:       src.Repos,
			Cutoff:      o.cfg.Cutoff,
			DeepPRCrawl: o.cfg.Settings.DeepPRCrawl,
			RepoThreads: repoThreads,
		}, resolver, o.logger))
		jobs = append(jobs, NewIssuesCollector(IssuesConfig{
			Repos:       src.Repos,
			Cutoff:      o.cfg.Cutoff,
			RepoThreads: repoThreads,
		}, resolver, prContext, o.logger))
	}
	if len(src.Advisories) > 0 {
		jobs = append(jobs, NewAdvisoryCollector(AdvisoryConfig{
			Ecosystems: src.Advisories,
			Cutoff:     o.cfg.Cutoff,
			Now:        o.cfg.Now,
		}, o.api, o.logger))
	}
	if len(src.Feeds) > 0 {
		jobs = append(jobs, NewFeedCollector(FeedConfig{
			Feeds:  src.Feeds,
			Cutoff: o.cfg.Cutoff,
		}, resolver, prContext, o.cache, o.logger))
	}
	if len(src.Registries) > 0 {
		jobs = append(jobs, NewRegistryCollector(RegistryConfig{
			Registries: src.Registries,
			Cutoff:     o.cfg.Cutoff,
		}, o.cache, o.logger))
	}
	return jobs
}

// CollectCategory executes the jobs through the source-level pool and
// applies the reduction pipeline: flatten in input order, drop invalid
// items, deduplicate release versions, sort.
func (o *Orchestrator) CollectCategory(ctx context.Context, category digest.Category, jobs []Collector) []digest.Item {
	if len(jobs) == 0 {
		o.logger.Info("collect.category.no_data", "category", string(category))
		return nil
	}

	maxCollect, _ := o.cfg.Settings.ThreadCaps()
	limit := 1
	if o.cfg.Settings.CollectParallel && len(jobs) > 1 {
		limit = maxCollect
	}

	slots := make([][]digest.Item, len(jobs))
	var done atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			items, err := job.Collect(gctx)
			if err != nil {
				o.logger.Warn("collect.job.failed",
					"category", string(category),
					"source", job.Name(),
					"error", err.Error())
				jobFailures.WithLabelValues(string(category)).Inc()
				items = nil
			}
			slots[i] = items
			if o.progress != nil {
				o.progress(int(done.Add(1)), len(jobs), category)
			}
			return nil
		})
	}
	// Jobs swallow their own errors, so Wait only reflects cancellation.
	_ = g.Wait()

	var flat []digest.Item
	for _, part := range slots {
		flat = append(flat, part...)
	}

	valid := flat[:0]
	for _, item := range flat {
		if !item.Valid(o.cfg.Cutoff) {
			o.logger.Error("collect.item.invalid",
				"category", string(category),
				"title", item.Title,
				"url", item.URL,
				"published_at", item.PublishedAt.Format(time.RFC3339))
			continue
		}
		valid = append(valid, item)
	}

	items := DeduplicateReleaseVersions(valid)
	SortItems(items)
	if len(items) == 0 {
		o.logger.Info("collect.category.no_data", "category", string(category))
	}
	return items
}
