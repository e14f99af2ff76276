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
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/techdigest/internal/errors"
	"github.com/kraklabs/techdigest/internal/ui"
	"github.com/kraklabs/techdigest/pkg/collect"
	"github.com/kraklabs/techdigest/pkg/digest"
	"github.com/kraklabs/techdigest/pkg/github"
	"github.com/kraklabs/techdigest/pkg/mail"
	"github.com/kraklabs/techdigest/pkg/render"
	"github.com/kraklabs/techdigest/pkg/runcache"
	"github.com/kraklabs/techdigest/pkg/summarize"
)

// runRun executes the 'run' CLI command, collecting every configured source
// and producing the weekly digest.
//
// It loads the sources file, builds the GitHub client and per-run cache,
// collects the three categories through the orchestrator, summarizes and
// filters the items, and either writes an HTML preview (--dry-run) or hands
// the rendered document to the mail step.
//
// Flags:
//   - --dry-run: Write an HTML preview instead of sending mail
//   - --lookback: Override the collection window in days
//   - --min-importance: Minimum importance to keep (critical, high, medium, low)
//   - --no-deep-crawl: Skip per-PR detail fetches during enrichment
//   - --sequential: Collect each category's sources one at a time
//   - --preview-path: Preview file location in dry-run mode
//   - --debug: Enable debug logging
//   - --metrics-addr: HTTP address for Prometheus metrics (default: disabled)
//
// Examples:
//
//	techdigest run                   Collect and produce the digest
//	techdigest run --dry-run         Render digest_preview.html, skip mail
//	techdigest run --lookback 3      Use a three-day window for this run
func runRun(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Write an HTML preview instead of sending mail")
	lookback := fs.Int("lookback", 0, "Override the collection window in days (default: LOOKBACK_DAYS or 7)")
	minLevel := fs.String("min-importance", "", "Minimum importance to keep (critical, high, medium, low)")
	noDeepCrawl := fs.Bool("no-deep-crawl", false, "Skip per-PR detail fetches during enrichment")
	sequential := fs.Bool("sequential", false, "Collect each category's sources one at a time")
	previewPath := fs.String("preview-path", render.DefaultPreviewPath, "Preview file location in dry-run mode")
	debug := fs.Bool("debug", false, "Enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: techdigest run [options]

Description:
  Collect recent activity from every configured source, enrich it with
  cross-referenced GitHub context, and produce the weekly digest.

  Sources are read from digest.yaml (see 'techdigest init'). Runtime
  behavior comes from environment variables; the flags below override
  them for a single run.

  With --dry-run the digest is written to an HTML preview file instead
  of being handed to the mail step.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Collect and produce the digest
  techdigest run

  # Render digest_preview.html without touching the mail step
  techdigest run --dry-run

  # Shorter window, verbose wire logging, metrics endpoint
  techdigest run --lookback 3 --debug --metrics-addr :9090

  # Keep only high and critical entries
  techdigest run --min-importance high

Environment:
  GITHUB_TOKEN           Bearer token for api.github.com (optional)
  LOOKBACK_DAYS          Collection window in days (default: 7)
  DIGEST_MIN_IMPORTANCE  critical, high, medium, or low (default: medium)
  DEEP_PR_CRAWL          Fetch per-PR details during enrichment (default: true)
  COLLECT_PARALLEL       Collect sources in parallel (default: true)
  MAX_COLLECT_THREADS    Source-level worker cap (default: token-aware)
  MAX_REPO_THREADS       Repo-level worker cap (default: token-aware)
  DRY_RUN                Same as --dry-run (default: false)
  DIGEST_RECIPIENTS      Comma-separated recipient list for the mail step

Notes:
  Without GITHUB_TOKEN the run works at anonymous rate limits with
  reduced fetch depth. A token is strongly recommended.

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	// Locate and load the sources file
	srcPath, err := resolveSourcesPath(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	sources, err := digest.LoadSources(srcPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	// Load settings from the environment, then apply flag overrides
	settings, err := digest.LoadSettings(os.Getenv)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	if *dryRun {
		settings.DryRun = true
	}
	if *lookback > 0 {
		settings.LookbackDays = *lookback
	}
	if *minLevel != "" {
		if _, err := summarize.ParseImportance(*minLevel); err != nil {
			errors.FatalError(errors.NewInputError(
				"Invalid importance level",
				err.Error(),
				"Use one of: critical, high, medium, low",
				nil,
			), globals.JSON)
		}
		settings.MinImportance = *minLevel
	}
	if *noDeepCrawl {
		settings.DeepPRCrawl = false
	}
	if *sequential {
		settings.CollectParallel = false
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *debug || globals.Verbose >= 2 {
		logLevel = slog.LevelDebug
	}
	runID := newRunID()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("run_id", runID)
	slog.SetDefault(logger)

	if !settings.HasToken() {
		logger.Warn("github.token.missing",
			"hint", "set GITHUB_TOKEN to raise rate limits and fetch depth")
	}

	// Start Prometheus metrics endpoint (optional)
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	start := time.Now()
	cutoff := digest.Cutoff(start, settings.LookbackDays)

	// Wire the collection stack: client, per-run cache, typed API, orchestrator
	client := github.NewClient(github.Config{
		Token:  settings.GitHubToken,
		Logger: logger,
	})
	cache := runcache.New(logger)
	api := github.NewAPI(client, cache, logger)

	orch := collect.NewOrchestrator(collect.OrchestratorConfig{
		Sources:  *sources,
		Settings: *settings,
		Cutoff:   cutoff,
		Now:      start,
	}, api, cache, logger)

	// Set up progress reporting. Updates arrive from pool workers, so the
	// bar state sits behind a lock.
	progressCfg := NewProgressConfig(globals)
	var (
		progressMu      sync.Mutex
		currentBar      *progressbar.ProgressBar
		currentCategory digest.Category
	)

	orch.SetProgressCallback(func(done, total int, category digest.Category) {
		progressMu.Lock()
		defer progressMu.Unlock()
		// Create new bar when the category changes
		if category != currentCategory {
			if currentBar != nil {
				_ = currentBar.Finish()
			}
			currentCategory = category
			currentBar = NewProgressBar(progressCfg, int64(total), categoryDescription(category))
		}
		if currentBar != nil {
			_ = currentBar.Set64(int64(done))
		}
	})

	logger.Info("digest.starting",
		"sources", srcPath,
		"window_days", settings.LookbackDays,
		"cutoff", cutoff.Format(time.RFC3339),
		"parallel", settings.CollectParallel,
		"deep_pr_crawl", settings.DeepPRCrawl,
		"dry_run", settings.DryRun,
	)

	collected, err := orch.Run(ctx)

	// Clean up progress bar
	progressMu.Lock()
	if currentBar != nil {
		_ = currentBar.Finish()
	}
	progressMu.Unlock()

	if err != nil {
		errors.FatalError(errors.NewInputError(
			"Run canceled",
			"A shutdown signal arrived before collection finished",
			"Re-run 'techdigest run' to produce a digest",
			err,
		), globals.JSON)
	}

	// Summarize per category and filter by importance
	minImportance, err := summarize.ParseImportance(settings.MinImportance)
	if err != nil {
		errors.FatalError(errors.NewInputError(
			"Invalid importance level",
			err.Error(),
			"Use one of: critical, high, medium, low",
			nil,
		), globals.JSON)
	}

	summarizer := summarize.NewPassthrough(0, logger)
	digests := make(map[digest.Category]summarize.CategoryDigest, len(collected))
	for _, category := range digest.Categories() {
		cd, err := summarizer.Summarize(ctx, category, collected[category])
		if err != nil {
			errors.FatalError(errors.NewInputError(
				"Run canceled",
				fmt.Sprintf("Summarization of the %s category was interrupted", category),
				"Re-run 'techdigest run' to produce a digest",
				err,
			), globals.JSON)
		}
		kept := summarize.FilterByImportance(cd.Entries, minImportance)
		logger.Info("summarize.category.complete",
			"category", string(category),
			"entries", len(cd.Entries),
			"kept", len(kept))
		cd.Entries = kept
		digests[category] = cd
	}

	generatedAt := time.Now()
	doc := render.NewDocument("Weekly Technology Digest", cutoff, generatedAt, digests)

	if settings.DryRun {
		if err := render.WritePreview(*previewPath, doc); err != nil {
			errors.FatalError(errors.NewPermissionError(
				"Cannot write digest preview",
				fmt.Sprintf("Failed to write %s", *previewPath),
				"Check directory permissions and available disk space",
				err,
			), globals.JSON)
		}
		logger.Info("render.preview.written", "path", *previewPath)
	} else {
		var html bytes.Buffer
		if err := render.WriteDigest(&html, doc); err != nil {
			errors.FatalError(errors.NewInternalError(
				"Cannot render digest",
				"HTML template execution failed",
				"This is a bug. Please report it with the run log",
				err,
			), globals.JSON)
		}
		mailer := mail.NewNop(logger)
		msg := mail.Message{
			Subject: fmt.Sprintf("Weekly Technology Digest (%s)", generatedAt.Format("2006-01-02")),
			HTML:    html.String(),
			To:      recipients(os.Getenv("DIGEST_RECIPIENTS")),
		}
		if err := mailer.Send(ctx, msg); err != nil {
			errors.FatalError(errors.NewNetworkError(
				"Cannot deliver digest",
				"The mail step rejected the rendered digest",
				"Check the mail configuration and re-run the command",
				err,
			), globals.JSON)
		}
	}

	hits, misses := cache.Stats()
	result := runResult{
		RunID:       runID,
		WindowStart: cutoff,
		GeneratedAt: generatedAt,
		DryRun:      settings.DryRun,
		CacheHits:   hits,
		CacheMisses: misses,
		Duration:    time.Since(start).Round(time.Millisecond).String(),
	}
	if settings.DryRun {
		result.PreviewPath = *previewPath
	}
	if rate := client.LastRate(); rate.Limit > 0 {
		result.Rate = &rateResult{Remaining: rate.Remaining, Limit: rate.Limit}
	}
	for _, category := range digest.Categories() {
		result.Categories = append(result.Categories, categoryResult{
			Category:  category,
			Collected: len(collected[category]),
			Kept:      len(digests[category].Entries),
		})
	}

	if globals.JSON {
		outputRunJSON(result)
	} else {
		printRunResult(result)
	}
}

// runResult summarizes one completed run for the result output.
type runResult struct {
	RunID       string           `json:"run_id"`
	WindowStart time.Time        `json:"window_start"`
	GeneratedAt time.Time        `json:"generated_at"`
	DryRun      bool             `json:"dry_run"`
	PreviewPath string           `json:"preview_path,omitempty"`
	Categories  []categoryResult `json:"categories"`
	CacheHits   int64            `json:"cache_hits"`
	CacheMisses int64            `json:"cache_misses"`
	Rate        *rateResult      `json:"rate,omitempty"`
	Duration    string           `json:"duration"`
}

type categoryResult struct {
	Category  digest.Category `json:"category"`
	Collected int             `json:"collected"`
	Kept      int             `json:"kept"`
}

// rateResult is present only when at least one GitHub response carried
// rate-limit headers.
type rateResult struct {
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
}

// newRunID derives a short opaque id used to correlate one run's log lines.
func newRunID() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("run-%d", time.Now().UnixNano())))
	return fmt.Sprintf("%x", sum)[:12]
}

// categoryDescription returns the progress bar label for a category.
func categoryDescription(category digest.Category) string {
	return "Collecting " + render.SectionTitle(category)
}

// recipients splits a comma-separated recipient list, dropping blanks.
func recipients(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// outputRunJSON writes the run result as formatted JSON to stdout.
func outputRunJSON(result runResult) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
}

// printRunResult prints the run summary to stdout.
//
// Displays per-category item counts, cache effectiveness, and where the
// output went. Used to provide user feedback after a run completes.
func printRunResult(result runResult) {
	fmt.Println()
	ui.Header("Digest Complete")
	fmt.Printf("%s %s\n", ui.Label("Run ID:"), result.RunID)
	fmt.Printf("%s %s\n", ui.Label("Window:"), ui.DimText(fmt.Sprintf("%s to %s",
		result.WindowStart.Format("2006-01-02"), result.GeneratedAt.Format("2006-01-02"))))
	fmt.Println()

	ui.SubHeader("Items:")
	for _, c := range result.Categories {
		fmt.Printf("  %-10s %s collected, %s kept\n",
			string(c.Category)+":", ui.CountText(c.Collected), ui.CountText(c.Kept))
	}
	fmt.Println()

	ui.SubHeader("Cache:")
	fmt.Printf("  Hits:   %s\n", ui.CountText(int(result.CacheHits)))
	fmt.Printf("  Misses: %s\n", ui.CountText(int(result.CacheMisses)))
	fmt.Println()

	if result.Rate != nil {
		fmt.Printf("%s %s\n", ui.Label("API quota:"),
			ui.DimText(fmt.Sprintf("%d/%d remaining", result.Rate.Remaining, result.Rate.Limit)))
	}
	fmt.Printf("%s %s\n", ui.Label("Duration:"), ui.DimText(result.Duration))
	if result.DryRun {
		fmt.Printf("%s %s\n", ui.Label("Preview:"), ui.DimText(result.PreviewPath))
	} else {
		_, _ = ui.Yellow.Println("No mail transport configured; delivery skipped.")
	}
}
