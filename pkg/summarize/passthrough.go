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

package summarize

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kraklabs/techdigest/pkg/digest"
)

// defaultPacingGap is the pause between consecutive category calls. Paced
// here rather than in callers so every Summarizer implementation sees the
// same inter-category rhythm.
const defaultPacingGap = 5 * time.Second

// Passthrough emits the collected items verbatim as medium-importance
// entries. It stands in wherever no provider-backed summarizer is
// configured.
type Passthrough struct {
	gap    time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	started bool

	sleep func(ctx context.Context, d time.Duration) error
}

// NewPassthrough builds the passthrough summarizer. A non-positive gap uses
// the 5s default; a nil logger falls back to slog.Default().
func NewPassthrough(gap time.Duration, logger *slog.Logger) *Passthrough {
	if gap <= 0 {
		gap = defaultPacingGap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Passthrough{gap: gap, logger: logger, sleep: sleepCtx}
}

// Summarize maps each item to an entry without condensing anything. Every
// call after the first waits out the pacing gap.
func (p *Passthrough) Summarize(ctx context.Context, category digest.Category, items []digest.Item) (CategoryDigest, error) {
	if err := p.pace(ctx, category); err != nil {
		return CategoryDigest{}, err
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, Entry{
			Title:       item.Title,
			URL:         item.URL,
			Summary:     item.Body,
			Source:      item.Source,
			Importance:  ImportanceMedium,
			PublishedAt: item.PublishedAt,
		})
	}
	p.logger.Debug("summarize.passthrough",
		"category", string(category), "entries", len(entries))
	return CategoryDigest{Category: category, Entries: entries}, nil
}

func (p *Passthrough) pace(ctx context.Context, category digest.Category) error {
	p.mu.Lock()
	first := !p.started
	p.started = true
	p.mu.Unlock()
	if first {
		return nil
	}
	p.logger.Debug("summarize.pacing",
		"category", string(category), "gap", p.gap.String())
	return p.sleep(ctx, p.gap)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
