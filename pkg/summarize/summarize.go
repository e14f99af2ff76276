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

// Package summarize is the boundary between collection and the digest
// document. A Summarizer condenses one category's items into ranked
// entries; the passthrough implementation ships the collected material
// verbatim and exists so runs work without an LLM provider configured.
package summarize

import (
	"context"
	"fmt"
	"time"

	"github.com/kraklabs/techdigest/pkg/digest"
)

// Importance ranks a digest entry. The run-level minimum threshold drops
// entries below it before rendering.
type Importance string

const (
	ImportanceCritical Importance = "critical"
	ImportanceHigh     Importance = "high"
	ImportanceMedium   Importance = "medium"
	ImportanceLow      Importance = "low"
)

// Rank returns the comparable weight of an importance level. Unknown levels
// rank below low so malformed provider output never outranks real entries.
func (i Importance) Rank() int {
	switch i {
	case ImportanceCritical:
		return 4
	case ImportanceHigh:
		return 3
	case ImportanceMedium:
		return 2
	case ImportanceLow:
		return 1
	}
	return 0
}

// ParseImportance validates a user-supplied importance level.
func ParseImportance(s string) (Importance, error) {
	switch Importance(s) {
	case ImportanceCritical, ImportanceHigh, ImportanceMedium, ImportanceLow:
		return Importance(s), nil
	}
	return "", fmt.Errorf("unknown importance %q (expected critical, high, medium, or low)", s)
}

// Entry is one summarized digest entry.
type Entry struct {
	Title       string
	URL         string
	Summary     string
	Source      string
	Importance  Importance
	PublishedAt time.Time
}

// CategoryDigest is the summarizer output for one category.
type CategoryDigest struct {
	Category digest.Category
	Entries  []Entry
}

// FilterByImportance keeps the entries at or above min, preserving order.
func FilterByImportance(entries []Entry, min Importance) []Entry {
	threshold := min.Rank()
	var kept []Entry
	for _, e := range entries {
		if e.Importance.Rank() >= threshold {
			kept = append(kept, e)
		}
	}
	return kept
}

// Summarizer condenses one category's collected items. Implementations are
// called once per category, in category order.
type Summarizer interface {
	Summarize(ctx context.Context, category digest.Category, items []digest.Item) (CategoryDigest, error)
}
