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
	"regexp"
	"sort"
	"strings"

	"github.com/kraklabs/techdigest/pkg/digest"
)

// releaseTitleRe recognizes titles of the form "<name> v?<x.y.z[-pre]>
// released", which several sources emit for the same upstream event.
var releaseTitleRe = regexp.MustCompile(`^(.*\S)\s+v?(\d+(?:\.\d+)+(?:[-+][0-9A-Za-z.+-]*)?)\s+released$`)

// DeduplicateReleaseVersions collapses items announcing the same
// (package, version) pair into the single best one. The survivor maximizes
// (source rank, body length, published-at); platform releases outrank
// registry entries, which outrank everything else. Items whose title does
// not parse as a release pass through untouched, and surviving items keep
// their original positions.
func DeduplicateReleaseVersions(items []digest.Item) []digest.Item {
	type bucketKey struct {
		name    string
		version string
	}

	winners := make(map[bucketKey]int)
	drop := make([]bool, len(items))
	for i := range items {
		m := releaseTitleRe.FindStringSubmatch(items[i].Title)
		if m == nil {
			continue
		}
		key := bucketKey{name: strings.ToLower(m[1]), version: m[2]}
		w, seen := winners[key]
		if !seen {
			winners[key] = i
			continue
		}
		if betterRelease(items[i], items[w]) {
			drop[w] = true
			winners[key] = i
		} else {
			drop[i] = true
		}
	}

	out := items[:0]
	for i := range items {
		if !drop[i] {
			out = append(out, items[i])
		}
	}
	return out
}

// betterRelease compares the dedupe priority tuple. Equal tuples keep the
// incumbent, so earlier items win full ties.
func betterRelease(candidate, incumbent digest.Item) bool {
	cr, ir := sourceRank(candidate.Source), sourceRank(incumbent.Source)
	if cr != ir {
		return cr > ir
	}
	if len(candidate.Body) != len(incumbent.Body) {
		return len(candidate.Body) > len(incumbent.Body)
	}
	return candidate.PublishedAt.After(incumbent.PublishedAt)
}

func sourceRank(source string) int {
	switch source {
	case releaseSourceLabel:
		return 2
	case "npm", "RubyGems", "PyPI":
		return 1
	default:
		return 0
	}
}

// SortItems applies the deterministic output ordering: newest first, then
// title, source label and URL ascending.
func SortItems(items []digest.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.URL < b.URL
	})
}
