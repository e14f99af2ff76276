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

// Package refs extracts issue and pull request numbers from free text such
// as release notes, issue bodies and comments. Extraction is scoped to one
// repository so URLs pointing at other projects are ignored, and numbers
// that belong to external trackers (JIRA, Redmine and friends) are rejected.
package refs

import (
	"regexp"
	"sort"
)

// Reference numbers are capped at seven digits. Anything longer is noise
// such as timestamps or commit-ish fragments.
const maxDigits = `\d{1,7}`

var (
	// Keyword rule: a referencing word followed by #N within a short
	// window. The window excludes '#' so the nearest number wins, and
	// excludes newlines so list items do not bleed into each other.
	keywordRe = regexp.MustCompile(`(?i)\b(?:pull\s+requests?|pull|pr|issue|fix(?:es|ed)?|close[sd]?|resolve[sd]?|ref(?:er(?:ence[sd]?)?)?)\b[^#\n]{0,50}#(` + maxDigits + `)\b`)

	// Bracket rule: changelog-style [#N] and [PR #N]. [Issue #N] is
	// deliberately not matched.
	bracketRe = regexp.MustCompile(`(?i)\[(?:pr\s+)?#(` + maxDigits + `)\]`)

	// GH-N tokens, common in imported Jira-era changelogs.
	ghRe = regexp.MustCompile(`(?i)\bgh-(` + maxDigits + `)\b`)

	// Tracker rule: numbers owned by external issue trackers. Matching
	// numbers are subtracted from the result set.
	trackerRe = regexp.MustCompile(`(?i)\b(?:ticket|jira|trac|redmine)\b[\s:-]{0,5}#(` + maxDigits + `)\b`)
)

// Extractor finds issue and PR numbers belonging to a single repository.
type Extractor struct {
	urlRe *regexp.Regexp
}

// NewExtractor builds an extractor scoped to owner/repo. The URL rule
// matches issue and pull links on any host as long as the path names
// exactly this repository.
func NewExtractor(owner, repo string) *Extractor {
	pattern := `(?i)https?://[\w.-]+/` +
		regexp.QuoteMeta(owner) + `/` + regexp.QuoteMeta(repo) +
		`/(?:issues|pull)/(` + maxDigits + `)\b`
	return &Extractor{urlRe: regexp.MustCompile(pattern)}
}

type match struct {
	offset int
	number int
}

// Extract returns the unique referenced numbers in first-occurrence order.
// A positive limit caps the result length; zero or negative means no cap.
func (e *Extractor) Extract(text string, limit int) []int {
	var matches []match
	for _, re := range []*regexp.Regexp{e.urlRe, keywordRe, bracketRe, ghRe} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			n := parseNumber(text[m[2]:m[3]])
			if n > 0 {
				matches = append(matches, match{offset: m[2], number: n})
			}
		}
	}
	if len(matches) == 0 {
		return nil
	}

	excluded := map[int]bool{}
	for _, m := range trackerRe.FindAllStringSubmatchIndex(text, -1) {
		if n := parseNumber(text[m[2]:m[3]]); n > 0 {
			excluded[n] = true
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].offset < matches[j].offset })

	seen := map[int]bool{}
	var out []int
	for _, m := range matches {
		if excluded[m.number] || seen[m.number] {
			continue
		}
		seen[m.number] = true
		out = append(out, m.number)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// parseNumber converts a digits-only capture without strconv error paths.
func parseNumber(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}
