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

package text

import (
	"regexp"
	"strings"
)

var (
	atxHeadingRe      = regexp.MustCompile(`^#{1,6}\s`)
	setextUnderlineRe = regexp.MustCompile(`^(=+|-+)\s*$`)
	versionTokenRe    = regexp.MustCompile(`v?\d+(\.\d+)+`)
)

// ChangelogSection extracts the section of a markdown changelog that
// describes the given release tag.
//
// A section starts at the first heading containing the tag, the tag without
// its leading v, or the tag with a v prepended. Both ATX headings (# through
// ######) and setext-underlined headings are recognized. The section runs
// until the next heading carrying a version-shaped token; any such heading
// terminates it, adjacent pre-release entries included. Returns "" when no
// heading matches.
func ChangelogSection(content, tag string) string {
	pats := headingPatterns(tag)
	if len(pats) == 0 {
		return ""
	}

	lines := strings.Split(content, "\n")

	start := -1
	for i := range lines {
		if !isHeadingLine(lines, i) {
			continue
		}
		for _, p := range pats {
			if p.MatchString(lines[i]) {
				start = i
				break
			}
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return ""
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		// Skip the underline of a setext start heading.
		if i == start+1 && setextUnderlineRe.MatchString(lines[i]) {
			continue
		}
		if isHeadingLine(lines, i) && versionTokenRe.MatchString(lines[i]) {
			end = i
			break
		}
	}

	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

// headingPatterns compiles the candidate heading matchers for a tag:
// {tag, tag without leading v, v+tag}, each bounded so 1.2.0 does not match
// inside 11.2.0 or 1.2.01.
func headingPatterns(tag string) []*regexp.Regexp {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil
	}

	bare := strings.TrimPrefix(tag, "v")
	candidates := []string{tag}
	if bare != tag && bare != "" {
		candidates = append(candidates, bare)
	}
	if withV := "v" + bare; withV != tag {
		candidates = append(candidates, withV)
	}

	pats := make([]*regexp.Regexp, 0, len(candidates))
	for _, c := range candidates {
		pats = append(pats, regexp.MustCompile(
			`(?i)(^|[^0-9A-Za-z.\-])`+regexp.QuoteMeta(c)+`($|[^0-9A-Za-z.\-])`,
		))
	}
	return pats
}

// isHeadingLine reports whether lines[i] is an ATX heading or the text line
// of a setext heading (followed by an === or --- underline).
func isHeadingLine(lines []string, i int) bool {
	line := lines[i]
	if atxHeadingRe.MatchString(line) {
		return true
	}
	if strings.TrimSpace(line) == "" || setextUnderlineRe.MatchString(line) {
		return false
	}
	return i+1 < len(lines) && setextUnderlineRe.MatchString(lines[i+1])
}
