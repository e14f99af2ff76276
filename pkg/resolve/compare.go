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

// Package resolve turns pull request and issue references into enriched
// plain-text context blocks: compare summaries, linked PR diffs and issue
// excerpts. Collectors and feed enrichers share this one resolution path so
// the run cache can collapse their overlapping fetches.
package resolve

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kraklabs/techdigest/pkg/digest"
	"github.com/kraklabs/techdigest/pkg/github"
)

// maxListedFiles bounds the file list inside a compare block. Bodies are
// capped downstream anyway; listing hundreds of paths would only push the
// changelog excerpt out of the cap.
const maxListedFiles = 20

// sectionFilters maps each category to the path patterns that matter for
// it. FormatCompare keeps matching files and falls back to the full list
// when nothing matches.
var sectionFilters = map[digest.Category][]*regexp.Regexp{
	digest.CategoryFrontend: {
		regexp.MustCompile(`(?i)\.(jsx?|tsx?|mjs|css|scss|less|vue|svelte|html)$`),
		regexp.MustCompile(`(?i)(^|/)(src|packages|components|styles)/`),
	},
	digest.CategoryBackend: {
		regexp.MustCompile(`(?i)\.(go|rb|py|rs|java|ex|exs|c|cc|cpp|h)$`),
		regexp.MustCompile(`(?i)(^|/)(src|lib|core|server|api|internal)/`),
	},
	digest.CategoryDevOps: {
		regexp.MustCompile(`(?i)(dockerfile|\.ya?ml|\.tf|\.sh)$`),
		regexp.MustCompile(`(?i)(^|/)(\.github|deploy|infra|charts|terraform|ansible)/`),
	},
}

// DefaultSectionFilters returns the file filters for a category. Unknown
// categories get no filter, which keeps every file.
func DefaultSectionFilters(category digest.Category) []*regexp.Regexp {
	return sectionFilters[category]
}

// FilterFiles keeps the files whose path matches at least one filter. When
// no file matches, or no filters are given, the input list is returned
// unchanged so a filter can never hide an entire diff.
func FilterFiles(files []github.FileChange, filters []*regexp.Regexp) []github.FileChange {
	if len(filters) == 0 || len(files) == 0 {
		return files
	}
	var kept []github.FileChange
	for _, f := range files {
		for _, re := range filters {
			if re.MatchString(f.Filename) {
				kept = append(kept, f)
				break
			}
		}
	}
	if len(kept) == 0 {
		return files
	}
	return kept
}

// FormatCompare renders the stable plain-text block for a pull request:
// identity, state, aggregate stats, compare URL and the section-tagged file
// list. Missing numbers stay zero and missing URLs are omitted.
func FormatCompare(pr *github.Pull, files []github.FileChange, section string, filters []*regexp.Regexp) string {
	if pr == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "PR #%d: %s\n", pr.Number, pr.Title)

	state := pr.State
	if pr.Merged {
		state = "merged"
	}
	fmt.Fprintf(&b, "State: %s | Base: %s | Head: %s\n", state, pr.Base.Ref, pr.Head.Ref)
	fmt.Fprintf(&b, "Stats: files=%d, commits=%d, +%d/-%d\n",
		pr.Files, pr.Commits, pr.Additions, pr.Deletions)
	if pr.HTMLURL != "" {
		fmt.Fprintf(&b, "Compare: %s/files\n", pr.HTMLURL)
	}
	writeFileList(&b, FilterFiles(files, filters), section)
	return strings.TrimRight(b.String(), "\n")
}

func writeFileList(b *strings.Builder, files []github.FileChange, section string) {
	if len(files) == 0 {
		return
	}
	fmt.Fprintf(b, "Changed files (%d):\n", len(files))
	for i, f := range files {
		if i == maxListedFiles {
			fmt.Fprintf(b, "- … and %d more files\n", len(files)-maxListedFiles)
			return
		}
		if section != "" {
			fmt.Fprintf(b, "- [%s] %s (+%d/-%d)\n", section, f.Filename, f.Additions, f.Deletions)
		} else {
			fmt.Fprintf(b, "- %s (+%d/-%d)\n", f.Filename, f.Additions, f.Deletions)
		}
	}
}
