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

package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/kraklabs/techdigest/pkg/digest"
	"github.com/kraklabs/techdigest/pkg/github"
	"github.com/kraklabs/techdigest/pkg/refs"
)

// PRContextBuilder assembles the per-item compare context: either the
// item's own diff when the item is a pull request, or the diffs of the PRs
// its discussion links to.
type PRContextBuilder struct {
	resolver  *Resolver
	deepCrawl bool
}

// NewPRContextBuilder wraps a resolver. With deepCrawl false, Build always
// returns an empty string.
func NewPRContextBuilder(resolver *Resolver, deepCrawl bool) *PRContextBuilder {
	return &PRContextBuilder{resolver: resolver, deepCrawl: deepCrawl}
}

// Build returns the context block for an issue-stream item. comments are
// the already-fetched discussion bodies, reused here so reference
// extraction does not refetch them.
func (b *PRContextBuilder) Build(ctx context.Context, repo digest.RepoRef, issue *github.Issue, comments []github.Comment) string {
	if !b.deepCrawl || issue == nil {
		return ""
	}
	if issue.IsPullRequest() {
		return b.resolver.PRCompareBlock(ctx, repo, issue.Number, "PR Compare:")
	}

	var sb strings.Builder
	sb.WriteString(issue.Body)
	for _, c := range comments {
		sb.WriteString("\n")
		sb.WriteString(c.Body)
	}

	extractor := refs.NewExtractor(repo.Owner, repo.Name)
	numbers := extractor.Extract(sb.String(), b.resolver.RefLimit())

	var blocks []string
	for _, n := range numbers {
		if ctx.Err() != nil {
			break
		}
		meta, err := b.resolver.API().Issue(ctx, repo.Owner, repo.Name, n)
		if err != nil || meta == nil || !meta.IsPullRequest() {
			continue
		}
		label := fmt.Sprintf("Linked PR #%d:", n)
		if block := b.resolver.PRCompareBlock(ctx, repo, n, label); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}
