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
	"log/slog"
	"regexp"
	"strings"

	"github.com/kraklabs/techdigest/pkg/digest"
	"github.com/kraklabs/techdigest/pkg/github"
	"github.com/kraklabs/techdigest/pkg/refs"
	"github.com/kraklabs/techdigest/pkg/text"
)

const (
	// tokenlessRefLimit bounds how many references an anonymous run
	// resolves per item. With a token there is no cap.
	tokenlessRefLimit = 3

	// Comment depth per resolved reference.
	refCommentsWithToken = 5
	refCommentsAnonymous = 2

	excerptChars = 500
	commentChars = 400
)

// Resolver fetches and formats the context blocks behind issue and PR
// references. One resolver serves one category, carrying that category's
// section tag and file filters.
type Resolver struct {
	api     *github.API
	section string
	filters []*regexp.Regexp
	logger  *slog.Logger
}

// NewResolver builds a resolver for one category section.
func NewResolver(api *github.API, category digest.Category, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		api:     api,
		section: string(category),
		filters: DefaultSectionFilters(category),
		logger:  logger,
	}
}

// API exposes the underlying typed client for collectors that share the
// resolver's fetch path.
func (r *Resolver) API() *github.API { return r.api }

// RefLimit is the reference cap for the current auth mode: unlimited with a
// token, a small constant without.
func (r *Resolver) RefLimit() int {
	if r.api.HasToken() {
		return 0
	}
	return tokenlessRefLimit
}

func (r *Resolver) refComments() int {
	if r.api.HasToken() {
		return refCommentsWithToken
	}
	return refCommentsAnonymous
}

// CompareSummary formats the two-dot comparison between the previous and
// current release tags. Fetch failures degrade to an empty string.
func (r *Resolver) CompareSummary(ctx context.Context, repo digest.RepoRef, prevTag, curTag string) string {
	cmp, err := r.api.CompareCommits(ctx, repo.Owner, repo.Name, prevTag, curTag)
	if err != nil {
		r.logger.Warn("resolve.compare.failed",
			"repo", repo.FullName(),
			"range", prevTag+"..."+curTag,
			"error", err.Error())
		return ""
	}
	if cmp == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Compare: %s...%s\n", prevTag, curTag)
	fmt.Fprintf(&b, "Stats: files=%d, commits=%d, +%d/-%d\n",
		len(cmp.Files), cmp.TotalCommits, cmp.Additions(), cmp.Deletions())
	if cmp.HTMLURL != "" {
		fmt.Fprintf(&b, "URL: %s\n", cmp.HTMLURL)
	}
	writeFileList(&b, FilterFiles(cmp.Files, r.filters), r.section)
	return strings.TrimRight(b.String(), "\n")
}

// PRCompareBlock fetches a pull request and its file list and renders the
// compare block, optionally prefixed with a label line. Unresolvable PRs
// yield an empty string.
func (r *Resolver) PRCompareBlock(ctx context.Context, repo digest.RepoRef, number int, label string) string {
	pull, err := r.api.Pull(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		r.logger.Warn("resolve.pull.failed",
			"repo", repo.FullName(), "number", number, "error", err.Error())
		return ""
	}
	if pull == nil {
		return ""
	}
	files, err := r.api.PullFiles(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		r.logger.Warn("resolve.pull_files.failed",
			"repo", repo.FullName(), "number", number, "error", err.Error())
	}

	block := FormatCompare(pull, files, r.section, r.filters)
	if block == "" {
		return ""
	}
	if label != "" {
		return label + "\n" + block
	}
	return block
}

// IssueBlock renders the meta block for one referenced issue or PR: a
// labeled identity line, state header, URL, body excerpt and the first few
// comments. PR references additionally get their compare block appended.
func (r *Resolver) IssueBlock(ctx context.Context, repo digest.RepoRef, number int) string {
	issue, err := r.api.Issue(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		r.logger.Warn("resolve.issue.failed",
			"repo", repo.FullName(), "number", number, "error", err.Error())
		return ""
	}
	if issue == nil {
		return ""
	}

	kind := "Issue"
	if issue.IsPullRequest() {
		kind = "PR"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s #%d] %s\n", kind, issue.Number, issue.Title)
	fmt.Fprintf(&b, "State: %s | Comments: %d | Reactions: %d | Updated: %s\n",
		issue.State, issue.Comments, issue.Reactions.TotalCount,
		issue.UpdatedAt.Format("2006-01-02"))
	if issue.HTMLURL != "" {
		fmt.Fprintf(&b, "URL: %s\n", issue.HTMLURL)
	}
	if excerpt := text.Truncate(text.CollapseWhitespace(issue.Body), excerptChars); excerpt != "" {
		fmt.Fprintf(&b, "Excerpt: %s\n", excerpt)
	}
	r.writeComments(ctx, &b, repo, issue, r.refComments())

	block := strings.TrimRight(b.String(), "\n")
	if issue.IsPullRequest() {
		if cmp := r.PRCompareBlock(ctx, repo, number, ""); cmp != "" {
			block += "\n" + cmp
		}
	}
	return block
}

// LinkedReferenceBlocks extracts references from refText and renders one
// block per resolved reference under a shared section header. Returns an
// empty string when nothing resolves.
func (r *Resolver) LinkedReferenceBlocks(ctx context.Context, repo digest.RepoRef, refText string) string {
	extractor := refs.NewExtractor(repo.Owner, repo.Name)
	numbers := extractor.Extract(refText, r.RefLimit())
	if len(numbers) == 0 {
		return ""
	}

	var blocks []string
	for _, n := range numbers {
		if ctx.Err() != nil {
			break
		}
		if block := r.IssueBlock(ctx, repo, n); block != "" {
			blocks = append(blocks, block)
		}
	}
	if len(blocks) == 0 {
		return ""
	}
	return "Linked PR/Issue references:\n\n" + strings.Join(blocks, "\n\n")
}

// writeComments appends up to max comment lines for an issue.
func (r *Resolver) writeComments(ctx context.Context, b *strings.Builder, repo digest.RepoRef, issue *github.Issue, max int) {
	if issue.Comments == 0 || max <= 0 {
		return
	}
	comments, err := r.api.IssueComments(ctx, repo.Owner, repo.Name, issue.Number)
	if err != nil {
		r.logger.Warn("resolve.comments.failed",
			"repo", repo.FullName(), "number", issue.Number, "error", err.Error())
		return
	}
	if len(comments) == 0 {
		return
	}
	if len(comments) > max {
		comments = comments[:max]
	}
	fmt.Fprintf(b, "Comments (%d shown):\n", len(comments))
	for _, c := range comments {
		fmt.Fprintf(b, "- %s (%s): %s\n",
			c.User.Login,
			c.CreatedAt.Format("2006-01-02"),
			text.Truncate(text.CollapseWhitespace(c.Body), commentChars))
	}
}
