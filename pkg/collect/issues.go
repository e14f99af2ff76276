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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kraklabs/techdigest/pkg/digest"
	"github.com/kraklabs/techdigest/pkg/github"
	"github.com/kraklabs/techdigest/pkg/resolve"
	"github.com/kraklabs/techdigest/pkg/text"
)

const (
	issuesSourceLabel = "GitHub Issues"

	// notableScore is the engagement threshold: comments plus reactions.
	notableScore = 3

	issueBodyChars    = 4000
	issueCommentChars = 400
)

// notableLabelFragments mark an issue notable regardless of engagement.
var notableLabelFragments = []string{
	"security",
	"breaking-change",
	"bug",
	"critical",
	"important",
	"release",
	"announcement",
}

// IssuesConfig configures an IssuesCollector for one category.
type IssuesConfig struct {
	Repos       []digest.RepoRef
	Cutoff      time.Time
	RepoThreads int
}

// IssuesCollector emits the notable issues and pull requests updated inside
// the window: engaged discussions and anything labeled as important.
type IssuesCollector struct {
	cfg       IssuesConfig
	resolver  *resolve.Resolver
	prContext *resolve.PRContextBuilder
	logger    *slog.Logger
}

// NewIssuesCollector builds the collector.
func NewIssuesCollector(cfg IssuesConfig, resolver *resolve.Resolver, prContext *resolve.PRContextBuilder, logger *slog.Logger) *IssuesCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &IssuesCollector{cfg: cfg, resolver: resolver, prContext: prContext, logger: logger}
}

func (c *IssuesCollector) Name() string { return "issues" }

// Collect walks the configured repos through the repo-level pool.
func (c *IssuesCollector) Collect(ctx context.Context) ([]digest.Item, error) {
	slots := make([][]digest.Item, len(c.cfg.Repos))
	runIndexed(ctx, c.cfg.RepoThreads, len(c.cfg.Repos), func(i int) {
		repo := c.cfg.Repos[i]
		items, err := c.collectRepo(ctx, repo)
		if err != nil {
			c.logger.Warn("collect.issues.repo_failed",
				"repo", repo.FullName(), "error", err.Error())
			return
		}
		slots[i] = items
	})

	var items []digest.Item
	for _, part := range slots {
		items = append(items, part...)
	}
	return items, nil
}

func (c *IssuesCollector) collectRepo(ctx context.Context, repo digest.RepoRef) ([]digest.Item, error) {
	issues, err := c.resolver.API().IssuesSince(ctx, repo.Owner, repo.Name, c.cfg.Cutoff)
	if err != nil {
		return nil, err
	}

	var items []digest.Item
	for i := range issues {
		issue := &issues[i]
		if issue.UpdatedAt.Before(c.cfg.Cutoff) {
			continue
		}
		if !isNotable(issue) {
			continue
		}

		prefix := "[Issue] "
		if issue.IsPullRequest() {
			prefix = "[PR] "
		}
		items = append(items, digest.Item{
			Title:       prefix + issue.Title,
			URL:         issue.HTMLURL,
			PublishedAt: issue.UpdatedAt,
			Body:        c.buildBody(ctx, repo, issue),
			Source:      issuesSourceLabel,
		})
		itemsCollected.WithLabelValues(c.Name()).Inc()
	}
	return items, nil
}

// isNotable applies the engagement-or-label rule.
func isNotable(issue *github.Issue) bool {
	if issue.Comments+issue.Reactions.TotalCount >= notableScore {
		return true
	}
	for _, fragment := range notableLabelFragments {
		if issue.HasLabel(fragment) {
			return true
		}
	}
	return false
}

// buildBody renders the header, description, comment sequence and PR
// context for one notable issue, capped at 4,000 characters.
func (c *IssuesCollector) buildBody(ctx context.Context, repo digest.RepoRef, issue *github.Issue) string {
	comments := c.fetchComments(ctx, repo, issue)
	return issueBody(ctx, c.prContext, repo, issue, comments)
}

func (c *IssuesCollector) fetchComments(ctx context.Context, repo digest.RepoRef, issue *github.Issue) []github.Comment {
	if issue.Comments == 0 {
		return nil
	}
	comments, err := c.resolver.API().IssueComments(ctx, repo.Owner, repo.Name, issue.Number)
	if err != nil {
		c.logger.Warn("collect.issues.comments_failed",
			"repo", repo.FullName(), "number", issue.Number, "error", err.Error())
		return nil
	}
	return comments
}

// issueBody is the body builder shared by the issues collector and the feed
// enricher: a state header, the description, the comment sequence and the
// deep-crawl PR context.
func issueBody(ctx context.Context, prContext *resolve.PRContextBuilder, repo digest.RepoRef, issue *github.Issue, comments []github.Comment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "State: %s | Comments: %d | Reactions: %d | Updated: %s\n",
		issue.State, issue.Comments, issue.Reactions.TotalCount,
		issue.UpdatedAt.Format("2006-01-02"))

	if body := strings.TrimSpace(issue.Body); body != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", body)
	}

	if len(comments) > 0 {
		fmt.Fprintf(&b, "\nComments (%d):\n", len(comments))
		for _, comment := range comments {
			fmt.Fprintf(&b, "- %s (%s): %s\n",
				comment.User.Login,
				comment.CreatedAt.Format("2006-01-02"),
				text.Truncate(text.CollapseWhitespace(comment.Body), issueCommentChars))
		}
	}

	if prContext != nil {
		if block := prContext.Build(ctx, repo, issue, comments); block != "" {
			b.WriteString("\n")
			b.WriteString(block)
			b.WriteString("\n")
		}
	}
	return text.Truncate(strings.TrimRight(b.String(), "\n"), issueBodyChars)
}
