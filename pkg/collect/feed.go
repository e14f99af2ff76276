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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/mmcdole/gofeed"

	"github.com/kraklabs/techdigest/pkg/digest"
	"github.com/kraklabs/techdigest/pkg/github"
	"github.com/kraklabs/techdigest/pkg/resolve"
	"github.com/kraklabs/techdigest/pkg/runcache"
	"github.com/kraklabs/techdigest/pkg/text"
)

const (
	maxFeedRedirects = 5
	feedBodyChars    = 4000
	feedHTTPTimeout  = 30 * time.Second
)

var (
	githubItemRe   = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+)/(?:issues|pull)/(\d+)(?:[?#].*)?$`)
	redmineIssueRe = regexp.MustCompile(`^(https?://[^/]+)/issues/(\d+)(?:\.json)?(?:[?#].*)?$`)
)

// FeedConfig configures a FeedCollector for one category.
type FeedConfig struct {
	Feeds  []digest.FeedRef
	Cutoff time.Time

	// HTTPClient serves feed fetches and Redmine JSON lookups. Nil gets a
	// pooled client following at most five redirects.
	HTTPClient *http.Client
}

// FeedCollector parses RSS and Atom feeds and enriches entries that point
// at known platforms: GitHub issues and PRs go through the shared resolver
// path, Redmine issues through their JSON API, everything else is stripped
// to plain text.
type FeedCollector struct {
	cfg        FeedConfig
	httpClient *http.Client
	resolver   *resolve.Resolver
	prContext  *resolve.PRContextBuilder
	cache      *runcache.Cache
	logger     *slog.Logger
}

// NewFeedCollector builds the collector.
func NewFeedCollector(cfg FeedConfig, resolver *resolve.Resolver, prContext *resolve.PRContextBuilder, cache *runcache.Cache, logger *slog.Logger) *FeedCollector {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = feedHTTPClient()
	}
	return &FeedCollector{
		cfg:        cfg,
		httpClient: httpClient,
		resolver:   resolver,
		prContext:  prContext,
		cache:      cache,
		logger:     logger,
	}
}

func feedHTTPClient() *http.Client {
	c := cleanhttp.DefaultPooledClient()
	c.Timeout = feedHTTPTimeout
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxFeedRedirects {
			return fmt.Errorf("stopped after %d redirects", maxFeedRedirects)
		}
		return nil
	}
	return c
}

func (c *FeedCollector) Name() string { return "feeds" }

// Collect parses each configured feed. A feed that fails to parse is logged
// and skipped; its siblings still contribute.
func (c *FeedCollector) Collect(ctx context.Context) ([]digest.Item, error) {
	parser := gofeed.NewParser()
	parser.Client = c.httpClient

	var items []digest.Item
	for _, ref := range c.cfg.Feeds {
		if ctx.Err() != nil {
			break
		}
		feed, err := parser.ParseURLWithContext(ref.URL, ctx)
		if err != nil {
			c.logger.Warn("collect.feed.parse_failed",
				"feed", ref.URL, "error", err.Error())
			continue
		}
		for _, entry := range feed.Items {
			item, ok := c.convertEntry(ctx, ref, entry)
			if !ok {
				continue
			}
			items = append(items, item)
			itemsCollected.WithLabelValues(c.Name()).Inc()
		}
	}
	return items, nil
}

func (c *FeedCollector) convertEntry(ctx context.Context, ref digest.FeedRef, entry *gofeed.Item) (digest.Item, bool) {
	published := entryTime(entry)
	if published == nil || published.Before(c.cfg.Cutoff) {
		return digest.Item{}, false
	}
	if entry.Title == "" || entry.Link == "" {
		return digest.Item{}, false
	}
	return digest.Item{
		Title:       entry.Title,
		URL:         entry.Link,
		PublishedAt: published.UTC(),
		Body:        text.Truncate(c.enrich(ctx, entry), feedBodyChars),
		Source:      ref.DisplayName,
	}, true
}

func entryTime(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed
	}
	return entry.UpdatedParsed
}

// enrich upgrades the entry body by platform: GitHub items are resolved
// through the shared issue path, Redmine issues through their JSON API,
// anything else falls back to stripped feed content.
func (c *FeedCollector) enrich(ctx context.Context, entry *gofeed.Item) string {
	if m := githubItemRe.FindStringSubmatch(entry.Link); m != nil {
		if body := c.enrichGitHub(ctx, m[1], m[2], m[3]); body != "" {
			return body
		}
	}
	if m := redmineIssueRe.FindStringSubmatch(entry.Link); m != nil {
		if body := c.enrichRedmine(ctx, m[1], m[2]); body != "" {
			return body
		}
	}
	return plainEntryBody(entry)
}

func (c *FeedCollector) enrichGitHub(ctx context.Context, owner, repoName, numberText string) string {
	number, err := strconv.Atoi(numberText)
	if err != nil {
		return ""
	}
	repo := digest.RepoRef{Owner: owner, Name: repoName, DisplayName: owner + "/" + repoName}

	issue, err := c.resolver.API().Issue(ctx, owner, repoName, number)
	if err != nil {
		c.logger.Warn("collect.feed.github_enrich_failed",
			"repo", repo.FullName(), "number", number, "error", err.Error())
		return ""
	}
	if issue == nil {
		return ""
	}

	var comments []github.Comment
	if issue.Comments > 0 {
		comments, err = c.resolver.API().IssueComments(ctx, owner, repoName, number)
		if err != nil {
			c.logger.Warn("collect.feed.github_comments_failed",
				"repo", repo.FullName(), "number", number, "error", err.Error())
		}
	}
	return issueBody(ctx, c.prContext, repo, issue, comments)
}

// redmineIssue mirrors the Redmine JSON shape we consume.
type redmineIssue struct {
	Issue struct {
		Subject     string `json:"subject"`
		Description string `json:"description"`
		Journals    []struct {
			Notes string `json:"notes"`
			User  struct {
				Name string `json:"name"`
			} `json:"user"`
			CreatedOn time.Time `json:"created_on"`
		} `json:"journals"`
	} `json:"issue"`
}

func (c *FeedCollector) enrichRedmine(ctx context.Context, base, id string) string {
	endpoint := fmt.Sprintf("%s/issues/%s.json?include=journals", base, id)
	body, err := runcache.FetchTyped[string](c.cache, "redmine", endpoint, func() (any, error) {
		parsed, err := c.fetchRedmine(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		return formatRedmine(parsed), nil
	})
	if err != nil {
		c.logger.Warn("collect.feed.redmine_enrich_failed",
			"endpoint", endpoint, "error", err.Error())
		return ""
	}
	return body
}

func (c *FeedCollector) fetchRedmine(ctx context.Context, endpoint string) (*redmineIssue, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("redmine: unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var parsed redmineIssue
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func formatRedmine(parsed *redmineIssue) string {
	var b strings.Builder
	if desc := strings.TrimSpace(parsed.Issue.Description); desc != "" {
		b.WriteString(desc)
		b.WriteString("\n")
	}

	var journals []string
	for _, j := range parsed.Issue.Journals {
		notes := strings.TrimSpace(j.Notes)
		if notes == "" {
			continue
		}
		journals = append(journals, fmt.Sprintf("- %s (%s): %s",
			j.User.Name, j.CreatedOn.Format("2006-01-02"), text.CollapseWhitespace(notes)))
	}
	if len(journals) > 0 {
		b.WriteString("\nJournal:\n")
		b.WriteString(strings.Join(journals, "\n"))
	}
	return strings.TrimSpace(b.String())
}

func plainEntryBody(entry *gofeed.Item) string {
	content := entry.Content
	if content == "" {
		content = entry.Description
	}
	return text.CollapseWhitespace(text.StripTags(content))
}
