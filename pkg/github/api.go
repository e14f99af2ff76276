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

package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/kraklabs/techdigest/pkg/runcache"
)

// Fetch depth caps. Anonymous runs fetch less to stay inside the 60
// requests per hour budget.
const (
	releasesPerPage     = 30
	releasesPerPageAnon = 10
	tagsPerPage         = 20
	issuesPerPageAnon   = 30
	commentsPerPageAnon = 10
	pullFilesPerPage    = 100
	advisoriesPerPage   = 100
)

// API wraps Client with typed endpoint methods and per-run memoization.
// Every method caches its result, including 404 misses, so a reference that
// several collectors resolve is fetched once per run.
type API struct {
	client *Client
	cache  *runcache.Cache
	logger *slog.Logger
}

// NewAPI builds the typed endpoint layer on top of client and cache.
func NewAPI(client *Client, cache *runcache.Cache, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{client: client, cache: cache, logger: logger}
}

// HasToken reports whether requests are authenticated.
func (a *API) HasToken() bool { return a.client.HasToken() }

// nilOnNotFound converts a 404 into a nil value so the run cache memoizes
// the miss instead of refetching it.
func (a *API) nilOnNotFound(v any, err error, event string, args ...any) (any, error) {
	if err == nil {
		return v, nil
	}
	if IsNotFound(err) {
		a.logger.Info(event, args...)
		return nil, nil
	}
	return nil, err
}

// Releases lists the most recent releases of a repository, newest first.
func (a *API) Releases(ctx context.Context, owner, repo string) ([]Release, error) {
	key := owner + "/" + repo
	return runcache.FetchTyped[[]Release](a.cache, "releases", key, func() (any, error) {
		perPage := releasesPerPage
		if !a.client.HasToken() {
			perPage = releasesPerPageAnon
		}
		path := fmt.Sprintf("/repos/%s/%s/releases", owner, repo)
		items, err := GetFirstPage[Release](ctx, a.client, path, nil, perPage)
		return a.nilOnNotFound(items, err, "github.releases.missing", "repo", key)
	})
}

// Tags lists the newest tags of a repository, capped at 20.
func (a *API) Tags(ctx context.Context, owner, repo string) ([]Tag, error) {
	key := owner + "/" + repo
	return runcache.FetchTyped[[]Tag](a.cache, "tags", key, func() (any, error) {
		path := fmt.Sprintf("/repos/%s/%s/tags", owner, repo)
		items, err := GetFirstPage[Tag](ctx, a.client, path, nil, tagsPerPage)
		return a.nilOnNotFound(items, err, "github.tags.missing", "repo", key)
	})
}

// Commit fetches a single commit, typically to date a tag.
func (a *API) Commit(ctx context.Context, owner, repo, sha string) (*Commit, error) {
	key := owner + "/" + repo + "@" + sha
	return runcache.FetchTyped[*Commit](a.cache, "commit", key, func() (any, error) {
		path := fmt.Sprintf("/repos/%s/%s/commits/%s", owner, repo, url.PathEscape(sha))
		var commit Commit
		err := a.client.GetJSON(ctx, path, nil, &commit)
		return a.nilOnNotFound(&commit, err, "github.commit.missing", "ref", key)
	})
}

// CompareCommits runs the two-dot comparison between base and head.
func (a *API) CompareCommits(ctx context.Context, owner, repo, base, head string) (*Compare, error) {
	key := fmt.Sprintf("%s/%s:%s...%s", owner, repo, base, head)
	return runcache.FetchTyped[*Compare](a.cache, "compare", key, func() (any, error) {
		path := fmt.Sprintf("/repos/%s/%s/compare/%s...%s",
			owner, repo, url.PathEscape(base), url.PathEscape(head))
		var cmp Compare
		err := a.client.GetJSON(ctx, path, nil, &cmp)
		return a.nilOnNotFound(&cmp, err, "github.compare.missing", "range", key)
	})
}

// IssuesSince lists issues and pull requests updated at or after since,
// newest first. Anonymous runs fetch only the first page.
func (a *API) IssuesSince(ctx context.Context, owner, repo string, since time.Time) ([]Issue, error) {
	key := fmt.Sprintf("%s/%s@%d", owner, repo, since.Unix())
	return runcache.FetchTyped[[]Issue](a.cache, "issues_since", key, func() (any, error) {
		path := fmt.Sprintf("/repos/%s/%s/issues", owner, repo)
		query := url.Values{}
		query.Set("state", "all")
		query.Set("sort", "updated")
		query.Set("direction", "desc")
		query.Set("since", since.UTC().Format(time.RFC3339))

		var (
			items []Issue
			err   error
		)
		if a.client.HasToken() {
			items, err = GetPaginated[Issue](ctx, a.client, path, query)
		} else {
			items, err = GetFirstPage[Issue](ctx, a.client, path, query, issuesPerPageAnon)
		}
		return a.nilOnNotFound(items, err, "github.issues.missing", "repo", owner+"/"+repo)
	})
}

// Issue fetches one issue or pull request by number.
func (a *API) Issue(ctx context.Context, owner, repo string, number int) (*Issue, error) {
	key := fmt.Sprintf("%s/%s#%d", owner, repo, number)
	return runcache.FetchTyped[*Issue](a.cache, "issue", key, func() (any, error) {
		path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
		var issue Issue
		err := a.client.GetJSON(ctx, path, nil, &issue)
		return a.nilOnNotFound(&issue, err, "github.issue.missing", "ref", key)
	})
}

// IssueComments lists the comments of an issue or pull request. Anonymous
// runs fetch at most ten.
func (a *API) IssueComments(ctx context.Context, owner, repo string, number int) ([]Comment, error) {
	key := fmt.Sprintf("%s/%s#%d", owner, repo, number)
	return runcache.FetchTyped[[]Comment](a.cache, "comments", key, func() (any, error) {
		path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, number)
		var (
			items []Comment
			err   error
		)
		if a.client.HasToken() {
			items, err = GetPaginated[Comment](ctx, a.client, path, nil)
		} else {
			items, err = GetFirstPage[Comment](ctx, a.client, path, nil, commentsPerPageAnon)
		}
		return a.nilOnNotFound(items, err, "github.comments.missing", "ref", key)
	})
}

// Pull fetches one pull request by number.
func (a *API) Pull(ctx context.Context, owner, repo string, number int) (*Pull, error) {
	key := fmt.Sprintf("%s/%s#%d", owner, repo, number)
	return runcache.FetchTyped[*Pull](a.cache, "pull", key, func() (any, error) {
		path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
		var pull Pull
		err := a.client.GetJSON(ctx, path, nil, &pull)
		return a.nilOnNotFound(&pull, err, "github.pull.missing", "ref", key)
	})
}

// PullFiles lists the files changed by a pull request, capped at 100.
func (a *API) PullFiles(ctx context.Context, owner, repo string, number int) ([]FileChange, error) {
	key := fmt.Sprintf("%s/%s#%d", owner, repo, number)
	return runcache.FetchTyped[[]FileChange](a.cache, "pull_files", key, func() (any, error) {
		path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files", owner, repo, number)
		items, err := GetFirstPage[FileChange](ctx, a.client, path, nil, pullFilesPerPage)
		return a.nilOnNotFound(items, err, "github.pull_files.missing", "ref", key)
	})
}

// FileContent fetches and decodes a file from the default branch. A missing
// file yields an empty string, memoized for the run.
func (a *API) FileContent(ctx context.Context, owner, repo, filePath string) (string, error) {
	key := owner + "/" + repo + ":" + filePath
	return runcache.FetchTyped[string](a.cache, "contents", key, func() (any, error) {
		path := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, escapePath(filePath))
		var contents Contents
		if err := a.client.GetJSON(ctx, path, nil, &contents); err != nil {
			return a.nilOnNotFound(nil, err, "github.contents.missing", "file", key)
		}
		decoded, err := contents.Decode()
		if err != nil {
			return nil, &ParseError{Path: path, Snippet: "", Err: err}
		}
		return decoded, nil
	})
}

// GlobalAdvisories lists security advisories for one package ecosystem
// published inside the [from, to] date range.
func (a *API) GlobalAdvisories(ctx context.Context, ecosystem string, from, to time.Time) ([]Advisory, error) {
	published := from.UTC().Format("2006-01-02") + ".." + to.UTC().Format("2006-01-02")
	key := ecosystem + "@" + published
	return runcache.FetchTyped[[]Advisory](a.cache, "advisories", key, func() (any, error) {
		query := url.Values{}
		query.Set("ecosystem", ecosystem)
		query.Set("published", published)

		var (
			items []Advisory
			err   error
		)
		if a.client.HasToken() {
			items, err = GetPaginated[Advisory](ctx, a.client, "/advisories", query)
		} else {
			items, err = GetFirstPage[Advisory](ctx, a.client, "/advisories", query, advisoriesPerPage)
		}
		return a.nilOnNotFound(items, err, "github.advisories.missing", "ecosystem", ecosystem)
	})
}

// escapePath escapes each segment of a repository file path while keeping
// the separators.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}
