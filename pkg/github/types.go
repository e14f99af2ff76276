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
	"encoding/base64"
	"strings"
	"time"
)

// RateInfo carries the X-RateLimit-* telemetry from the most recent
// response, plus any Retry-After hint.
type RateInfo struct {
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// User is the slim author shape embedded in issues and comments.
type User struct {
	Login string `json:"login"`
}

// Label is an issue or pull request label.
type Label struct {
	Name string `json:"name"`
}

// Reactions is the aggregate reaction counter on issues and comments.
type Reactions struct {
	TotalCount int `json:"total_count"`
}

// Release is a published GitHub release.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Tag is a lightweight repository tag. The commit date must be fetched
// separately through the commits endpoint.
type Tag struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// Commit is the subset of the commits endpoint we consume: the committer
// date attached to a tag's target.
type Commit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Committer struct {
			Date time.Time `json:"date"`
		} `json:"committer"`
		Message string `json:"message"`
	} `json:"commit"`
}

// Issue is an issue or a pull request as returned by the issues endpoints.
// Pull requests are distinguished by a non-nil PullRequest stub.
type Issue struct {
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	State       string     `json:"state"`
	Body        string     `json:"body"`
	HTMLURL     string     `json:"html_url"`
	Comments    int        `json:"comments"`
	User        User       `json:"user"`
	Labels      []Label    `json:"labels"`
	Reactions   Reactions  `json:"reactions"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PullRequest *struct {
		URL      string     `json:"url"`
		MergedAt *time.Time `json:"merged_at"`
	} `json:"pull_request"`
}

// IsPullRequest reports whether the issue record is actually a pull request.
func (i *Issue) IsPullRequest() bool { return i.PullRequest != nil }

// HasLabel reports whether any label name contains the given fragment,
// case-insensitively.
func (i *Issue) HasLabel(fragment string) bool {
	fragment = strings.ToLower(fragment)
	for _, l := range i.Labels {
		if strings.Contains(strings.ToLower(l.Name), fragment) {
			return true
		}
	}
	return false
}

// Comment is an issue comment.
type Comment struct {
	Body      string    `json:"body"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	Reactions Reactions `json:"reactions"`
}

// Pull is a pull request from the pulls endpoint, carrying the merge and
// diff statistics the issues shape lacks.
type Pull struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	Body      string     `json:"body"`
	HTMLURL   string     `json:"html_url"`
	Merged    bool       `json:"merged"`
	MergedAt  *time.Time `json:"merged_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Commits   int        `json:"commits"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
	Files     int        `json:"changed_files"`
	Base      struct {
		Ref string `json:"ref"`
	} `json:"base"`
	Head struct {
		Ref string `json:"ref"`
	} `json:"head"`
}

// FileChange is one entry from the pull request files endpoint.
type FileChange struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// Compare is the two-dot comparison between a base and a head ref.
type Compare struct {
	HTMLURL      string       `json:"html_url"`
	TotalCommits int          `json:"total_commits"`
	Files        []FileChange `json:"files"`
	Commits      []struct {
		SHA    string `json:"sha"`
		Commit struct {
			Message string `json:"message"`
		} `json:"commit"`
	} `json:"commits"`
}

// Additions sums the added lines across changed files.
func (c *Compare) Additions() int {
	n := 0
	for _, f := range c.Files {
		n += f.Additions
	}
	return n
}

// Deletions sums the deleted lines across changed files.
func (c *Compare) Deletions() int {
	n := 0
	for _, f := range c.Files {
		n += f.Deletions
	}
	return n
}

// Contents is a file fetched through the contents endpoint.
type Contents struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	HTMLURL  string `json:"html_url"`
}

// Decode returns the decoded file body. GitHub delivers file contents
// base64-encoded with embedded newlines.
func (c *Contents) Decode() (string, error) {
	if c.Encoding != "base64" {
		return c.Content, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(c.Content, "\n", ""))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Advisory is a global security advisory scoped to a package ecosystem.
type Advisory struct {
	GHSAID          string    `json:"ghsa_id"`
	CVEID           string    `json:"cve_id"`
	Summary         string    `json:"summary"`
	Description     string    `json:"description"`
	Severity        string    `json:"severity"`
	HTMLURL         string    `json:"html_url"`
	PublishedAt     time.Time `json:"published_at"`
	Vulnerabilities []struct {
		Package struct {
			Ecosystem string `json:"ecosystem"`
			Name      string `json:"name"`
		} `json:"package"`
		VulnerableVersionRange string `json:"vulnerable_version_range"`
		FirstPatchedVersion    *struct {
			Identifier string `json:"identifier"`
		} `json:"first_patched_version"`
	} `json:"vulnerabilities"`
}
