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

package digest

import (
	"fmt"
	"strconv"

	"github.com/kraklabs/techdigest/internal/errors"
)

// Importance levels accepted by DIGEST_MIN_IMPORTANCE.
var importanceLevels = map[string]bool{
	"critical": true,
	"high":     true,
	"medium":   true,
	"low":      true,
}

// Settings holds the runtime toggles of one digest run. Values come from
// the environment; command-line flags may override them afterwards.
type Settings struct {
	LookbackDays      int
	MinImportance     string
	DeepPRCrawl       bool
	CollectParallel   bool
	MaxCollectThreads int // 0 = token-aware default
	MaxRepoThreads    int // 0 = token-aware default
	DryRun            bool
	GitHubToken       string
	LLMAPIKey         string
}

// DefaultSettings returns the settings used when no environment overrides
// are present.
func DefaultSettings() *Settings {
	return &Settings{
		LookbackDays:    7,
		MinImportance:   "medium",
		DeepPRCrawl:     true,
		CollectParallel: true,
	}
}

// LoadSettings builds Settings from defaults plus environment overrides.
// getenv is injectable for tests; pass os.Getenv in production.
func LoadSettings(getenv func(string) string) (*Settings, error) {
	s := DefaultSettings()
	s.GitHubToken = getenv("GITHUB_TOKEN")
	s.LLMAPIKey = getenv("LLM_API_KEY")

	if v := getenv("LOOKBACK_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, errors.NewConfigError(
				"Invalid LOOKBACK_DAYS",
				fmt.Sprintf("LOOKBACK_DAYS is %q, expected a positive integer", v),
				"Set LOOKBACK_DAYS to the number of days to look back, e.g. 7",
				err,
			)
		}
		s.LookbackDays = n
	}

	if v := getenv("DIGEST_MIN_IMPORTANCE"); v != "" {
		if !importanceLevels[v] {
			return nil, errors.NewConfigError(
				"Invalid DIGEST_MIN_IMPORTANCE",
				fmt.Sprintf("DIGEST_MIN_IMPORTANCE is %q", v),
				"Use one of: critical, high, medium, low",
				nil,
			)
		}
		s.MinImportance = v
	}

	for _, b := range []struct {
		env string
		dst *bool
	}{
		{"DEEP_PR_CRAWL", &s.DeepPRCrawl},
		{"COLLECT_PARALLEL", &s.CollectParallel},
		{"DRY_RUN", &s.DryRun},
	} {
		v := getenv(b.env)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.NewConfigError(
				"Invalid "+b.env,
				fmt.Sprintf("%s is %q, expected a boolean", b.env, v),
				"Use true or false",
				err,
			)
		}
		*b.dst = parsed
	}

	for _, n := range []struct {
		env string
		dst *int
	}{
		{"MAX_COLLECT_THREADS", &s.MaxCollectThreads},
		{"MAX_REPO_THREADS", &s.MaxRepoThreads},
	} {
		v := getenv(n.env)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, errors.NewConfigError(
				"Invalid "+n.env,
				fmt.Sprintf("%s is %q, expected a positive integer", n.env, v),
				"Set a positive thread count or unset to use the token-aware default",
				err,
			)
		}
		*n.dst = parsed
	}

	return s, nil
}

// HasToken reports whether a GitHub token is configured. Several policies
// hinge on this: page sizes, pagination enablement, reference caps, and the
// default worker pool sizes.
func (s *Settings) HasToken() bool {
	return s.GitHubToken != ""
}

// ThreadCaps resolves the effective worker pool sizes. Explicit settings
// win; otherwise 4 source / 3 repo workers with a token, 2/2 without.
func (s *Settings) ThreadCaps() (collectThreads, repoThreads int) {
	collectThreads = s.MaxCollectThreads
	repoThreads = s.MaxRepoThreads
	if collectThreads <= 0 {
		if s.HasToken() {
			collectThreads = 4
		} else {
			collectThreads = 2
		}
	}
	if repoThreads <= 0 {
		if s.HasToken() {
			repoThreads = 3
		} else {
			repoThreads = 2
		}
	}
	return collectThreads, repoThreads
}
