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
	"github.com/kraklabs/techdigest/pkg/text"
)

const (
	advisorySourceLabel = "GitHub Advisories"
	advisoryBodyChars   = 2000
)

// AdvisoryConfig configures an AdvisoryCollector for one category.
type AdvisoryConfig struct {
	Ecosystems []string
	Cutoff     time.Time
	Now        time.Time
}

// AdvisoryCollector emits the security advisories published inside the
// window for the configured package ecosystems.
type AdvisoryCollector struct {
	cfg    AdvisoryConfig
	api    *github.API
	logger *slog.Logger
}

// NewAdvisoryCollector builds the collector.
func NewAdvisoryCollector(cfg AdvisoryConfig, api *github.API, logger *slog.Logger) *AdvisoryCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdvisoryCollector{cfg: cfg, api: api, logger: logger}
}

func (c *AdvisoryCollector) Name() string { return "advisories" }

// Collect queries each ecosystem sequentially; the advisory endpoint is
// global, so there is no per-repo fan-out to parallelize.
func (c *AdvisoryCollector) Collect(ctx context.Context) ([]digest.Item, error) {
	var items []digest.Item
	for _, ecosystem := range c.cfg.Ecosystems {
		if ctx.Err() != nil {
			break
		}
		advisories, err := c.api.GlobalAdvisories(ctx, ecosystem, c.cfg.Cutoff, c.cfg.Now)
		if err != nil {
			c.logger.Warn("collect.advisories.failed",
				"ecosystem", ecosystem, "error", err.Error())
			continue
		}
		for _, adv := range advisories {
			if adv.Summary == "" || adv.HTMLURL == "" || adv.PublishedAt.Before(c.cfg.Cutoff) {
				continue
			}
			items = append(items, digest.Item{
				Title:       "[Security] " + adv.Summary,
				URL:         adv.HTMLURL,
				PublishedAt: adv.PublishedAt,
				Body:        advisoryBody(adv),
				Source:      advisorySourceLabel,
			})
			itemsCollected.WithLabelValues(c.Name()).Inc()
		}
	}
	return items, nil
}

func advisoryBody(adv github.Advisory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Severity: %s", adv.Severity)
	if adv.GHSAID != "" {
		fmt.Fprintf(&b, " | %s", adv.GHSAID)
	}
	if adv.CVEID != "" {
		fmt.Fprintf(&b, " | %s", adv.CVEID)
	}
	b.WriteString("\n")

	for _, vuln := range adv.Vulnerabilities {
		fmt.Fprintf(&b, "Affected: %s (%s) %s",
			vuln.Package.Name, vuln.Package.Ecosystem, vuln.VulnerableVersionRange)
		if vuln.FirstPatchedVersion != nil {
			fmt.Fprintf(&b, ", patched in %s", vuln.FirstPatchedVersion.Identifier)
		}
		b.WriteString("\n")
	}

	if desc := text.CollapseWhitespace(adv.Description); desc != "" {
		fmt.Fprintf(&b, "\n%s", desc)
	}
	return text.Truncate(strings.TrimSpace(b.String()), advisoryBodyChars)
}
