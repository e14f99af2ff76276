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
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/kraklabs/techdigest/pkg/digest"
	"github.com/kraklabs/techdigest/pkg/runcache"
)

const registryHTTPTimeout = 30 * time.Second

// RegistryConfig configures a RegistryCollector for one category. The base
// URLs default to the public registries and exist for tests.
type RegistryConfig struct {
	Registries []digest.RegistryRef
	Cutoff     time.Time

	NPMBaseURL      string
	RubyGemsBaseURL string
	PyPIBaseURL     string

	HTTPClient *http.Client
}

// RegistryCollector looks up the latest published version of each
// configured package on npm, RubyGems or PyPI and emits an item when that
// version landed inside the window.
type RegistryCollector struct {
	cfg        RegistryConfig
	httpClient *http.Client
	cache      *runcache.Cache
	logger     *slog.Logger
}

// NewRegistryCollector builds the collector.
func NewRegistryCollector(cfg RegistryConfig, cache *runcache.Cache, logger *slog.Logger) *RegistryCollector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NPMBaseURL == "" {
		cfg.NPMBaseURL = "https://registry.npmjs.org"
	}
	if cfg.RubyGemsBaseURL == "" {
		cfg.RubyGemsBaseURL = "https://rubygems.org"
	}
	if cfg.PyPIBaseURL == "" {
		cfg.PyPIBaseURL = "https://pypi.org"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		httpClient.Timeout = registryHTTPTimeout
	}
	return &RegistryCollector{cfg: cfg, httpClient: httpClient, cache: cache, logger: logger}
}

func (c *RegistryCollector) Name() string { return "registries" }

// Collect resolves each package sequentially; registry endpoints are cheap
// single GETs and per-category package lists are short.
func (c *RegistryCollector) Collect(ctx context.Context) ([]digest.Item, error) {
	var items []digest.Item
	for _, ref := range c.cfg.Registries {
		if ctx.Err() != nil {
			break
		}
		item, err := c.lookup(ctx, ref)
		if err != nil {
			c.logger.Warn("collect.registry.lookup_failed",
				"registry", string(ref.Kind), "package", ref.Name, "error", err.Error())
			continue
		}
		if item == nil {
			continue
		}
		items = append(items, *item)
		itemsCollected.WithLabelValues(c.Name()).Inc()
	}
	return items, nil
}

// release is the normalized registry answer: one version and its timestamp.
type registryRelease struct {
	Version     string
	PublishedAt time.Time
	URL         string
	Summary     string
}

func (c *RegistryCollector) lookup(ctx context.Context, ref digest.RegistryRef) (*digest.Item, error) {
	key := string(ref.Kind) + "/" + ref.Name
	rel, err := runcache.FetchTyped[*registryRelease](c.cache, "registry", key, func() (any, error) {
		switch ref.Kind {
		case digest.RegistryNPM:
			return c.lookupNPM(ctx, ref.Name)
		case digest.RegistryRubyGems:
			return c.lookupRubyGems(ctx, ref.Name)
		case digest.RegistryPyPI:
			return c.lookupPyPI(ctx, ref.Name)
		default:
			return nil, fmt.Errorf("registry: unknown kind %q", ref.Kind)
		}
	})
	if err != nil {
		return nil, err
	}
	if rel == nil || rel.Version == "" || rel.PublishedAt.Before(c.cfg.Cutoff) {
		return nil, nil
	}

	return &digest.Item{
		Title:       fmt.Sprintf("%s %s released", ref.Name, rel.Version),
		URL:         rel.URL,
		PublishedAt: rel.PublishedAt,
		Body:        registryBody(ref, rel),
		Source:      sourceLabel(ref.Kind),
	}, nil
}

func sourceLabel(kind digest.RegistryKind) string {
	switch kind {
	case digest.RegistryNPM:
		return "npm"
	case digest.RegistryRubyGems:
		return "RubyGems"
	case digest.RegistryPyPI:
		return "PyPI"
	default:
		return string(kind)
	}
}

func registryBody(ref digest.RegistryRef, rel *registryRelease) string {
	body := fmt.Sprintf("Version %s published on %s (%s).",
		rel.Version, sourceLabel(ref.Kind), rel.PublishedAt.Format("2006-01-02"))
	if rel.Summary != "" {
		body += "\n" + rel.Summary
	}
	return body
}

// lookupNPM reads the packument: dist-tags.latest plus the time map.
func (c *RegistryCollector) lookupNPM(ctx context.Context, name string) (*registryRelease, error) {
	var doc struct {
		DistTags    map[string]string `json:"dist-tags"`
		Time        map[string]string `json:"time"`
		Description string            `json:"description"`
	}
	endpoint := c.cfg.NPMBaseURL + "/" + url.PathEscape(name)
	if err := c.getJSON(ctx, endpoint, &doc); err != nil {
		return nil, err
	}
	latest := doc.DistTags["latest"]
	if latest == "" {
		return nil, nil
	}
	published, err := time.Parse(time.RFC3339, doc.Time[latest])
	if err != nil {
		return nil, fmt.Errorf("npm: missing publish time for %s@%s", name, latest)
	}
	return &registryRelease{
		Version:     latest,
		PublishedAt: published.UTC(),
		URL:         "https://www.npmjs.com/package/" + name,
		Summary:     doc.Description,
	}, nil
}

// lookupRubyGems reads the versions list, newest first.
func (c *RegistryCollector) lookupRubyGems(ctx context.Context, name string) (*registryRelease, error) {
	var versions []struct {
		Number    string    `json:"number"`
		CreatedAt time.Time `json:"created_at"`
		Summary   string    `json:"summary"`
	}
	endpoint := c.cfg.RubyGemsBaseURL + "/api/v1/versions/" + url.PathEscape(name) + ".json"
	if err := c.getJSON(ctx, endpoint, &versions); err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, nil
	}
	latest := versions[0]
	return &registryRelease{
		Version:     latest.Number,
		PublishedAt: latest.CreatedAt.UTC(),
		URL:         "https://rubygems.org/gems/" + name,
		Summary:     latest.Summary,
	}, nil
}

// lookupPyPI reads the project JSON: info.version plus the newest upload
// time among its files.
func (c *RegistryCollector) lookupPyPI(ctx context.Context, name string) (*registryRelease, error) {
	var doc struct {
		Info struct {
			Version string `json:"version"`
			Summary string `json:"summary"`
		} `json:"info"`
		URLs []struct {
			UploadTime time.Time `json:"upload_time_iso_8601"`
		} `json:"urls"`
	}
	endpoint := c.cfg.PyPIBaseURL + "/pypi/" + url.PathEscape(name) + "/json"
	if err := c.getJSON(ctx, endpoint, &doc); err != nil {
		return nil, err
	}
	if doc.Info.Version == "" {
		return nil, nil
	}
	var published time.Time
	for _, u := range doc.URLs {
		if u.UploadTime.After(published) {
			published = u.UploadTime
		}
	}
	if published.IsZero() {
		return nil, fmt.Errorf("pypi: no upload time for %s %s", name, doc.Info.Version)
	}
	return &registryRelease{
		Version:     doc.Info.Version,
		PublishedAt: published.UTC(),
		URL:         "https://pypi.org/project/" + name + "/",
		Summary:     doc.Info.Summary,
	}, nil
}

func (c *RegistryCollector) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("registry: %s not found", endpoint)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry: %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("registry: %s: %w", endpoint, err)
	}
	return nil
}
