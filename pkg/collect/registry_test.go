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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/techdigest/pkg/digest"
	"github.com/kraklabs/techdigest/pkg/runcache"
)

// registryMux serves one fresh package per registry plus a stale npm one.
func registryMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/react", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"dist-tags":{"latest":"19.2.0"},
			"description":"A library for building user interfaces.",
			"time":{"19.1.0":"2026-01-10T10:00:00Z","19.2.0":"2026-02-12T10:00:00Z"}}`)
	})
	mux.HandleFunc("/left-pad", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"dist-tags":{"latest":"1.3.0"},
			"time":{"1.3.0":"2024-03-01T10:00:00Z"}}`)
	})
	mux.HandleFunc("/api/v1/versions/rails.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"number":"8.1.0","created_at":"2026-02-11T09:00:00Z","summary":"Full-stack web framework."},
			{"number":"8.0.2","created_at":"2026-01-05T09:00:00Z","summary":"Full-stack web framework."}
		]`)
	})
	mux.HandleFunc("/pypi/django/json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"info":{"version":"6.0.1","summary":"High-level Python web framework."},
			"urls":[
				{"upload_time_iso_8601":"2026-02-10T08:00:00Z"},
				{"upload_time_iso_8601":"2026-02-10T08:05:00Z"}
			]}`)
	})
	return mux
}

func newRegistryCollector(t *testing.T, handler http.Handler, refs []digest.RegistryRef) *RegistryCollector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRegistryCollector(RegistryConfig{
		Registries:      refs,
		Cutoff:          mustTime(t, "2026-02-01T00:00:00Z"),
		NPMBaseURL:      srv.URL,
		RubyGemsBaseURL: srv.URL,
		PyPIBaseURL:     srv.URL,
	}, runcache.New(testLogger()), testLogger())
}

func TestRegistryCollectorAllKinds(t *testing.T) {
	c := newRegistryCollector(t, registryMux(), []digest.RegistryRef{
		{Kind: digest.RegistryNPM, Name: "react"},
		{Kind: digest.RegistryRubyGems, Name: "rails"},
		{Kind: digest.RegistryPyPI, Name: "django"},
	})

	items, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)

	npm := items[0]
	assert.Equal(t, "react 19.2.0 released", npm.Title)
	assert.Equal(t, "https://www.npmjs.com/package/react", npm.URL)
	assert.Equal(t, "npm", npm.Source)
	assert.Equal(t, mustTime(t, "2026-02-12T10:00:00Z"), npm.PublishedAt)
	assert.Contains(t, npm.Body, "Version 19.2.0 published on npm (2026-02-12).")
	assert.Contains(t, npm.Body, "A library for building user interfaces.")

	gems := items[1]
	assert.Equal(t, "rails 8.1.0 released", gems.Title)
	assert.Equal(t, "https://rubygems.org/gems/rails", gems.URL)
	assert.Equal(t, "RubyGems", gems.Source)
	assert.Equal(t, mustTime(t, "2026-02-11T09:00:00Z"), gems.PublishedAt)

	pypi := items[2]
	assert.Equal(t, "django 6.0.1 released", pypi.Title)
	assert.Equal(t, "https://pypi.org/project/django/", pypi.URL)
	assert.Equal(t, "PyPI", pypi.Source)
	// Newest upload among the files wins.
	assert.Equal(t, mustTime(t, "2026-02-10T08:05:00Z"), pypi.PublishedAt)
}

func TestRegistryCollectorSkipsStaleVersions(t *testing.T) {
	c := newRegistryCollector(t, registryMux(), []digest.RegistryRef{
		{Kind: digest.RegistryNPM, Name: "left-pad"},
	})

	items, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items, "a latest version older than the window emits nothing")
}

func TestRegistryCollectorLookupFailureDegrades(t *testing.T) {
	c := newRegistryCollector(t, registryMux(), []digest.RegistryRef{
		{Kind: digest.RegistryNPM, Name: "no-such-package"},
		{Kind: digest.RegistryRubyGems, Name: "rails"},
	})

	items, err := c.Collect(context.Background())
	require.NoError(t, err, "a missing package is logged, not fatal")
	require.Len(t, items, 1)
	assert.Equal(t, "rails 8.1.0 released", items[0].Title)
}

func TestRegistryCollectorCachesLookups(t *testing.T) {
	counter := newPathCounter()
	c := newRegistryCollector(t, counter.wrap(registryMux()), []digest.RegistryRef{
		{Kind: digest.RegistryNPM, Name: "react"},
		{Kind: digest.RegistryNPM, Name: "react"},
	})

	items, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 1, counter.get("/react"), "duplicate packages share one packument fetch")
}
