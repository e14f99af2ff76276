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
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kraklabs/techdigest/pkg/digest"
	"github.com/kraklabs/techdigest/pkg/github"
	"github.com/kraklabs/techdigest/pkg/resolve"
	"github.com/kraklabs/techdigest/pkg/runcache"
)

var widgetRepo = digest.RepoRef{Owner: "acme", Name: "widget", DisplayName: "Widget"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pathCounter records how often each request path was served.
type pathCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newPathCounter() *pathCounter {
	return &pathCounter{counts: make(map[string]int)}
}

func (p *pathCounter) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.counts[r.URL.Path]++
		p.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (p *pathCounter) get(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[path]
}

// newTestStack spins up an API server plus the resolver/cache plumbing the
// collectors need. token selects authenticated or anonymous behavior.
func newTestStack(t *testing.T, token string, handler http.Handler) (*resolve.Resolver, *runcache.Cache) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := github.NewClient(github.Config{
		Token:   token,
		BaseURL: srv.URL,
		Logger:  testLogger(),
	})
	cache := runcache.New(testLogger())
	api := github.NewAPI(client, cache, testLogger())
	return resolve.NewResolver(api, digest.CategoryBackend, testLogger()), cache
}

func contentsJSON(body string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(body))
	return fmt.Sprintf(`{"name":"CHANGELOG.md","encoding":"base64","content":%q}`, encoded)
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad time fixture %q: %v", value, err)
	}
	return parsed
}
