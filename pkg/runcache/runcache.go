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

// Package runcache provides the per-run memoization cache shared by every
// collector and enricher.
//
// The cache is process-scoped and discarded at run end: it exists to
// deduplicate work across call paths that naturally overlap within one
// digest run (the same issue reached from a release body, an issue stream,
// and a feed entry), not to persist anything. Negative results are memoized
// exactly like successes so a 404 is only ever discovered once.
package runcache

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Cache is a thread-safe map from (namespace, key) to an arbitrary value.
// Concurrent first fetches of the same key share one compute call.
type Cache struct {
	mu     sync.RWMutex
	values map[string]any
	group  singleflight.Group
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// New returns an empty cache. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		values: make(map[string]any),
		logger: logger,
	}
}

// Fetch returns the memoized value for (ns, key), invoking compute exactly
// once per run when absent. A (nil, nil) compute result is memoized as a
// negative entry; compute errors are returned without being memoized so a
// transient failure does not poison the run.
func (c *Cache) Fetch(ns, key string, compute func() (any, error)) (any, error) {
	ck := ns + "\x00" + key

	c.mu.RLock()
	v, ok := c.values[ck]
	c.mu.RUnlock()
	if ok {
		c.hit(ns, key, v)
		return v, nil
	}

	v, err, _ := c.group.Do(ck, func() (any, error) {
		// A concurrent caller may have stored the value while this one was
		// waiting on the flight group.
		c.mu.RLock()
		v, ok := c.values[ck]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}

		c.misses.Add(1)
		cacheMisses.WithLabelValues(ns).Inc()

		val, err := compute()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.values[ck] = val
		c.mu.Unlock()
		return val, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Cache) hit(ns, key string, v any) {
	c.hits.Add(1)
	cacheHits.WithLabelValues(ns).Inc()
	c.logger.Debug("cache.hit", "namespace", ns, "key", key, "value", Summary(v))
}

// Stats returns the hit and miss counts observed so far.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of memoized entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// FetchTyped is the typed convenience wrapper around Cache.Fetch. Callers
// instantiate T explicitly; compute stays untyped so a miss can memoize a
// plain nil. A negative entry comes back as the zero value of T with a nil
// error.
func FetchTyped[T any](c *Cache, ns, key string, compute func() (any, error)) (T, error) {
	var zero T
	v, err := c.Fetch(ns, key, compute)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		// Two call sites disagree on the type stored under this key.
		return zero, fmt.Errorf("runcache: %s/%s holds %T, caller wants %T", ns, key, v, zero)
	}
	return t, nil
}

// Summary renders a short description of a cached value for debug logs:
// type and size, never the full payload.
func Summary(v any) string {
	if v == nil {
		return "nil"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return fmt.Sprintf("string(len=%d)", rv.Len())
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("%T(len=%d)", v, rv.Len())
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		shown := len(keys)
		if shown > 3 {
			shown = 3
		}
		names := make([]string, 0, shown)
		for _, k := range keys[:shown] {
			names = append(names, fmt.Sprint(k.Interface()))
		}
		return fmt.Sprintf("%T(len=%d, keys=%v)", v, rv.Len(), names)
	case reflect.Ptr:
		if rv.IsNil() {
			return fmt.Sprintf("%T(nil)", v)
		}
		return fmt.Sprintf("%T", v)
	default:
		return fmt.Sprintf("%T", v)
	}
}
