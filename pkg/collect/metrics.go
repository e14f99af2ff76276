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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "techdigest_items_collected_total",
		Help: "Items emitted by collectors, labeled by source kind.",
	}, []string{"source"})

	jobFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "techdigest_collect_job_failures_total",
		Help: "Source jobs that failed and were reduced to empty results.",
	}, []string{"category"})

	categoryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "techdigest_category_duration_seconds",
		Help:    "Wall time to collect one category.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"category"})
)
