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

// Package collect gathers digest items from the configured sources:
// repository releases, issue streams, security advisories, package
// registries and syndication feeds. The orchestrator fans the source jobs
// out over bounded worker pools per category and reduces the results to one
// deterministic, deduplicated item list.
package collect

import (
	"context"

	"github.com/kraklabs/techdigest/pkg/digest"
)

// Collector is one source kind inside a category. Implementations are
// Release, Issues, Advisory, Feed and Registry.
type Collector interface {
	// Name identifies the source kind in logs and progress output.
	Name() string

	// Collect fetches and converts the source into canonical items. A
	// returned error means the whole job failed; partial failures inside
	// a job are logged and skipped instead.
	Collect(ctx context.Context) ([]digest.Item, error)
}
