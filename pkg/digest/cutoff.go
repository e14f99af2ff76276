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

import "time"

// The lookback window is anchored to full-day boundaries in UTC+8,
// independent of the host timezone, so two machines running the same day
// compute the same cutoff.
var cutoffZone = time.FixedZone("UTC+8", 8*60*60)

// Cutoff returns the instant before which items are discarded:
// today's midnight in UTC+8 minus lookbackDays.
func Cutoff(now time.Time, lookbackDays int) time.Time {
	local := now.In(cutoffZone)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, cutoffZone)
	return midnight.AddDate(0, 0, -lookbackDays)
}
