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

// Package main implements the techdigest CLI, the weekly technology
// digest collector.
//
// techdigest gathers recent activity from configured GitHub repositories,
// package registries, the GitHub advisory database, and RSS/Atom feeds,
// enriches each item with cross-referenced pull-request and compare
// context, and renders one HTML digest grouped into frontend, backend,
// and devops sections.
//
// # Quick Start
//
// Create a starter sources file in your working directory:
//
//	techdigest init
//
// Render a local preview without touching the mail step:
//
//	techdigest run --dry-run
//
// Produce the digest for delivery:
//
//	techdigest run
//
// # Commands
//
// The CLI provides these commands:
//
//	run       Collect all sources and produce the digest
//	init      Create a starter digest.yaml sources file
//	sources   Validate and display the sources file
//
// # Configuration
//
// Source lists live in digest.yaml, discovered in the current directory
// or any parent (override with --config or TECHDIGEST_CONFIG). Runtime
// behavior comes from environment variables such as GITHUB_TOKEN,
// LOOKBACK_DAYS, and DIGEST_MIN_IMPORTANCE; 'techdigest run --help'
// lists them all.
//
// A scheduler is intentionally absent. Run the binary from cron or a CI
// job at whatever cadence the digest should ship.
package main
