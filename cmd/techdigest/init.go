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

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/techdigest/internal/errors"
	"github.com/kraklabs/techdigest/internal/ui"
)

// runInit executes the 'init' CLI command, creating a starter digest.yaml
// sources file.
//
// The scaffold tracks a handful of well-known projects per category so a
// fresh install produces a non-empty digest before any editing. The file is
// written to ./digest.yaml unless --config points elsewhere.
//
// Flags:
//   - --force: Overwrite an existing sources file (default: false)
//
// Examples:
//
//	techdigest init               Create ./digest.yaml
//	techdigest init --force       Recreate it from the scaffold
//	techdigest -c conf/d.yaml init  Create the file at a custom path
func runInit(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing sources file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: techdigest init [options]

Description:
  Create a starter digest.yaml sources file in the current directory.

  The file defines, per category (frontend, backend, devops), the GitHub
  repositories, RSS/Atom feeds, registry packages, and advisory
  ecosystems one run collects. The scaffold tracks a handful of
  well-known projects; edit it to match what your team follows.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Create ./digest.yaml
  techdigest init

  # Recreate it from the scaffold
  techdigest init --force

  # Create the file at a custom path
  techdigest -c conf/digest.yaml init

Notes:
  'techdigest sources' validates and displays the file after editing.

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	target := configPath
	if target == "" {
		target = defaultSourcesFile
	}

	if _, err := os.Stat(target); err == nil && !*force {
		errors.FatalError(errors.NewInputError(
			"Sources file already exists",
			fmt.Sprintf("%s already exists", target),
			"Use 'techdigest init --force' to overwrite it",
			nil,
		), globals.JSON)
	}

	if err := os.WriteFile(target, []byte(defaultSourcesYAML), 0o644); err != nil {
		errors.FatalError(errors.NewPermissionError(
			"Cannot write sources file",
			fmt.Sprintf("Permission denied writing to %s", target),
			"Check directory permissions and available disk space",
			err,
		), globals.JSON)
	}

	ui.Successf("Created %s", target)
	fmt.Println()
	ui.SubHeader("Next steps:")
	fmt.Printf("  1. Edit %s to track your own repos, feeds, and packages\n", ui.DimText(target))
	fmt.Printf("  2. Export %s to raise GitHub rate limits\n", ui.Cyan.Sprint("GITHUB_TOKEN"))
	fmt.Printf("  3. Run '%s' to render a local preview\n", ui.Cyan.Sprint("techdigest run --dry-run"))
}
