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

	"github.com/kraklabs/techdigest/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags holds the global CLI flags that apply to all commands.
type GlobalFlags struct {
	JSON    bool // Output in JSON format (for applicable commands)
	NoColor bool // Disable color output
	Verbose int  // Verbosity level: 0=normal, 1=-v (info), 2=-vv (debug)
	Quiet   bool // Suppress non-essential output (progress, info messages)
}

// main is the entry point for the techdigest CLI.
//
// It parses global flags and dispatches to command handlers.
//
// Global flags:
//   - --version: Display version information and exit
//   - --config: Path to the digest.yaml sources file
//
// Commands:
//   - run: Collect all sources and produce the digest
//   - init: Create a starter digest.yaml sources file
//   - sources: Validate and display the sources file
func main() {
	// Global flags with short forms
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to the sources file (default: ./digest.yaml)")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format (for applicable commands)")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for info, -vv for debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output (progress, info messages)")
	)

	// Stop parsing at the first non-flag argument (the command name).
	// This allows subcommand-specific flags like "run --dry-run" or
	// "init --force" to be passed through to subcommand handlers instead
	// of being rejected by the global flag parser.
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `techdigest - Weekly Technology Digest

techdigest collects recent activity from GitHub repositories, package
registries, the GitHub advisory database, and RSS/Atom feeds, enriches
it with cross-referenced pull-request context, and renders one weekly
HTML digest grouped into frontend, backend, and devops sections.

Usage:
  techdigest <command> [options]

Commands:
  run       Collect all sources and produce the digest
  init      Create a starter digest.yaml sources file
  sources   Validate and display the sources file

Global Options:
  --json            Output in JSON format (for applicable commands)
  --no-color        Disable color output (respects NO_COLOR env var)
  -v, --verbose     Increase verbosity (-v for info, -vv for debug)
  -q, --quiet       Suppress non-essential output (progress, info messages)
  -c, --config      Path to the sources file (default: ./digest.yaml)
  -V, --version     Show version and exit

Examples:
  techdigest init                    Create digest.yaml with starter sources
  techdigest run                     Collect and produce the digest
  techdigest run --dry-run           Render digest_preview.html, skip mail
  techdigest run --lookback 3        Use a three-day window for this run
  techdigest sources                 Show the parsed sources file
  techdigest sources --json          Dump the parsed sources as JSON

Getting Started:
  1. Create a sources file:     techdigest init
  2. Export a GitHub token:     export GITHUB_TOKEN=...
  3. Render a local preview:    techdigest run --dry-run

Environment Variables:
  GITHUB_TOKEN           Bearer token for api.github.com (optional)
  TECHDIGEST_CONFIG      Path to the sources file
  LOOKBACK_DAYS          Collection window in days (default: 7)
  DIGEST_MIN_IMPORTANCE  Minimum importance kept (default: medium)

For detailed command help: techdigest <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("techdigest version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	// Check NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}

	// Validate conflicting flags
	if *quiet && *verbose > 0 {
		fmt.Fprintf(os.Stderr, "Error: cannot use --quiet and --verbose together\n")
		os.Exit(1)
	}

	// JSON mode auto-enables quiet to prevent progress bars corrupting JSON output
	if *jsonOutput {
		*quiet = true
	}

	// Build GlobalFlags struct
	globals := GlobalFlags{
		JSON:    *jsonOutput,
		NoColor: *noColor,
		Verbose: *verbose,
		Quiet:   *quiet,
	}

	// Initialize color output based on flags
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "run":
		runRun(cmdArgs, *configPath, globals)
	case "init":
		runInit(cmdArgs, *configPath, globals)
	case "sources":
		runSources(cmdArgs, *configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
