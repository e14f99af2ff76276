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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/techdigest/internal/errors"
	"github.com/kraklabs/techdigest/internal/ui"
	"github.com/kraklabs/techdigest/pkg/digest"
	"github.com/kraklabs/techdigest/pkg/render"
)

// sourcesReport represents the parsed sources file for JSON output.
type sourcesReport struct {
	Path       string                  `json:"path"`
	Version    int                     `json:"version"`
	Categories []sourcesCategoryReport `json:"categories"`
}

type sourcesCategoryReport struct {
	Category   digest.Category `json:"category"`
	Repos      []string        `json:"repos"`
	Feeds      []string        `json:"feeds"`
	Registries []string        `json:"registries"`
	Advisories []string        `json:"advisories"`
}

// runSources executes the 'sources' CLI command, validating and displaying
// the sources file.
//
// Loading runs the full strict validation (unknown keys, owner/name form,
// strategy and ecosystem enums), so this command doubles as a lint step
// after editing the file.
//
// Global flags from main:
//   - --json: Output the parsed sources as JSON (from globals.JSON)
//
// Examples:
//
//	techdigest sources           Display the parsed sources
//	techdigest sources --json    Output as JSON for programmatic use
func runSources(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("sources", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: techdigest sources [options]

Description:
  Validate the digest.yaml sources file and display what one run will
  collect, grouped by category.

  Loading runs the same strict validation as 'techdigest run': unknown
  keys, malformed repo names, and unrecognized release strategies or
  advisory ecosystems are all rejected with the offending entry named.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Validate and display the sources file
  techdigest sources

  # Output as JSON for programmatic use
  techdigest sources --json

  # Count tracked repositories with jq
  techdigest sources --json | jq '[.categories[].repos | length] | add'

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	path, err := resolveSourcesPath(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	sources, err := digest.LoadSources(path)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	report := sourcesReport{Path: path, Version: sources.Version}
	for _, category := range digest.Categories() {
		cs := sources.Category(category)
		cr := sourcesCategoryReport{Category: category}
		for _, r := range cs.Repos {
			cr.Repos = append(cr.Repos, r.FullName())
		}
		for _, f := range cs.Feeds {
			cr.Feeds = append(cr.Feeds, f.URL)
		}
		for _, r := range cs.Registries {
			cr.Registries = append(cr.Registries, fmt.Sprintf("%s/%s", r.Kind, r.Name))
		}
		cr.Advisories = append(cr.Advisories, cs.Advisories...)
		report.Categories = append(report.Categories, cr)
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return
	}

	printSourcesReport(report)
}

// printSourcesReport prints the parsed sources as formatted text to stdout.
func printSourcesReport(report sourcesReport) {
	ui.Header("Digest Sources")
	fmt.Printf("%s %s\n", ui.Label("File:"), ui.DimText(report.Path))
	ui.Success("Sources file is valid")

	for _, cr := range report.Categories {
		fmt.Println()
		ui.SubHeader(render.SectionTitle(cr.Category) + ":")
		printSourceGroup("Repos", cr.Repos)
		printSourceGroup("Feeds", cr.Feeds)
		printSourceGroup("Registries", cr.Registries)
		printSourceGroup("Advisories", cr.Advisories)
	}
}

// printSourceGroup prints one labeled source list on a single line.
func printSourceGroup(label string, values []string) {
	if len(values) == 0 {
		fmt.Printf("  %-11s %s  %s\n", label+":", ui.CountText(0), ui.DimText("none"))
		return
	}
	fmt.Printf("  %-11s %s  %s\n", label+":", ui.CountText(len(values)), ui.DimText(strings.Join(values, ", ")))
}
