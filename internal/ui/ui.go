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

// Package ui provides styled terminal output helpers shared by all commands.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Shared color styles. Commands use these directly for one-off styling.
var (
	Bold   = color.New(color.Bold)
	Cyan   = color.New(color.FgCyan)
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Red    = color.New(color.FgRed)
	Dim    = color.New(color.Faint)
)

// InitColors disables color output when requested by flag, by the NO_COLOR
// convention, or when stdout is not a terminal.
func InitColors(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// Header prints a bold section header with an underline.
func Header(text string) {
	fmt.Println()
	_, _ = Bold.Println(text)
	fmt.Println(strings.Repeat("─", len([]rune(text))))
}

// SubHeader prints a cyan sub-section header.
func SubHeader(text string) {
	_, _ = Cyan.Println(text)
}

// Label returns a bold label string for key/value output.
func Label(text string) string {
	return Bold.Sprint(text)
}

// DimText returns a dimmed string for secondary details.
func DimText(text string) string {
	return Dim.Sprint(text)
}

// CountText returns a green-styled count for statistics lines.
func CountText(n int) string {
	return Green.Sprintf("%d", n)
}

// Info prints an informational line.
func Info(text string) {
	fmt.Printf("%s %s\n", Cyan.Sprint("•"), text)
}

// Infof prints a formatted informational line.
func Infof(format string, args ...interface{}) {
	Info(fmt.Sprintf(format, args...))
}

// Warning prints a warning line to stderr.
func Warning(text string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", Yellow.Sprint("!"), text)
}

// Warningf prints a formatted warning line to stderr.
func Warningf(format string, args ...interface{}) {
	Warning(fmt.Sprintf(format, args...))
}

// Success prints a success line.
func Success(text string) {
	fmt.Printf("%s %s\n", Green.Sprint("✓"), text)
}

// Successf prints a formatted success line.
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}
