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

// Package errors provides structured, user-facing errors for the CLI.
//
// A UserError carries a short title, a longer detail line, and a concrete
// suggestion so that failures tell the user what happened and what to do
// next. FatalError renders a UserError (or any error) to stderr in either
// human-readable or JSON form and exits non-zero.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Kind classifies a UserError for exit reporting and JSON output.
type Kind string

const (
	KindConfig     Kind = "config"
	KindInput      Kind = "input"
	KindNetwork    Kind = "network"
	KindPermission Kind = "permission"
	KindInternal   Kind = "internal"
)

// UserError is an error with enough context to be shown to a human.
type UserError struct {
	Kind       Kind
	Title      string
	Detail     string
	Suggestion string
	Cause      error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Title, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

// Unwrap returns the underlying cause, if any.
func (e *UserError) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, title, detail, suggestion string, cause error) *UserError {
	return &UserError{
		Kind:       kind,
		Title:      title,
		Detail:     detail,
		Suggestion: suggestion,
		Cause:      cause,
	}
}

// NewConfigError reports a problem with the configuration file or environment.
func NewConfigError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindConfig, title, detail, suggestion, cause)
}

// NewInputError reports invalid command-line input.
func NewInputError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindInput, title, detail, suggestion, cause)
}

// NewNetworkError reports a failure reaching an upstream service.
func NewNetworkError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindNetwork, title, detail, suggestion, cause)
}

// NewPermissionError reports a filesystem or credential permission failure.
func NewPermissionError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindPermission, title, detail, suggestion, cause)
}

// NewInternalError reports an unexpected condition (a bug).
func NewInternalError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindInternal, title, detail, suggestion, cause)
}

// jsonError is the wire shape used by FatalError in JSON mode.
type jsonError struct {
	Kind       Kind   `json:"kind"`
	Title      string `json:"title"`
	Detail     string `json:"detail,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Cause      string `json:"cause,omitempty"`
}

// FatalError prints err to stderr and exits with status 1.
//
// When jsonOutput is true the error is emitted as a single JSON object so
// that machine callers never have to scrape formatted text. Otherwise a
// multi-line human block is printed. Errors that are not *UserError are
// wrapped as internal errors.
func FatalError(err error, jsonOutput bool) {
	var ue *UserError
	if !errors.As(err, &ue) {
		ue = NewInternalError(
			"Unexpected error",
			err.Error(),
			"This is a bug. Please report it at github.com/kraklabs/techdigest/issues",
			err,
		)
	}

	if jsonOutput {
		je := jsonError{
			Kind:       ue.Kind,
			Title:      ue.Title,
			Detail:     ue.Detail,
			Suggestion: ue.Suggestion,
		}
		if ue.Cause != nil {
			je.Cause = ue.Cause.Error()
		}
		out, merr := json.Marshal(map[string]jsonError{"error": je})
		if merr != nil {
			fmt.Fprintf(os.Stderr, `{"error":{"kind":"internal","title":%q}}`+"\n", ue.Title)
		} else {
			fmt.Fprintln(os.Stderr, string(out))
		}
		osExit(1)
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %s\n", ue.Title)
	if ue.Detail != "" {
		fmt.Fprintf(os.Stderr, "\n  %s\n", ue.Detail)
	}
	if ue.Cause != nil {
		fmt.Fprintf(os.Stderr, "  cause: %v\n", ue.Cause)
	}
	if ue.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", ue.Suggestion)
	}
	osExit(1)
}

// osExit is a seam for tests.
var osExit = os.Exit
