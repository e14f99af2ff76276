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

package github

import (
	"errors"
	"fmt"
	"time"
)

// NotFoundError marks a 404. Callers convert it into a negative cache entry
// and skip the reference.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("github: %s: not found", e.Path)
}

// RateLimitedError is returned once the rate-limit retry budget is spent.
type RateLimitedError struct {
	Path     string
	Attempts int
	Rate     RateInfo
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("github: %s: rate limited after %d attempts (remaining=%d, reset=%s)",
		e.Path, e.Attempts, e.Rate.Remaining, e.Rate.ResetAt.Format(time.RFC3339))
}

// TransportError is returned once the transient transport retry budget is
// spent.
type TransportError struct {
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("github: %s: transport failure: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError marks a response body that could not be decoded as JSON.
type ParseError struct {
	Path    string
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("github: %s: parse failure: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AuthError marks a 401 or a non-rate-limit 403. The client skips the
// affected endpoint for the remainder of the run.
type AuthError struct {
	Path   string
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("github: %s: auth failure (status %d)", e.Path, e.Status)
}

// StatusError covers the remaining unexpected HTTP statuses.
type StatusError struct {
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github: %s: unexpected status %d", e.Path, e.Status)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsRateLimited reports whether err exhausted the rate-limit budget.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// IsAuthFailure reports whether err is a credential or permission failure.
func IsAuthFailure(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
