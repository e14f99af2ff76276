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

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserErrorMessage(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := NewNetworkError("Cannot reach GitHub", "GET /repos failed", "Check connectivity", cause)

	assert.Equal(t, KindNetwork, err.Kind)
	assert.Contains(t, err.Error(), "Cannot reach GitHub")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestUserErrorWithoutCause(t *testing.T) {
	err := NewConfigError("Invalid configuration", "bad value", "fix it", nil)
	assert.Equal(t, "Invalid configuration: bad value", err.Error())
	assert.Nil(t, stderrors.Unwrap(err))
}

func TestConstructorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want Kind
	}{
		{"config", NewConfigError("t", "d", "s", nil), KindConfig},
		{"input", NewInputError("t", "d", "s", nil), KindInput},
		{"network", NewNetworkError("t", "d", "s", nil), KindNetwork},
		{"permission", NewPermissionError("t", "d", "s", nil), KindPermission},
		{"internal", NewInternalError("t", "d", "s", nil), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.want {
				t.Errorf("Kind = %q, want %q", tt.err.Kind, tt.want)
			}
		})
	}
}

func TestErrorsAsThroughWrap(t *testing.T) {
	inner := NewInputError("Bad flag", "unknown category", "use frontend|backend|devops", nil)
	wrapped := fmt.Errorf("run: %w", inner)

	var ue *UserError
	require.True(t, stderrors.As(wrapped, &ue))
	assert.Equal(t, "Bad flag", ue.Title)
}

func TestFatalErrorExits(t *testing.T) {
	exited := -1
	old := osExit
	osExit = func(code int) { exited = code }
	defer func() { osExit = old }()

	FatalError(NewInternalError("boom", "detail", "report it", nil), true)
	assert.Equal(t, 1, exited)

	exited = -1
	FatalError(fmt.Errorf("plain error"), false)
	assert.Equal(t, 1, exited)
}
