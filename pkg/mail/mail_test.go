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

package mail

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopSendLogsAndSucceeds(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	n := NewNop(logger)
	err := n.Send(context.Background(), Message{
		Subject: "Weekly Technology Digest",
		HTML:    "<html></html>",
		To:      []string{"team@example.com"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "mail.skipped")
	assert.Contains(t, out, "Weekly Technology Digest")
	assert.Contains(t, out, "recipients=1")
}

func TestNopNilLogger(t *testing.T) {
	n := NewNop(nil)
	assert.NoError(t, n.Send(context.Background(), Message{}))
}
