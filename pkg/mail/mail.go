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

// Package mail is the outbound delivery boundary. The digest pipeline hands
// a rendered document to whatever Mailer is wired in; without a configured
// transport that is the Nop mailer, which logs and drops.
package mail

import (
	"context"
	"log/slog"
)

// Message is one rendered digest ready for delivery.
type Message struct {
	Subject string
	HTML    string
	To      []string
}

// Mailer delivers digest messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Nop drops every message and records that it did.
type Nop struct {
	logger *slog.Logger
}

// NewNop builds the no-op mailer. A nil logger falls back to slog.Default().
func NewNop(logger *slog.Logger) *Nop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Nop{logger: logger}
}

// Send logs the skip and succeeds.
func (n *Nop) Send(ctx context.Context, msg Message) error {
	n.logger.Info("mail.skipped",
		"subject", msg.Subject,
		"recipients", len(msg.To),
		"bytes", len(msg.HTML))
	return nil
}
