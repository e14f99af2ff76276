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

package refs

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractRules(t *testing.T) {
	e := NewExtractor("acme", "widget")

	tests := []struct {
		name string
		text string
		want []int
	}{
		{
			"tracker lookalike rejected",
			"see ticket #999 and fixes #12",
			[]int{12},
		},
		{
			"own repo url",
			"merged in https://github.com/acme/widget/pull/345 today",
			[]int{345},
		},
		{
			"issue url",
			"reported at https://github.com/acme/widget/issues/77.",
			[]int{77},
		},
		{
			"foreign repo url ignored",
			"compare with https://github.com/other/project/pull/345",
			nil,
		},
		{
			"keyword window",
			"This fixes the crash reported in #101",
			[]int{101},
		},
		{
			"keyword pr",
			"PR #88 rewrites the scheduler",
			[]int{88},
		},
		{
			"pull request phrase",
			"see pull request #54",
			[]int{54},
		},
		{
			"closes and resolves",
			"closes #1, resolves #2, referenced #3",
			[]int{1, 2, 3},
		},
		{
			"bracket changelog",
			"- speed up parser [#432]",
			[]int{432},
		},
		{
			"bracket pr changelog",
			"- drop legacy flag [PR #433]",
			[]int{433},
		},
		{
			"bracket issue form not matched",
			"- fixed leak [Issue #434]",
			nil,
		},
		{
			"gh token",
			"backported GH-913 to the 2.x branch",
			[]int{913},
		},
		{
			"jira rejected",
			"tracked as JIRA: #4521 internally",
			nil,
		},
		{
			"redmine rejected",
			"redmine #300 stays external, but issue #301 counts",
			[]int{301},
		},
		{
			"bare number ignored",
			"build 4821 finished in 93s",
			nil,
		},
		{
			"eight digits rejected",
			"fixes #12345678",
			nil,
		},
		{
			"seven digits accepted",
			"fixes #1234567",
			[]int{1234567},
		},
		{
			"newline breaks keyword window",
			"fixes everything\n#15 unrelated heading",
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Extract(tt.text, 0))
		})
	}
}

func TestExtractOrderAndDedupe(t *testing.T) {
	e := NewExtractor("acme", "widget")
	text := "fixes #7 then closes #3, see https://github.com/acme/widget/pull/7 and [#9]"

	got := e.Extract(text, 0)
	assert.Equal(t, []int{7, 3, 9}, got, "first occurrence order, duplicates dropped")
}

func TestExtractLimit(t *testing.T) {
	e := NewExtractor("acme", "widget")
	text := "closes #1, closes #2, closes #3, closes #4, closes #5"

	assert.Equal(t, []int{1, 2, 3}, e.Extract(text, 3))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, e.Extract(text, 0))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, e.Extract(text, 99))
}

func TestExtractNoDuplicates(t *testing.T) {
	e := NewExtractor("acme", "widget")
	text := strings.Repeat("fixes #42 and [#42] plus GH-42. ", 10)

	assert.Equal(t, []int{42}, e.Extract(text, 0))
}

func TestExtractTrackerExcludesEverywhere(t *testing.T) {
	// A tracker mention poisons the number even when another rule also
	// matches it elsewhere in the same text.
	e := NewExtractor("acme", "widget")
	text := "fixes #550 ... later filed as ticket #550"

	assert.Empty(t, e.Extract(text, 0))
}

func TestExtractIdempotent(t *testing.T) {
	e := NewExtractor("acme", "widget")
	first := e.Extract("fixes #5, see https://github.com/acme/widget/issues/9 and GH-2", 0)

	var sb strings.Builder
	for _, n := range first {
		fmt.Fprintf(&sb, "[#%d] ", n)
	}
	second := e.Extract(sb.String(), 0)
	assert.Equal(t, first, second)
}

func TestExtractEmptyText(t *testing.T) {
	e := NewExtractor("acme", "widget")
	assert.Nil(t, e.Extract("", 0))
}
