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

// Package render turns summarized categories into the single HTML digest
// document that gets mailed or, on dry runs, written to a preview file.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"time"

	"github.com/kraklabs/techdigest/pkg/digest"
	"github.com/kraklabs/techdigest/pkg/summarize"
)

// DefaultPreviewPath is where dry runs drop the rendered document unless a
// flag overrides it.
const DefaultPreviewPath = "digest_preview.html"

// Document is the rendering input: a titled window plus one section per
// category in the fixed category order.
type Document struct {
	Title       string
	WindowStart time.Time
	GeneratedAt time.Time
	Sections    []Section
}

// Section holds one category's entries under its display heading.
type Section struct {
	Category digest.Category
	Title    string
	Entries  []summarize.Entry
}

// sectionTitles maps categories to their document headings.
var sectionTitles = map[digest.Category]string{
	digest.CategoryFrontend: "Frontend",
	digest.CategoryBackend:  "Backend",
	digest.CategoryDevOps:   "DevOps",
}

// SectionTitle returns the display heading for a category.
func SectionTitle(category digest.Category) string {
	if title, ok := sectionTitles[category]; ok {
		return title
	}
	return string(category)
}

// NewDocument assembles a document from per-category digests. Every
// category gets a section, present in the input or not, so the document
// shape is stable across runs.
func NewDocument(title string, windowStart, generatedAt time.Time, digests map[digest.Category]summarize.CategoryDigest) Document {
	doc := Document{
		Title:       title,
		WindowStart: windowStart,
		GeneratedAt: generatedAt,
	}
	for _, category := range digest.Categories() {
		doc.Sections = append(doc.Sections, Section{
			Category: category,
			Title:    SectionTitle(category),
			Entries:  digests[category].Entries,
		})
	}
	return doc
}

var digestTemplate = template.Must(template.New("digest").Parse(digestHTML))

// WriteDigest renders the document to w. The template executes into a
// buffer first so a failure never leaves a half-written document behind.
func WriteDigest(w io.Writer, doc Document) error {
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, doc); err != nil {
		return fmt.Errorf("render: execute digest template: %w", err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("render: write digest: %w", err)
	}
	return nil
}

// WritePreview renders the document to a file for dry runs.
func WritePreview(path string, doc Document) error {
	var buf bytes.Buffer
	if err := WriteDigest(&buf, doc); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("render: write preview %s: %w", path, err)
	}
	return nil
}

const digestHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; max-width: 860px; margin: 0 auto; padding: 24px; color: #1f2328; }
h1 { border-bottom: 2px solid #d0d7de; padding-bottom: 8px; }
h2 { margin-top: 32px; border-bottom: 1px solid #d0d7de; padding-bottom: 4px; }
.meta { color: #59636e; font-size: 13px; }
.entry { margin: 16px 0; padding: 12px 16px; border: 1px solid #d0d7de; border-radius: 6px; }
.entry h3 { margin: 0 0 4px 0; font-size: 16px; }
.entry a { color: #0969da; text-decoration: none; }
.summary { white-space: pre-wrap; font-size: 14px; margin-top: 8px; }
.empty { color: #59636e; font-style: italic; }
.badge { display: inline-block; padding: 1px 8px; border-radius: 10px; font-size: 12px; background: #ddf4ff; color: #0969da; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">Window: {{.WindowStart.Format "2006-01-02"}} to {{.GeneratedAt.Format "2006-01-02"}} | Generated {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}</p>
{{range .Sections}}
<h2>{{.Title}} ({{len .Entries}})</h2>
{{- if .Entries}}
{{- range .Entries}}
<div class="entry">
<h3><a href="{{.URL}}">{{.Title}}</a></h3>
<p class="meta">{{.Source}} | {{.PublishedAt.Format "2006-01-02"}} | <span class="badge">{{.Importance}}</span></p>
{{- if .Summary}}
<div class="summary">{{.Summary}}</div>
{{- end}}
</div>
{{- end}}
{{- else}}
<p class="empty">No updates in this window.</p>
{{- end}}
{{end}}
</body>
</html>
`
