// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package newsletter

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"
	"unicode/utf8"
)

// TemplateData is the data campaign subjects and bodies are rendered with.
type TemplateData struct {
	StoreName      string
	BaseURL        string
	Email          string
	Language       string
	Direction      string
	UnsubscribeURL string
	ConfirmURL     string
	Date           time.Time
}

// TemplateEngine renders campaign content. Bodies are html/template so
// subscriber data is escaped; subjects are plain text.
type TemplateEngine struct {
	funcMap template.FuncMap
	layout  *template.Template
}

// NewTemplateEngine creates a template engine with the standard functions.
func NewTemplateEngine() *TemplateEngine {
	te := &TemplateEngine{funcMap: buildFuncMap()}
	te.layout = template.Must(template.New("layout").Funcs(te.funcMap).Parse(layoutTemplate))
	return te
}

func buildFuncMap() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"formatDateDefault": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"trim":  strings.TrimSpace,
		"truncate": func(s string, maxLen int) string {
			if utf8.RuneCountInString(s) <= maxLen {
				return s
			}
			r := []rune(s)
			if maxLen <= 1 {
				return string(r[:maxLen])
			}
			return string(r[:maxLen-1]) + "…"
		},
		"default": func(def, val string) string {
			if val == "" {
				return def
			}
			return val
		},
		"isRTL": func(dir string) bool {
			return dir == "rtl"
		},
	}
}

// RenderHTML renders an HTML body template.
func (te *TemplateEngine) RenderHTML(content string, data *TemplateData) (string, error) {
	tmpl, err := template.New("body").Funcs(te.funcMap).Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// RenderText renders a plaintext template without HTML escaping.
func (te *TemplateEngine) RenderText(content string, data *TemplateData) (string, error) {
	tmpl, err := texttemplate.New("text").Funcs(texttemplate.FuncMap(te.funcMap)).Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// RenderSubject renders a subject line. Line breaks are collapsed so the
// result is a valid header value.
func (te *TemplateEngine) RenderSubject(subject string, data *TemplateData) (string, error) {
	out, err := te.RenderText(subject, data)
	if err != nil {
		return "", fmt.Errorf("subject: %w", err)
	}
	return strings.Join(strings.Fields(out), " "), nil
}

// Wrap places a rendered body in the mail layout. The layout carries the
// lang and dir attributes and the unsubscribe footer.
func (te *TemplateEngine) Wrap(subject, body string, data *TemplateData) (string, error) {
	texts := builtinFor(data.Language)
	var buf bytes.Buffer
	err := te.layout.Execute(&buf, struct {
		*TemplateData
		Subject          string
		Body             template.HTML
		Footer           string
		UnsubscribeLabel string
	}{
		TemplateData:     data,
		Subject:          subject,
		Body:             template.HTML(body), //nolint:gosec // rendered by html/template
		Footer:           texts.Footer,
		UnsubscribeLabel: texts.UnsubscribeLabel,
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute layout: %w", err)
	}
	return buf.String(), nil
}

// Validate checks that content parses as both a subject and a body template.
func (te *TemplateEngine) Validate(content string) error {
	if _, err := template.New("validate").Funcs(te.funcMap).Parse(content); err != nil {
		return fmt.Errorf("invalid template syntax: %w", err)
	}
	return nil
}

const layoutTemplate = `<!DOCTYPE html>
<html lang="{{.Language}}" dir="{{.Direction}}">
<head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body style="margin:0;padding:24px;font-family:Arial,Tahoma,sans-serif;{{if isRTL .Direction}}text-align:right{{else}}text-align:left{{end}}">
<div dir="{{.Direction}}">
{{.Body}}
</div>
{{if .UnsubscribeURL}}<p style="font-size:12px;color:#777777">{{.Footer}} <a href="{{.UnsubscribeURL}}">{{.UnsubscribeLabel}}</a></p>{{end}}
</body>
</html>
`
