// Package report renders transport-agnostic reports into the markup of a
// destination channel.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"strings"
	"text/template"
	"time"

	"github.com/bqworks/paygrid/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders reports from templates, one template per channel kind.
type Renderer struct {
	templates map[domain.ChannelKind]*template.Template
}

// NewRenderer creates a renderer and loads all channel templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":        titleCase,
		"upper":        strings.ToUpper,
		"escapeHTML":   html.EscapeString,
		"formatNumber": formatNumber,
		"formatTime":   formatTime,
		"kindLabel":    kindLabel,
	}

	r := &Renderer{templates: make(map[domain.ChannelKind]*template.Template)}

	kinds := []domain.ChannelKind{domain.ChannelKindTelegram, domain.ChannelKindMattermost}
	for _, kind := range kinds {
		filename := fmt.Sprintf("templates/%s_report.tmpl", kind)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(string(kind)).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", filename, err)
		}

		r.templates[kind] = tmpl
	}

	return r, nil
}

// Render produces the channel-specific text for a report.
func (r *Renderer) Render(kind domain.ChannelKind, rep *domain.Report) (string, error) {
	tmpl, ok := r.templates[kind]
	if !ok {
		return "", fmt.Errorf("no template for channel kind: %s", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, rep); err != nil {
		return "", fmt.Errorf("execute template %s: %w", kind, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// Template functions

var (
	titleCaser    = cases.Title(language.English)
	numberPrinter = message.NewPrinter(language.English)
)

func titleCase(s string) string {
	return titleCaser.String(s)
}

// formatNumber renders a value with thousands separators, dropping the
// fraction for whole numbers.
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return numberPrinter.Sprintf("%d", int64(v))
	}
	return numberPrinter.Sprintf("%.2f", v)
}

func formatTime(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006")
}

func kindLabel(kind domain.SubscriptionKind) string {
	switch kind {
	case domain.SubscriptionKindSalary:
		return "salary"
	case domain.SubscriptionKindCompanyReview:
		return "company review"
	default:
		return string(kind)
	}
}
