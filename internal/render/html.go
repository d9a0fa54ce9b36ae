// Package render turns a CV into print-ready HTML and, through headless
// Chrome, into PDF.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/cvitapilot/cvitapilot/internal/cvstate"
	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/validation"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type Options struct {
	Template string // classic | modern; empty uses the CV's template
	Paper    string // A4 | Letter
	// AutoPrint adds a script that opens the browser print dialog on load.
	AutoPrint bool
}

type view struct {
	CV        *models.CV
	Theme     models.Theme
	PageSize  string
	AutoPrint bool
}

type HTMLRenderer struct {
	tmpl *template.Template
}

func NewHTMLRenderer() (*HTMLRenderer, error) {
	t, err := template.New("cv").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &HTMLRenderer{tmpl: t}, nil
}

// Render writes the selected view of cv.
func (r *HTMLRenderer) Render(w io.Writer, cv *models.CV, opts Options) error {
	name := opts.Template
	if name == "" {
		name = cv.Template
	}
	if name != models.TemplateModern {
		name = models.TemplateClassic
	}
	v := view{
		CV:        cvstate.Selected(cv),
		Theme:     cv.ParsedTheme(),
		PageSize:  cssPageSize(opts.Paper),
		AutoPrint: opts.AutoPrint,
	}
	return r.tmpl.ExecuteTemplate(w, name+".html.tmpl", v)
}

func (r *HTMLRenderer) RenderBytes(cv *models.CV, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, cv, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cssPageSize(paper string) string {
	if strings.EqualFold(paper, models.PaperLetter) {
		return "letter"
	}
	return "A4"
}

var funcs = template.FuncMap{
	"date":  formatDate,
	"span":  formatSpan,
	"dots":  levelDots,
	"join":  strings.Join,
	"lines": func(s string) []string { return strings.Split(strings.TrimSpace(s), "\n") },
}

func formatDate(s string) string {
	if strings.EqualFold(s, validation.Present) {
		return "Present"
	}
	t, ok := validation.ParseDate(s)
	if !ok {
		return s
	}
	if len(s) == len("2006-01") {
		return t.Format("Jan 2006")
	}
	return t.Format("2 Jan 2006")
}

func formatSpan(start, end string) string {
	switch {
	case start == "" && end == "":
		return ""
	case end == "":
		return formatDate(start)
	case start == "":
		return formatDate(end)
	default:
		return formatDate(start) + " – " + formatDate(end)
	}
}

func levelDots(level int) string {
	if level < 0 {
		level = 0
	}
	if level > 5 {
		level = 5
	}
	return strings.Repeat("●", level) + strings.Repeat("○", 5-level)
}
