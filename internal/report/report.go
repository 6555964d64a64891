// Package report renders a catalog as a static HTML page.
package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/sakif/moviebrain/internal/model"
	"github.com/sakif/moviebrain/internal/query"
)

//go:embed templates/report.html
var templateFS embed.FS

// Parsed once; html/template escapes titles and poster URLs.
var tmpl = template.Must(template.ParseFS(templateFS, "templates/report.html"))

type page struct {
	Title   string
	Entries []model.Entry
}

// Render writes the page for view to w, one card per title in title order.
// An empty view renders a single "no movies yet" card.
func Render(w io.Writer, title string, view model.View) error {
	return tmpl.ExecuteTemplate(w, "report", page{
		Title:   title,
		Entries: query.Entries(view),
	})
}

// WriteFile renders to path. The page is written to a temporary file in the
// same directory and renamed over path, so a reader never sees half a page.
func WriteFile(path, title string, view model.View) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.html")
	if err != nil {
		return fmt.Errorf("creating temp report: %w", err)
	}
	// No-op once the rename succeeded.
	defer os.Remove(tmp.Name())

	if err := Render(tmp, title, view); err != nil {
		tmp.Close()
		return fmt.Errorf("rendering report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing report: %w", err)
	}
	return nil
}
