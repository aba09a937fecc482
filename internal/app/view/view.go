/*
Package view renders the server-side HTML pages from embedded templates.
*/
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"sockchat/internal/pkg/logx"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names accepted by Render.
const (
	PageIndex   = "index"
	PageProfile = "profile"
	PageChat    = "chat"
)

// IndexData feeds the landing page.
type IndexData struct {
	Title         string
	Message       string
	Flash         string
	ShowForms     bool
	PowDifficulty int
}

// UserData feeds the pages behind login.
type UserData struct {
	Title    string
	Username string
}

// Renderer holds the parsed page set.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses every page together with the shared layout.
func New() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}

	for _, name := range []string{PageIndex, PageProfile, PageChat} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("view: parse %s: %w", name, err)
		}
		r.pages[name] = t
	}

	return r, nil
}

// Render executes page into a buffer first, so a template error never leaves a half-written body.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) {
	t, ok := r.pages[page]
	if !ok {
		logx.Error(fmt.Errorf("unknown page %q", page), "render failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		logx.Error(err, "render failed", "page", page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
