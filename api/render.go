/*
render.go - Server-rendered page support

PURPOSE:
  Embeds the HTML templates and provides the render helper every page
  handler goes through. Each page template defines a "content" block
  that layout.tmpl wraps with the shared chrome (nav, flash messages).

TEMPLATE LOOKUP:
  render() parses layout.tmpl plus the requested page from the embedded
  FS and executes the layout with the page's content block plugged in.
  Parsing per request keeps each page's "content" definition isolated;
  the templates are small enough that this doesn't show up in profiles.

SEE ALSO:
  - handlers.go, admin.go: Page handlers
  - auth.go: Flash message helpers
*/
package api

import (
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// pageData is passed to every template execution.
type pageData struct {
	Title   string
	Flashes []string
	Admin   bool
	Data    any
}

var templateFuncs = template.FuncMap{
	"fmtDate": func(t interface{ Format(string) string }) string {
		return t.Format("2006-01-02")
	},
	"fmtTime": func(t interface{ Format(string) string }) string {
		return t.Format("2006-01-02 15:04")
	},
}

// render executes the named page template inside the shared layout.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	tmpl, err := template.New("layout.tmpl").Funcs(templateFuncs).ParseFS(templateFS,
		"templates/layout.tmpl", "templates/"+name)
	if err != nil {
		h.Log.Error("failed to parse template", zap.String("template", name), zap.Error(err))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	pd := pageData{
		Title:   title,
		Flashes: h.popFlashes(w, r),
		Admin:   h.isAdmin(r),
		Data:    data,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout.tmpl", pd); err != nil {
		h.Log.Error("failed to render template", zap.String("template", name), zap.Error(err))
	}
}
