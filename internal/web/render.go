package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"

	"github.com/hpungsan/fishscroll/internal/errors"
	"github.com/hpungsan/fishscroll/internal/fish"
	"github.com/hpungsan/fishscroll/internal/ops"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "history", "identify"
}

// ListPageData is the template data for the history list page.
type ListPageData struct {
	PageData
	Items      []ops.Summary
	Pagination ops.Pagination
	Limit      int
	Cleared    int
	Warning    string
}

// DetailPageData is the template data for the history entry page.
type DetailPageData struct {
	PageData
	Entry         *ops.FetchOutput
	RenderedHTML  template.HTML
	LowConfidence bool
}

// IdentifyPageData is the template data for the upload form.
type IdentifyPageData struct {
	PageData
	CameraReady  bool
	Facing       string
	MaxDimension int
	Error        string
	ErrorCode    string
	RawResponse  string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"sub":        func(a, b int) int { return a - b },
		"formatTime": formatTime,
		"timeAgo":    timeAgo,
		"formatKB":   formatKB,
		"priceLabel": priceLabel,
		"confClass":  confidenceClass,
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"list":     "list.html",
		"detail":   "detail.html",
		"identify": "identify.html",
		"error":    "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}
}

// page returns PageData filled with the renderer's version.
func (r *Renderer) page(title, nav string) PageData {
	return PageData{Title: title, Version: r.version, Nav: nav}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// Requests with X-Partial: true get only the "content" block.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		log.Printf("template %q not found", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if isPartial(req) {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		log.Printf("template execution error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	fErr, ok := errors.As(err)
	if !ok {
		log.Printf("web: %v", err)
		fErr = errors.NewInternal(nil)
	}

	status := fErr.Status
	message := fErr.Message

	if isPartial(req) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(fErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData:   r.page(fmt.Sprintf("Error %d", status), ""),
		StatusCode: status,
		Message:    message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark. Raw HTML in
// the source is not passed through.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(md) + "</pre>")
	}
	return template.HTML(buf.String())
}

func isPartial(req *http.Request) bool {
	return req != nil && req.Header.Get("X-Partial") == "true"
}

func wantsJSON(req *http.Request) bool {
	return req != nil && strings.Contains(req.Header.Get("Accept"), "application/json")
}

// formatTime formats a unix millisecond timestamp as "2006-01-02 15:04" UTC.
func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}

// timeAgo formats a unix millisecond timestamp relative to now.
func timeAgo(ms int64) string {
	return humanize.Time(time.UnixMilli(ms))
}

// formatKB formats an estimated size in kilobytes.
func formatKB(kb int) string {
	return humanize.IBytes(uint64(max(kb, 0)) * 1024)
}

// priceLabel returns "고급 (premium)" style labels.
func priceLabel(p fish.PriceTier) string {
	if en := p.English(); en != "" {
		return fmt.Sprintf("%s (%s)", p, en)
	}
	return string(p)
}

// confidenceClass buckets a confidence for styling.
func confidenceClass(c int) string {
	switch {
	case c >= 85:
		return "conf-high"
	case c >= fish.ConfidenceLow:
		return "conf-mid"
	default:
		return "conf-low"
	}
}
