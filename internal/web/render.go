package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/panel"
	"github.com/hpungsan/brain/internal/record"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
}

// TabData is one kind tab.
type TabData struct {
	Kind     record.Kind
	Label    string
	Count    int
	Selected bool
}

// ItemView is one row of the visible list.
type ItemView struct {
	Record  record.Record
	HTML    template.HTML
	Age     string
	IsSkill bool
	Editing bool
}

// KindOption is an entry of the editor's kind picker.
type KindOption struct {
	Kind     record.Kind
	Label    string
	Selected bool
}

// PanelPageData is the template data for the panel.
type PanelPageData struct {
	PageData
	StateVersion uint64
	Tabs         []TabData
	Kind         record.Kind
	KindLabel    string
	Items        []ItemView
	Edit         *panel.EditSession
	KindOptions  []KindOption
	Affordance   panel.Affordance
	Input        string
	Status       string
	Preview      string
	Chars        string
	Tokens       string
	Bookmarklet  string
}

// bookmarklet returns a javascript: URL that loads capture.js from host.
func bookmarklet(host string) string {
	if host == "" {
		return ""
	}
	return "javascript:(function(){var s=document.createElement('script');" +
		"s.src='http://" + host + "/static/capture.js';document.body.appendChild(s)})()"
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

var kindLabels = map[record.Kind]string{
	record.KindContext: "Contexts",
	record.KindRule:    "Rules",
	record.KindSkill:   "Skills",
}

var kindNames = map[record.Kind]string{
	record.KindContext: "Context",
	record.KindRule:    "Rule",
	record.KindSkill:   "Skill",
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *zap.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, logger *zap.Logger) (*Renderer, error) {
	funcMap := template.FuncMap{
		"kindName": func(k record.Kind) string { return kindNames[k] },
	}

	// Parse layout as the base template
	layoutTmpl, err := template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := map[string]string{
		"panel": "panel.html",
		"error": "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t, err := layoutTmpl.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		logger:    logger,
	}, nil
}

// panelData builds the template data for a snapshot.
func (r *Renderer) panelData(snap panel.Snapshot, preview string) PanelPageData {
	data := PanelPageData{
		PageData:     PageData{Title: kindLabels[snap.Kind], Version: r.version},
		StateVersion: snap.Version,
		Kind:         snap.Kind,
		KindLabel:    kindNames[snap.Kind],
		Edit:         snap.Edit,
		Affordance:   snap.Affordance,
		Input:        snap.Input,
		Status:       snap.Status,
		Preview:      preview,
		Chars:        humanize.Comma(int64(record.CountChars(preview))),
		Tokens:       humanize.Comma(int64(record.EstimateTokens(preview))),
	}

	for _, k := range record.Kinds {
		data.Tabs = append(data.Tabs, TabData{
			Kind:     k,
			Label:    kindLabels[k],
			Count:    snap.Count(k),
			Selected: k == snap.Kind,
		})
	}

	now := time.Now()
	for _, rec := range snap.Visible() {
		data.Items = append(data.Items, ItemView{
			Record:  rec,
			HTML:    renderMarkdown(rec.Body),
			Age:     humanize.RelTime(time.UnixMilli(rec.CreatedAt), now, "ago", "from now"),
			IsSkill: rec.Kind == record.KindSkill,
			Editing: snap.Edit != nil && snap.Edit.ID == rec.ID,
		})
	}

	if snap.Edit != nil {
		for _, k := range record.Kinds {
			data.KindOptions = append(data.KindOptions, KindOption{
				Kind:     k,
				Label:    kindNames[k],
				Selected: k == snap.Edit.Kind,
			})
		}
	}
	return data
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// Script-driven requests get only the "content" block.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.logger.Error("template not found", zap.String("name", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if isPartial(req) {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.logger.Error("template execution failed", zap.String("name", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	bErr, ok := errors.As(err)
	if !ok {
		bErr = errors.NewInternal(err)
	}

	status := bErr.Status
	message := bErr.Message
	if bErr.Code == errors.ErrInternal {
		r.logger.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
		message = "an internal error occurred"
	}

	// Script request: return HTML fragment
	if isPartial(req) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	// JSON request
	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(bErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	// Full error page
	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
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

// renderMarkdown converts markdown text to HTML using goldmark.
// Raw HTML in bodies is dropped by goldmark's default renderer.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// isPartial reports whether the request came from panel.js and expects
// only the content block.
func isPartial(req *http.Request) bool {
	return req != nil && req.Header.Get("HX-Request") == "true"
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(req.Header.Get("Content-Type"), "application/json")
}
