// Package sitehandler renders the HTML landing page: pod identity, flag
// state, and a clickable table of the probe endpoints.
package sitehandler

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"

	"github.com/podpulse/podpulse/internal/podinfo"
)

type Handler struct {
	opts Options
	tmpl *template.Template
}

// pageData is what the landing template renders from.
type pageData struct {
	Pod           podinfo.Snapshot
	Live          bool
	Ready         bool
	UptimeSeconds float64
}

func New(opts *Options) (*Handler, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	tmpl, err := template.ParseFS(opts.TemplateFS, opts.TemplateFile)
	if err != nil {
		return nil, err
	}
	return &Handler{opts: *opts, tmpl: tmpl}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// hardening: only allow GET/HEAD
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	data := pageData{
		Pod:           h.opts.Info(),
		Live:          h.opts.State.Live(),
		Ready:         h.opts.State.Ready(),
		UptimeSeconds: h.opts.State.Uptime().Seconds(),
	}

	// Render to a buffer first so a template failure never leaks a
	// half-written 200 body.
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, h.opts.TemplateFile, data); err != nil {
		h.opts.Logger.Error(r.Context(), err, "render landing page")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// The page shows live flag state, so never cache it.
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = buf.WriteTo(w)
}
