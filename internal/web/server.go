package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/bus"
	"github.com/hpungsan/brain/internal/logging"
	"github.com/hpungsan/brain/internal/panel"
	"github.com/hpungsan/brain/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Options holds what the panel server needs.
type Options struct {
	Controller *panel.Controller
	Store      store.Store
	// Notifier is told about in-page captures; usually a bus the controller listens on.
	Notifier bus.Notifier
	Logger   *zap.Logger
	Version  string
}

// NewServer creates and configures the HTTP server for the panel UI on addr (host:port).
func NewServer(opts Options, addr string) (*http.Server, error) {
	h, err := newHandlers(opts)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              addr,
		Handler:           h.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}, nil
}

func newHandlers(opts Options) (*Handlers, error) {
	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}

	logger := logging.OrNop(opts.Logger).Named("web")
	renderer, err := NewRenderer(templateSub, opts.Version, logger)
	if err != nil {
		return nil, err
	}

	return &Handlers{
		ctrl:     opts.Controller,
		st:       opts.Store,
		notifier: opts.Notifier,
		logger:   logger,
		renderer: renderer,
	}, nil
}

func (h *Handlers) routes() http.Handler {
	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err) // embedded at build time
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/panel", http.StatusFound)
	})
	mux.HandleFunc("GET /panel", h.HandlePanel)
	mux.HandleFunc("GET /panel/poll", h.HandlePoll)
	mux.HandleFunc("POST /panel/kind", h.HandleSelectKind)
	mux.HandleFunc("POST /panel/input", h.HandleInput)

	mux.HandleFunc("POST /records", h.HandleAdd)
	mux.HandleFunc("POST /records/{id}/toggle", h.HandleToggle)
	mux.HandleFunc("POST /records/{id}/pin", h.HandlePin)
	mux.HandleFunc("POST /records/{id}/delete", h.HandleDelete)
	mux.HandleFunc("POST /records/{id}/edit", h.HandleBeginEdit)

	mux.HandleFunc("POST /edit/draft", h.HandleDraft)
	mux.HandleFunc("POST /edit/commit", h.HandleCommit)
	mux.HandleFunc("POST /edit/cancel", h.HandleCancel)

	mux.HandleFunc("POST /copy", h.HandleCopy)
	mux.HandleFunc("POST /skills/{id}/run", h.HandleRunSkill)

	mux.HandleFunc("POST /selection", h.HandleSelection)
	mux.HandleFunc("POST /selection/hide", h.HandleHideSelection)
	mux.HandleFunc("POST /selection/add", h.HandleQuickAdd)

	mux.Handle("POST "+bus.RefreshPath, bus.Handler(h.deliver))
	mux.Handle("/api/capture", allowCrossOrigin(http.HandlerFunc(h.HandleCapture)))

	// Static file server
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	// Wrap with security headers
	return securityHeaders(mux)
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// allowCrossOrigin lets scripts running on any page reach the capture
// endpoint, and answers preflight requests.
func allowCrossOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			next.ServeHTTP(w, r)
		default:
			w.Header().Set("Allow", "POST, OPTIONS")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM
// or when ctx is done.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	logger = logging.OrNop(logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("panel running", zap.String("url", "http://"+srv.Addr+"/panel"))

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
