package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hpungsan/fishscroll/internal/config"
	"github.com/hpungsan/fishscroll/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer builds the history viewer server on addr.
func NewServer(p ops.Pipeline, cfg *config.Config, version, addr string) *http.Server {
	h := &Handlers{
		pipeline: p,
		cfg:      cfg,
		renderer: NewRenderer(mustSub(templateFS, "templates"), version),
	}

	return &http.Server{
		Addr:              addr,
		Handler:           securityHeaders(routes(h, mustSub(staticFS, "static"))),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func mustSub(fsys embed.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(fmt.Sprintf("web: embedded %s: %v", dir, err))
	}
	return sub
}

func routes(h *Handlers, static fs.FS) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/history", http.StatusFound)
	})
	mux.HandleFunc("GET /history", h.HandleList)
	mux.HandleFunc("POST /history/clear", h.HandleClear)
	mux.HandleFunc("GET /history/{id}", h.HandleDetail)
	mux.HandleFunc("GET /history/{id}/image", h.HandleImage)
	mux.HandleFunc("DELETE /history/{id}", h.HandleDelete)
	mux.HandleFunc("POST /history/{id}/delete", h.HandleDelete)
	mux.HandleFunc("GET /identify", h.HandleIdentifyForm)
	mux.HandleFunc("POST /identify", h.HandleIdentify)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	return mux
}

// securityHeaders sets CSP and framing headers on every response. Images are
// served from /history/{id}/image so img-src never needs data: URIs.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self'")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// exposesAllInterfaces reports whether addr binds a wildcard host.
func exposesAllInterfaces(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		return true
	}
	return false
}

// Run serves srv until ctx is done or SIGINT/SIGTERM arrives, then shuts down
// gracefully.
func Run(ctx context.Context, srv *http.Server) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Printf("fishscroll UI running at http://%s", srv.Addr)
	if exposesAllInterfaces(srv.Addr) {
		log.Printf("WARNING: server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Println("shutting down UI...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
