package backend

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/hpungsan/fishscroll/internal/fish"
	"github.com/hpungsan/fishscroll/internal/imaging"
)

// MaxBodyBytes caps the analyze request body.
const MaxBodyBytes = 16 << 20

// Archiver keeps a copy of each successfully analyzed capture.
type Archiver interface {
	Archive(ctx context.Context, image string, analysis *fish.Analysis) (string, error)
}

// Server is the analysis backend: it forwards images to a Model and
// returns validated analysis records.
type Server struct {
	model   Model
	archive Archiver
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithArchiver enables archiving of successful analyses.
func WithArchiver(a Archiver) ServerOption {
	return func(s *Server) { s.archive = a }
}

// NewServer creates a backend around model.
func NewServer(model Model, opts ...ServerOption) *Server {
	s := &Server{model: model}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(requestID)
	mux.Use(logging)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Post("/api/analyze", s.wrap(s.handleAnalyze))

	return mux
}

// apiError is a failure with a response status and optional raw model text.
type apiError struct {
	status      int
	message     string
	rawResponse string
}

func (e *apiError) Error() string { return e.message }

type errorBody struct {
	Error       string `json:"error"`
	RawResponse string `json:"rawResponse,omitempty"`
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var apiErr *apiError
		switch {
		case stderrors.As(err, &apiErr):
			writeJSON(w, apiErr.status, errorBody{Error: apiErr.message, RawResponse: apiErr.rawResponse})
		case stderrors.Is(err, ErrQuotaExceeded):
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		}
	}
}

type analyzeRequest struct {
	Image string `json:"image"`
}

// POST /api/analyze
// Body: {"image": "<data-uri>"}
func (s *Server) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, MaxBodyBytes)

	var body analyzeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return &apiError{status: http.StatusBadRequest, message: "image is too large"}
		}
		return &apiError{status: http.StatusBadRequest, message: "invalid JSON body"}
	}
	if strings.TrimSpace(body.Image) == "" {
		return &apiError{status: http.StatusBadRequest, message: "image is required"}
	}
	if _, err := imaging.ParseDataURI(body.Image); err != nil {
		return &apiError{status: http.StatusBadRequest, message: "image must be a base64 data URI: " + err.Error()}
	}

	text, err := s.model.Identify(req.Context(), body.Image)
	if err != nil {
		log.Printf("analyze: %s: %v", s.model.Name(), err)
		return err
	}

	analysis, err := fish.Parse(text)
	if err != nil {
		log.Printf("analyze: unparseable model response: %v", err)
		return &apiError{
			status:      http.StatusInternalServerError,
			message:     "could not parse AI response",
			rawResponse: text,
		}
	}

	if s.archive != nil {
		if key, err := s.archive.Archive(req.Context(), body.Image, analysis); err != nil {
			log.Printf("analyze: archive failed: %v", err)
		} else {
			log.Printf("analyze: archived as %s", key)
		}
	}

	writeJSON(w, http.StatusOK, analysis)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

// Run serves srv until SIGINT/SIGTERM, then shuts down gracefully.
func Run(srv *http.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Printf("analysis backend listening on http://%s", srv.Addr)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Println("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
