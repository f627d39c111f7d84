// Package api serves the admin HTTP surface: import batches, validation runs,
// review analysis and per-field source records.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/batch"
	"github.com/sells-group/bizdir/internal/importer"
	"github.com/sells-group/bizdir/internal/provenance"
	"github.com/sells-group/bizdir/internal/review"
	"github.com/sells-group/bizdir/internal/validate"
)

const maxBodyBytes = 32 << 20

// Services are the components the API delegates to. Metrics may be nil.
type Services struct {
	Tracker   *batch.Tracker
	Runner    *importer.Runner
	Validator *validate.Validator
	Reviews   *review.Service
	Sources   *provenance.Recorder
	Metrics   http.Handler
}

// Server holds the API handlers.
type Server struct {
	svc Services
	log *zap.Logger
}

// New creates a Server.
func New(svc Services) *Server {
	return &Server{svc: svc, log: zap.L().With(zap.String("component", "api"))}
}

// Router returns the HTTP handler. An empty allowedOrigins allows any origin.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.svc.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.svc.Metrics)
	}

	r.Route("/imports", func(r chi.Router) {
		r.Post("/", s.createImport)
		r.Get("/", s.listImports)
		r.Post("/fix-pending", s.fixPending)
		r.Post("/cleanup", s.cleanup)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getImport)
			r.Delete("/", s.deleteImport)
			r.Get("/export", s.exportImport)
			r.Post("/validate", s.validateImport)
		})
	})
	r.Get("/validations", s.listValidations)

	r.Route("/businesses/{id}", func(r chi.Router) {
		r.Post("/reviews/analyze", s.analyzeReviews)
		r.Get("/sources", s.listSources)
		r.Put("/sources/{field}", s.updateSource)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var notFound = []error{
	batch.ErrBatchNotFound,
	review.ErrBusinessNotFound,
	provenance.ErrBusinessNotFound,
	provenance.ErrRecordNotFound,
	provenance.ErrSourceNotFound,
}

// fail maps a component error onto a status code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	for _, target := range notFound {
		if errors.Is(err, target) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
	}
	if errors.Is(err, batch.ErrInvalidTransition) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
