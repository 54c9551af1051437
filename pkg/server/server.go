// Package server serves the job data file over HTTP so that a browser on
// another machine can load it with --url.
//
//	GET /api/v1/get   JSON array of the records in the data file
//	GET /healthz      "ok"
//
// The data file is re-read on every request; there is no cache.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vanderheijden86/jobwork/internal/datasource"
	"github.com/vanderheijden86/jobwork/pkg/loader"
	"github.com/vanderheijden86/jobwork/pkg/metrics"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Addr     string
	DataPath string
	// AllowedOrigins may fetch the API from a browser. Empty allows any.
	AllowedOrigins []string
	// Logger receives one line per request and load warnings. Nil discards.
	Logger *log.Logger
}

// Server is the HTTP front of a data file.
type Server struct {
	addr     string
	dataPath string
	origins  []string
	logger   *log.Logger
	router   chi.Router
}

// New builds a server for opts.DataPath.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		addr:     opts.Addr,
		dataPath: opts.DataPath,
		origins:  opts.AllowedOrigins,
		logger:   logger,
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok")
	})
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/get", s.handleGet)
	})
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	defer metrics.Timer(metrics.DataLoad)()

	recs, err := loader.LoadRecordsFromFileWithOptions(s.dataPath, loader.ParseOptions{
		WarningHandler: func(msg string) { s.logger.Printf("%s: %s", s.dataPath, msg) },
	})
	if err != nil {
		s.logger.Printf("load %s: %v", s.dataPath, err)
		http.Error(w, "data file unavailable", http.StatusInternalServerError)
		return
	}
	// Each record is written as its source object.
	var body bytes.Buffer
	body.WriteByte('[')
	for i, rec := range recs {
		if i > 0 {
			body.WriteByte(',')
		}
		body.WriteString(rec.Canonical())
	}
	body.WriteByte(']')
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(body.Bytes())
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Printf("%s %s %d %dB %v [%s]",
				r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(),
				time.Since(start), chimiddleware.GetReqID(r.Context()))
		})
	}
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("serving %s on %s%s", s.dataPath, s.addr, datasource.APIPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
