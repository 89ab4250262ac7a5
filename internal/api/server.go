// Package api serves the desk over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"orderdesk/internal/desk"
	"orderdesk/internal/logging"
)

const maxUploadBytes = 20 << 20

type Server struct {
	desk   *desk.Service
	router *chi.Mux
	server *http.Server
}

func NewServer(d *desk.Service) *Server {
	s := &Server{
		desk:   d,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/queue", s.handleQueue)
		r.Delete("/queue", s.handleClearQueue)
		r.Get("/queue/export.csv", s.handleQueueCSV)
		r.Get("/queue/{orderID}", s.handleQueueItem)
		r.Delete("/queue/{orderID}", s.handleRemoveItem)

		r.Post("/orders", s.handleSubmitText)
		r.Post("/orders/upload", s.handleSubmitUpload)
		r.Get("/orders/{orderID}", s.handleReopen)
		r.Get("/orders/{orderID}/export.xlsx", s.handleOrderXLSX)
		r.Get("/orders/{orderID}/export.csv", s.handleOrderCSV)

		r.Get("/pending", s.handlePending)
		r.Post("/pending/confirm", s.handleConfirmPending)
		r.Post("/pending/cancel", s.handleCancelPending)

		r.Get("/tinting", s.handleTinting)
		r.Get("/view", s.handleGetView)
		r.Put("/view", s.handlePutView)

		r.Post("/export", s.handleExport)
		r.Post("/export/rollback", s.handleRollback)
		r.Get("/exports", s.handleExportHistory)

		r.Get("/session/inflight", s.handleInFlight)
		r.Post("/session/inflight/retry", s.handleRetryInFlight)
		r.Delete("/session/inflight", s.handleDiscardInFlight)
	})
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// Extraction and export calls can run for a minute or more.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	log.Info().Str("addr", addr).Msg("starting http server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger := logging.FromContext(r.Context())
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
