package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/channels", s.handleChannels)
			r.Post("/debug", s.handleSetDebug)
			r.Post("/commit", s.handleCommit)
			r.Get("/money", s.handleListMoney)
		})
	})

	// The tail authenticates through its token query parameter because
	// browsers cannot set headers on websocket upgrades.
	r.Get(s.tailPath(), s.handleTail)

	return r
}

func (s *Server) tailPath() string {
	if s.wsCfg.Path == "" {
		return "/api/v1/tail"
	}
	return s.wsCfg.Path
}
