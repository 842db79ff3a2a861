package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/abrezinsky/blockvote/internal/auth"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// corsHandler allows the browser client to call the API with its session cookie
func (h *Handlers) corsHandler() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", auth.WalletHeader},
		MaxAge:         300,
	}
	if len(h.AllowedOrigins) > 0 {
		opts.AllowedOrigins = h.AllowedOrigins
		opts.AllowCredentials = true
	}
	return cors.New(opts).Handler
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(h.corsHandler())
	r.Use(h.Auth.Identify)

	r.Get("/healthz", h.handleHealth)

	// WebSocket change feed; no request timeout on the long-lived connection
	if h.Hub != nil {
		r.Get("/ws", h.Hub.ServeWs)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Wallet login (public)
		r.Post("/auth/challenge", h.handleChallenge)
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/logout", h.handleLogout)

		// Ledger reads (public)
		r.Get("/elections", h.handleListElections)
		r.Get("/elections/{id}", h.handleGetElection)
		r.Get("/elections/{id}/candidates", h.handleGetCandidates)
		r.Get("/elections/{id}/results", h.handleResults)
		r.Get("/elections/{id}/voted/{wallet}", h.handleHasVoted)
		r.Get("/voters", h.handleListVoters)
		r.Get("/voters/pending", h.handleListPendingVoters)
		r.Get("/voters/{wallet}", h.handleGetVoter)
		r.Post("/voters/check", h.handleCheckCredentials)

		// Acting as the signed-in wallet
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireCaller)
			r.Get("/me", h.handleMe)
			r.Post("/voters/register", h.handleRegisterVoter)
			r.Post("/elections/{id}/vote", h.handleVote)
		})

		// Administration (the services check the admin again)
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(h.Access))

			r.Post("/elections", h.handleCreateElection)
			r.Put("/elections/{id}", h.handleUpdateElection)
			r.Delete("/elections/{id}", h.handleDeleteElection)
			r.Post("/elections/{id}/end", h.handleEndElection)

			r.Post("/elections/{id}/candidates", h.handleAddCandidate)
			r.Put("/elections/{id}/candidates/{candidateID}", h.handleUpdateCandidate)
			r.Delete("/elections/{id}/candidates/{candidateID}", h.handleDeleteCandidate)

			r.Post("/voters/{wallet}/verify", h.handleVerifyVoter)
			r.Get("/voters/{wallet}/card", h.handleVoterCard)

			r.Get("/audit", h.handleAuditLog)
		})
	})

	return r
}
