package handlers

import (
	"context"
	"net/http"

	"github.com/abrezinsky/blockvote/internal/auth"
	"github.com/abrezinsky/blockvote/internal/logger"
	"github.com/abrezinsky/blockvote/internal/services"
)

// EventStream serves the websocket change feed
type EventStream interface {
	ServeWs(w http.ResponseWriter, r *http.Request)
}

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Elections  services.ElectionServicer
	Candidates services.CandidateServicer
	Voters     services.VoterServicer
	Voting     services.VotingServicer
	Audit      services.AuditServicer
	Access     auth.AdminChecker
	Auth       *auth.Auth
	Hub        EventStream
	Health     Pinger
	Log        logger.Logger

	// AllowedOrigins configures CORS; empty allows any origin without credentials
	AllowedOrigins []string
}

// Services bundles the ledger services the handlers expose
type Services struct {
	Elections  services.ElectionServicer
	Candidates services.CandidateServicer
	Voters     services.VoterServicer
	Voting     services.VotingServicer
	Audit      services.AuditServicer
	Access     auth.AdminChecker
}

// New creates a new Handlers instance with all dependencies
func New(svc Services, walletAuth *auth.Auth, hub EventStream, health Pinger, log logger.Logger, allowedOrigins []string) *Handlers {
	return &Handlers{
		Elections:      svc.Elections,
		Candidates:     svc.Candidates,
		Voters:         svc.Voters,
		Voting:         svc.Voting,
		Audit:          svc.Audit,
		Access:         svc.Access,
		Auth:           walletAuth,
		Hub:            hub,
		Health:         health,
		Log:            log,
		AllowedOrigins: allowedOrigins,
	}
}

// NewForTesting creates a Handlers instance without a websocket hub or health
// check. Requests may identify themselves with the X-Wallet-Address header.
func NewForTesting(svc Services, log logger.Logger) *Handlers {
	return New(svc, auth.New(auth.Options{TrustWalletHeader: true}), nil, nil, log, nil)
}
