package handlers

import (
	"net/http"

	"github.com/abrezinsky/blockvote/internal/services"
)

// handleVote casts the caller's vote in an election
func (h *Handlers) handleVote(w http.ResponseWriter, r *http.Request) {
	electionID, err := parseIDParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req VoteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	receipt, err := h.Voting.Vote(r.Context(), callerFrom(r), electionID, req.CandidateID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, receipt)
}

// handleHasVoted reports whether a wallet has voted in an election
func (h *Handlers) handleHasVoted(w http.ResponseWriter, r *http.Request) {
	electionID, err := parseIDParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	wallet, err := parseWalletParam(r, "wallet")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	voted, err := h.Voting.HasVoted(r.Context(), electionID, wallet)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, HasVotedResponse{ElectionID: electionID, Wallet: wallet, HasVoted: voted})
}

// handleResults returns the raw tallies of an election
func (h *Handlers) handleResults(w http.ResponseWriter, r *http.Request) {
	electionID, err := parseIDParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	results, err := h.Voting.GetResults(r.Context(), electionID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, results)
}

// handleAuditLog returns the newest audit events
func (h *Handlers) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntQuery(r, "limit", services.DefaultAuditLimit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	events, err := h.Audit.ListEvents(r.Context(), callerFrom(r), limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, EventsResponse{Events: events, Count: len(events)})
}

// handleHealth reports liveness and store reachability
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			h.Log.Warn("Health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondOK(w, map[string]string{"status": "ok"})
}
