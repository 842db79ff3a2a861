package handlers

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abrezinsky/blockvote/internal/auth"
	"github.com/abrezinsky/blockvote/internal/errors"
	"github.com/abrezinsky/blockvote/internal/models"
)

// handleChallenge issues a login message for a wallet to sign
func (h *Handlers) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	message, expires := h.Auth.Challenge(common.HexToAddress(req.Wallet))
	respondOK(w, ChallengeResponse{Message: message, ExpiresAt: expires})
}

// handleLogin verifies a signed challenge and starts a session
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	wallet := common.HexToAddress(req.Wallet)
	token, err := h.Auth.Login(wallet, req.Signature)
	if err != nil {
		h.Log.Debug("Wallet login rejected", "wallet", wallet.Hex(), "error", err)
		h.respondError(w, r, err)
		return
	}

	auth.SetSessionCookie(w, token, h.Auth.SessionExpiry())
	h.Log.Info("Wallet signed in", "wallet", wallet.Hex())
	respondOK(w, LoginResponse{
		Token:     token,
		Wallet:    wallet,
		IsAdmin:   h.Access.IsAdmin(wallet),
		ExpiresIn: int(h.Auth.SessionExpiry().Seconds()),
	})
}

// handleLogout clears the session
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		h.Auth.Logout(token)
	}

	auth.ClearSessionCookie(w)
	respondSuccess(w, "Signed out")
}

// handleMe describes the caller and their voter record, if any
func (h *Handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)

	var voter *models.Voter
	v, err := h.Voters.GetVoter(r.Context(), caller)
	switch {
	case err == nil:
		voter = v
	case !errors.Is(err, errors.ErrNotFound):
		h.respondError(w, r, err)
		return
	}

	respondOK(w, MeResponse{Wallet: caller, IsAdmin: h.Access.IsAdmin(caller), Voter: voter})
}
