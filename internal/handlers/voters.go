package handlers

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abrezinsky/blockvote/internal/services"
)

func (h *Handlers) handleListVoters(w http.ResponseWriter, r *http.Request) {
	voters, err := h.Voters.ListVoters(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, VotersResponse{Voters: voters, Count: len(voters)})
}

// handleListPendingVoters returns registrations awaiting verification
func (h *Handlers) handleListPendingVoters(w http.ResponseWriter, r *http.Request) {
	voters, err := h.Voters.ListPendingVoters(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, VotersResponse{Voters: voters, Count: len(voters)})
}

func (h *Handlers) handleGetVoter(w http.ResponseWriter, r *http.Request) {
	wallet, err := parseWalletParam(r, "wallet")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	voter, err := h.Voters.GetVoter(r.Context(), wallet)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, voter)
}

// handleRegisterVoter registers the signed-in wallet
func (h *Handlers) handleRegisterVoter(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	caller := callerFrom(r)
	wallet := caller
	if req.Wallet != "" {
		wallet = common.HexToAddress(req.Wallet)
	}

	voter, err := h.Voters.RegisterVoter(r.Context(), caller, services.Registration{
		Wallet:   wallet,
		Name:     req.Name,
		MatricNo: req.MatricNo,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondCreated(w, voter)
}

// handleCheckCredentials confirms a wallet and matric number belong to a verified voter
func (h *Handlers) handleCheckCredentials(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	voter, err := h.Voters.CheckCredentials(r.Context(), common.HexToAddress(req.Wallet), req.MatricNo)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, voter)
}

func (h *Handlers) handleVerifyVoter(w http.ResponseWriter, r *http.Request) {
	wallet, err := parseWalletParam(r, "wallet")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	voter, err := h.Voters.VerifyVoter(r.Context(), callerFrom(r), wallet)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, voter)
}

// handleVoterCard serves a PNG QR code of the voter's wallet
func (h *Handlers) handleVoterCard(w http.ResponseWriter, r *http.Request) {
	wallet, err := parseWalletParam(r, "wallet")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	size, err := parseIntQuery(r, "size", services.DefaultCardSize)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if size > 2048 {
		h.respondError(w, r, BadRequest("size must be at most 2048"))
		return
	}

	png, err := h.Voters.VoterCard(r.Context(), callerFrom(r), wallet, size)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}
