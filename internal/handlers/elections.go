package handlers

import (
	"net/http"

	"github.com/abrezinsky/blockvote/internal/services"
)

func (req ElectionRequest) toElection() services.Election {
	return services.Election{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
}

// handleListElections returns every live election with its status
func (h *Handlers) handleListElections(w http.ResponseWriter, r *http.Request) {
	elections, err := h.Elections.ListElections(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, ElectionsResponse{Elections: elections, Count: len(elections)})
}

func (h *Handlers) handleGetElection(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	election, err := h.Elections.GetElection(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, election)
}

func (h *Handlers) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var req ElectionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	id, err := h.Elections.CreateElection(r.Context(), callerFrom(r), req.toElection())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondCreated(w, IDResponse{ID: id})
}

func (h *Handlers) handleUpdateElection(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req ElectionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.Elections.UpdateElection(r.Context(), callerFrom(r), id, req.toElection()); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondSuccess(w, "Election updated")
}

func (h *Handlers) handleDeleteElection(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.Elections.DeleteElection(r.Context(), callerFrom(r), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondDeleted(w)
}

// handleEndElection closes an active election's window now
func (h *Handlers) handleEndElection(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.Elections.EndElectionEarly(r.Context(), callerFrom(r), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondSuccess(w, "Election ended")
}

func (h *Handlers) handleGetCandidates(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	list, err := h.Candidates.GetCandidates(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, list)
}

func (h *Handlers) handleAddCandidate(w http.ResponseWriter, r *http.Request) {
	electionID, err := parseIDParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req CandidateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	id, err := h.Candidates.AddCandidate(r.Context(), callerFrom(r), electionID, req.Name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondCreated(w, IDResponse{ID: id})
}

func (h *Handlers) handleUpdateCandidate(w http.ResponseWriter, r *http.Request) {
	electionID, err := parseIDParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	candidateID, err := parseIDParam(r, "candidateID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req CandidateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.Candidates.UpdateCandidate(r.Context(), callerFrom(r), electionID, candidateID, req.Name); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondSuccess(w, "Candidate updated")
}

func (h *Handlers) handleDeleteCandidate(w http.ResponseWriter, r *http.Request) {
	electionID, err := parseIDParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	candidateID, err := parseIDParam(r, "candidateID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.Candidates.DeleteCandidate(r.Context(), callerFrom(r), electionID, candidateID); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondDeleted(w)
}
