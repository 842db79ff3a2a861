package services

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abrezinsky/blockvote/internal/errors"
	"github.com/abrezinsky/blockvote/internal/models"
	"github.com/abrezinsky/blockvote/internal/repository"
)

// CandidateService is the per-election candidate roster
type CandidateService struct {
	ledger *Ledger
}

// NewCandidateService creates a new CandidateService
func NewCandidateService(ledger *Ledger) *CandidateService {
	return &CandidateService{ledger: ledger}
}

// CandidateList is an election's roster together with whether it can still change
type CandidateList struct {
	ElectionID int64              `json:"election_id"`
	Candidates []models.Candidate `json:"candidates"`
	Locked     bool               `json:"locked"`
}

// pendingElection loads an election whose roster may still change
func pendingElection(ctx context.Context, t *txn, id int64) (*models.Election, error) {
	e, err := liveElection(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if status := e.StatusAt(t.now); status != models.StatusPending {
		return nil, errors.ElectionLockedf("election %d is %s; candidates are locked", id, status)
	}
	return e, nil
}

func candidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.InvalidInput("candidate name is required")
	}
	return name, nil
}

// AddCandidate adds a candidate to a pending election and returns its id
func (s *CandidateService) AddCandidate(ctx context.Context, caller common.Address, electionID int64, name string) (int64, error) {
	if err := s.ledger.access.RequireAdmin(caller); err != nil {
		return 0, err
	}
	name, err := candidateName(name)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.ledger.mutate(ctx, "add-candidate", caller, func(t *txn) error {
		if _, err := pendingElection(ctx, t, electionID); err != nil {
			return err
		}

		var err error
		id, err = t.AllocateCandidateID(ctx, electionID)
		if err != nil {
			return err
		}
		if err := t.InsertCandidate(ctx, models.Candidate{ID: id, ElectionID: electionID, Name: name}); err != nil {
			return err
		}
		if err := t.AdjustCandidateCount(ctx, electionID, 1); err != nil {
			return err
		}

		t.emit(models.EventCandidateAdded, electionID, id, "", map[string]any{"name": name})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateCandidate renames a candidate of a pending election
func (s *CandidateService) UpdateCandidate(ctx context.Context, caller common.Address, electionID, candidateID int64, name string) error {
	if err := s.ledger.access.RequireAdmin(caller); err != nil {
		return err
	}
	name, err := candidateName(name)
	if err != nil {
		return err
	}

	return s.ledger.mutate(ctx, "update-candidate", caller, func(t *txn) error {
		if _, err := pendingElection(ctx, t, electionID); err != nil {
			return err
		}

		err := t.RenameCandidate(ctx, electionID, candidateID, name)
		if err == repository.ErrNotFound {
			return errors.NotFoundf("candidate %d not found in election %d", candidateID, electionID)
		}
		if err != nil {
			return err
		}

		t.emit(models.EventCandidateUpdated, electionID, candidateID, "", map[string]any{"name": name})
		return nil
	})
}

// DeleteCandidate removes a candidate from a pending election
func (s *CandidateService) DeleteCandidate(ctx context.Context, caller common.Address, electionID, candidateID int64) error {
	if err := s.ledger.access.RequireAdmin(caller); err != nil {
		return err
	}

	return s.ledger.mutate(ctx, "delete-candidate", caller, func(t *txn) error {
		if _, err := pendingElection(ctx, t, electionID); err != nil {
			return err
		}

		err := t.DeleteCandidate(ctx, electionID, candidateID)
		if err == repository.ErrNotFound {
			return errors.NotFoundf("candidate %d not found in election %d", candidateID, electionID)
		}
		if err != nil {
			return err
		}
		if err := t.AdjustCandidateCount(ctx, electionID, -1); err != nil {
			return err
		}

		t.emit(models.EventCandidateDeleted, electionID, candidateID, "", nil)
		return nil
	})
}

// GetCandidates returns an election's candidates in insertion order and
// whether the roster is locked
func (s *CandidateService) GetCandidates(ctx context.Context, electionID int64) (*CandidateList, error) {
	var list *CandidateList
	err := s.ledger.read(ctx, func(st repository.Store, now time.Time) error {
		e, err := liveElection(ctx, st, electionID)
		if err != nil {
			return err
		}
		candidates, err := st.ListCandidates(ctx, electionID)
		if err != nil {
			return err
		}
		list = &CandidateList{
			ElectionID: electionID,
			Candidates: candidates,
			Locked:     e.StatusAt(now) != models.StatusPending,
		}
		return nil
	})
	return list, err
}
