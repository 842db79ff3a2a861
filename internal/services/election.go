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

// ElectionService is the election registry
type ElectionService struct {
	ledger *Ledger
}

// NewElectionService creates a new ElectionService
func NewElectionService(ledger *Ledger) *ElectionService {
	return &ElectionService{ledger: ledger}
}

// Election holds the editable fields of an election
type Election struct {
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
}

func (in Election) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return errors.InvalidInput("title is required")
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return errors.InvalidTimeWindow("start and end time are required")
	}
	if !models.InWindowRange(in.StartTime) || !models.InWindowRange(in.EndTime) {
		return errors.InvalidTimeWindowf("window must lie between %s and %s",
			models.MinWindowTime.Format(time.RFC3339), models.MaxWindowTime.Format(time.RFC3339))
	}
	if !in.EndTime.After(in.StartTime) {
		return errors.InvalidTimeWindow("end time must be after start time")
	}
	return nil
}

func electionPayload(e models.Election) map[string]any {
	return map[string]any{
		"title":       e.Title,
		"description": e.Description,
		"start_time":  e.StartTime.Unix(),
		"end_time":    e.EndTime.Unix(),
	}
}

// CreateElection registers a new election and returns its id
func (s *ElectionService) CreateElection(ctx context.Context, caller common.Address, in Election) (int64, error) {
	if err := s.ledger.access.RequireAdmin(caller); err != nil {
		return 0, err
	}
	if err := in.validate(); err != nil {
		return 0, err
	}

	var id int64
	err := s.ledger.mutate(ctx, "create-election", caller, func(t *txn) error {
		var err error
		id, err = t.AllocateElectionID(ctx)
		if err != nil {
			return err
		}

		e := models.Election{
			ID:          id,
			Title:       strings.TrimSpace(in.Title),
			Description: in.Description,
			StartTime:   in.StartTime,
			EndTime:     in.EndTime,
		}
		if err := t.InsertElection(ctx, e); err != nil {
			return err
		}

		t.emit(models.EventElectionCreated, id, 0, "", electionPayload(e))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateElection rewrites a pending election's details and window
func (s *ElectionService) UpdateElection(ctx context.Context, caller common.Address, id int64, in Election) error {
	if err := s.ledger.access.RequireAdmin(caller); err != nil {
		return err
	}

	return s.ledger.mutate(ctx, "update-election", caller, func(t *txn) error {
		e, err := liveElection(ctx, t, id)
		if err != nil {
			return err
		}
		if status := e.StatusAt(t.now); status != models.StatusPending {
			return errors.ElectionLockedf("election %d is %s", id, status)
		}
		if err := in.validate(); err != nil {
			return err
		}

		e.Title = strings.TrimSpace(in.Title)
		e.Description = in.Description
		e.StartTime = in.StartTime
		e.EndTime = in.EndTime
		if err := t.UpdateElection(ctx, *e); err != nil {
			return err
		}

		t.emit(models.EventElectionUpdated, id, 0, "", electionPayload(*e))
		return nil
	})
}

// DeleteElection tombstones a pending election that has no candidates
func (s *ElectionService) DeleteElection(ctx context.Context, caller common.Address, id int64) error {
	if err := s.ledger.access.RequireAdmin(caller); err != nil {
		return err
	}

	return s.ledger.mutate(ctx, "delete-election", caller, func(t *txn) error {
		e, err := liveElection(ctx, t, id)
		if err != nil {
			return err
		}
		if status := e.StatusAt(t.now); status != models.StatusPending {
			return errors.ElectionLockedf("election %d is %s", id, status)
		}
		if e.CandidateCount > 0 {
			return errors.NotEmpty("election still has candidates")
		}

		if err := t.TombstoneElection(ctx, id); err != nil {
			return err
		}

		t.emit(models.EventElectionDeleted, id, 0, "", nil)
		return nil
	})
}

// EndElectionEarly closes an active election by moving its end time to now
func (s *ElectionService) EndElectionEarly(ctx context.Context, caller common.Address, id int64) error {
	if err := s.ledger.access.RequireAdmin(caller); err != nil {
		return err
	}

	return s.ledger.mutate(ctx, "end-election", caller, func(t *txn) error {
		e, err := liveElection(ctx, t, id)
		if err != nil {
			return err
		}
		if status := e.StatusAt(t.now); status != models.StatusActive {
			return errors.ElectionLockedf("election %d is %s, not active", id, status)
		}

		e.EndTime = t.now
		if err := t.UpdateElection(ctx, *e); err != nil {
			return err
		}

		payload := electionPayload(*e)
		payload["ended_early"] = true
		t.emit(models.EventElectionUpdated, id, 0, "", payload)
		return nil
	})
}

// GetElection returns an election with its status at read time
func (s *ElectionService) GetElection(ctx context.Context, id int64) (*models.ElectionView, error) {
	var view *models.ElectionView
	err := s.ledger.read(ctx, func(st repository.Store, now time.Time) error {
		e, err := liveElection(ctx, st, id)
		if err != nil {
			return err
		}
		view = &models.ElectionView{Election: *e, Status: e.StatusAt(now)}
		return nil
	})
	return view, err
}

// ListElections returns every live election in id order
func (s *ElectionService) ListElections(ctx context.Context) ([]models.ElectionView, error) {
	var views []models.ElectionView
	err := s.ledger.read(ctx, func(st repository.Store, now time.Time) error {
		elections, err := st.ListElections(ctx)
		if err != nil {
			return err
		}
		views = make([]models.ElectionView, 0, len(elections))
		for _, e := range elections {
			views = append(views, models.ElectionView{Election: e, Status: e.StatusAt(now)})
		}
		return nil
	})
	return views, err
}
