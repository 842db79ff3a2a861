package services

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/abrezinsky/blockvote/internal/errors"
	"github.com/abrezinsky/blockvote/internal/logger"
	"github.com/abrezinsky/blockvote/internal/models"
	"github.com/abrezinsky/blockvote/internal/repository"
)

// Clock supplies the current time for status derivation
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Broadcaster defines the interface for broadcasting committed changes to clients
type Broadcaster interface {
	Publish(evt models.Event)
}

// Ledger is the single shared context every service operates on. It owns the
// store, the admin identity and the clock, and serialises all mutations.
type Ledger struct {
	mu          sync.RWMutex
	log         logger.Logger
	repo        repository.FullRepository
	clock       Clock
	access      *AccessController
	broadcaster Broadcaster
}

// NewLedger creates a Ledger
func NewLedger(log logger.Logger, repo repository.FullRepository, clock Clock, access *AccessController) *Ledger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Ledger{
		log:    log,
		repo:   repo,
		clock:  clock,
		access: access,
	}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (l *Ledger) SetBroadcaster(b Broadcaster) {
	l.mu.Lock()
	l.broadcaster = b
	l.mu.Unlock()
}

// Access returns the ledger's access controller
func (l *Ledger) Access() *AccessController {
	return l.access
}

// Now returns the ledger clock's current time
func (l *Ledger) Now() time.Time {
	return l.clock.Now()
}

// txn is the view a mutation gets: the transaction's store, the instant the
// mutation is evaluated at, and the events it will emit on commit.
type txn struct {
	repository.Store
	now    time.Time
	actor  common.Address
	events []models.Event
}

func (t *txn) emit(typ models.EventType, electionID, candidateID int64, wallet string, payload map[string]any) {
	t.events = append(t.events, models.Event{
		ID:          uuid.New(),
		Type:        typ,
		ElectionID:  electionID,
		CandidateID: candidateID,
		Wallet:      wallet,
		Actor:       t.actor.Hex(),
		Payload:     payload,
		At:          t.now,
	})
}

// mutate runs fn as one indivisible ledger operation. Every mutation holds
// the write lock for its whole transaction; events are written to the audit
// log in the same transaction and published only after commit.
func (l *Ledger) mutate(ctx context.Context, op string, actor common.Address, fn func(t *txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var committed []models.Event
	err := l.repo.InTx(ctx, func(s repository.Store) error {
		t := &txn{Store: s, now: l.clock.Now(), actor: actor}
		if err := fn(t); err != nil {
			return err
		}
		for _, evt := range t.events {
			if err := s.InsertEvent(ctx, evt); err != nil {
				return err
			}
		}
		committed = t.events
		return nil
	})
	if err != nil {
		err = translate(err)
		l.log.Debug("Mutation rejected", "op", op, "actor", actor.Hex(), "kind", errors.KindOf(err).String(), "error", err)
		return err
	}

	for _, evt := range committed {
		l.log.Info("Ledger changed", "event", string(evt.Type), "election_id", evt.ElectionID,
			"candidate_id", evt.CandidateID, "wallet", evt.Wallet, "actor", evt.Actor)
		if l.broadcaster != nil {
			l.broadcaster.Publish(evt)
		}
	}
	return nil
}

// read runs fn against a consistent snapshot of the ledger
func (l *Ledger) read(ctx context.Context, fn func(s repository.Store, now time.Time) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.clock.Now()
	return translate(l.repo.InTx(ctx, func(s repository.Store) error {
		return fn(s, now)
	}))
}

// translate passes typed ledger errors and context errors through and wraps
// anything else as an internal failure
func translate(err error) error {
	if err == nil {
		return nil
	}
	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Internal(err)
}

// liveElection loads an election, treating tombstoned ones as missing
func liveElection(ctx context.Context, s repository.Store, id int64) (*models.Election, error) {
	e, err := s.GetElection(ctx, id)
	if err == repository.ErrNotFound {
		return nil, errors.NotFoundf("election %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	if e.Deleted {
		return nil, errors.NotFoundf("election %d not found", id)
	}
	return e, nil
}
