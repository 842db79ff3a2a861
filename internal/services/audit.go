package services

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abrezinsky/blockvote/internal/models"
	"github.com/abrezinsky/blockvote/internal/repository"
)

// DefaultAuditLimit caps ListEvents when no limit is given
const DefaultAuditLimit = 100

// AuditService exposes the persisted change log
type AuditService struct {
	ledger *Ledger
}

// NewAuditService creates a new AuditService
func NewAuditService(ledger *Ledger) *AuditService {
	return &AuditService{ledger: ledger}
}

// ListEvents returns the most recent ledger events, newest first
func (s *AuditService) ListEvents(ctx context.Context, caller common.Address, limit int) ([]models.Event, error) {
	if err := s.ledger.access.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultAuditLimit
	}

	var events []models.Event
	err := s.ledger.read(ctx, func(st repository.Store, _ time.Time) error {
		var err error
		events, err = st.ListEvents(ctx, limit)
		return err
	})
	return events, err
}
