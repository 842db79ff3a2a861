package repository

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abrezinsky/blockvote/internal/models"
)

// MetaRepository defines ledger-wide singleton values (admin identity, id counters)
type MetaRepository interface {
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
	AllocateElectionID(ctx context.Context) (int64, error)
}

// ElectionRepository defines election data operations
type ElectionRepository interface {
	InsertElection(ctx context.Context, e models.Election) error
	GetElection(ctx context.Context, id int64) (*models.Election, error)
	ListElections(ctx context.Context) ([]models.Election, error)
	UpdateElection(ctx context.Context, e models.Election) error
	TombstoneElection(ctx context.Context, id int64) error
	AllocateCandidateID(ctx context.Context, electionID int64) (int64, error)
	AdjustCandidateCount(ctx context.Context, electionID int64, delta int) error
}

// CandidateRepository defines candidate data operations
type CandidateRepository interface {
	InsertCandidate(ctx context.Context, c models.Candidate) error
	GetCandidate(ctx context.Context, electionID, candidateID int64) (*models.Candidate, error)
	ListCandidates(ctx context.Context, electionID int64) ([]models.Candidate, error)
	RenameCandidate(ctx context.Context, electionID, candidateID int64, name string) error
	DeleteCandidate(ctx context.Context, electionID, candidateID int64) error
}

// VoterRepository defines voter data operations
type VoterRepository interface {
	InsertVoter(ctx context.Context, v models.Voter) error
	GetVoter(ctx context.Context, wallet common.Address) (*models.Voter, error)
	GetVoterByMatricNo(ctx context.Context, matricNo string) (*models.Voter, error)
	ListVoters(ctx context.Context) ([]models.Voter, error)
	ListPendingVoters(ctx context.Context) ([]models.Voter, error)
	SetVoterVerified(ctx context.Context, wallet common.Address, verified bool) error
}

// BallotRepository defines vote data operations
type BallotRepository interface {
	IncrementVoteCount(ctx context.Context, electionID, candidateID int64) (int64, error)
	MarkVoted(ctx context.Context, wallet common.Address, electionID int64, at time.Time) error
	HasVoted(ctx context.Context, electionID int64, wallet common.Address) (bool, error)
	SumVotes(ctx context.Context, electionID int64) (int64, error)
	CountVoters(ctx context.Context, electionID int64) (int64, error)
}

// AuditRepository defines the append-only change log
type AuditRepository interface {
	InsertEvent(ctx context.Context, evt models.Event) error
	ListEvents(ctx context.Context, limit int) ([]models.Event, error)
}

// Store combines all record-level interfaces. It is implemented both by the
// Repository (autocommit) and by Tx (inside a transaction).
type Store interface {
	MetaRepository
	ElectionRepository
	CandidateRepository
	VoterRepository
	BallotRepository
	AuditRepository
}

// Transactor runs fn inside a single transaction. If fn returns an error
// nothing it did is committed.
type Transactor interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// FullRepository combines all repository interfaces
// Use this when a service needs transactional access to multiple domains
type FullRepository interface {
	Store
	Transactor
}

// Ensure Repository and Tx implement all interfaces
var (
	_ FullRepository = (*Repository)(nil)
	_ Store          = (*Tx)(nil)
)
