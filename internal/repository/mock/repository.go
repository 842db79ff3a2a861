package mock

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abrezinsky/blockvote/internal/models"
	"github.com/abrezinsky/blockvote/internal/repository"
)

// Errors holds the errors to inject, one per repository method.
// A nil field passes the call through to the real repository.
type Errors struct {
	// ===== Transaction Errors =====
	InTxError error

	// ===== Meta Errors =====
	GetMetaError            error
	SetMetaError            error
	AllocateElectionIDError error

	// ===== Election Errors =====
	InsertElectionError       error
	GetElectionError          error
	ListElectionsError        error
	UpdateElectionError       error
	TombstoneElectionError    error
	AllocateCandidateIDError  error
	AdjustCandidateCountError error

	// ===== Candidate Errors =====
	InsertCandidateError error
	GetCandidateError    error
	ListCandidatesError  error
	RenameCandidateError error
	DeleteCandidateError error

	// ===== Voter Errors =====
	InsertVoterError        error
	GetVoterError           error
	GetVoterByMatricNoError error
	ListVotersError         error
	ListPendingVotersError  error
	SetVoterVerifiedError   error

	// ===== Ballot Errors =====
	IncrementVoteCountError error
	MarkVotedError          error
	HasVotedError           error
	SumVotesError           error
	CountVotersError        error

	// ===== Audit Errors =====
	InsertEventError error
	ListEventsError  error
}

// Repository wraps a real repository and allows injecting errors for testing.
// Injection also applies inside InTx, so a failure part way through a
// mutation can be used to check that nothing was committed.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.MarkVotedError = errors.New("database error")
//	ledger := services.NewLedger(log, mockRepo, clock, access)
//	_, err := services.NewVotingService(ledger).Vote(ctx, voter, 1, 1)
//	// err wraps the injected error and the tally is unchanged
type Repository struct {
	repository.FullRepository
	Errors
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// InTx runs fn against an error-injecting view of the transaction
func (m *Repository) InTx(ctx context.Context, fn func(repository.Store) error) error {
	if m.InTxError != nil {
		return m.InTxError
	}
	return m.FullRepository.InTx(ctx, func(s repository.Store) error {
		return fn(&Store{Store: s, errs: &m.Errors})
	})
}

// Store is a transaction-scoped Store with error injection
type Store struct {
	repository.Store
	errs *Errors
}

var (
	_ repository.FullRepository = (*Repository)(nil)
	_ repository.Store          = (*Store)(nil)
)

// ===== Meta Methods =====

func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	if s.errs.GetMetaError != nil {
		return "", s.errs.GetMetaError
	}
	return s.Store.GetMeta(ctx, key)
}

func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	if s.errs.SetMetaError != nil {
		return s.errs.SetMetaError
	}
	return s.Store.SetMeta(ctx, key, value)
}

func (s *Store) AllocateElectionID(ctx context.Context) (int64, error) {
	if s.errs.AllocateElectionIDError != nil {
		return 0, s.errs.AllocateElectionIDError
	}
	return s.Store.AllocateElectionID(ctx)
}

// ===== Election Methods =====

func (s *Store) InsertElection(ctx context.Context, e models.Election) error {
	if s.errs.InsertElectionError != nil {
		return s.errs.InsertElectionError
	}
	return s.Store.InsertElection(ctx, e)
}

func (s *Store) GetElection(ctx context.Context, id int64) (*models.Election, error) {
	if s.errs.GetElectionError != nil {
		return nil, s.errs.GetElectionError
	}
	return s.Store.GetElection(ctx, id)
}

func (s *Store) ListElections(ctx context.Context) ([]models.Election, error) {
	if s.errs.ListElectionsError != nil {
		return nil, s.errs.ListElectionsError
	}
	return s.Store.ListElections(ctx)
}

func (s *Store) UpdateElection(ctx context.Context, e models.Election) error {
	if s.errs.UpdateElectionError != nil {
		return s.errs.UpdateElectionError
	}
	return s.Store.UpdateElection(ctx, e)
}

func (s *Store) TombstoneElection(ctx context.Context, id int64) error {
	if s.errs.TombstoneElectionError != nil {
		return s.errs.TombstoneElectionError
	}
	return s.Store.TombstoneElection(ctx, id)
}

func (s *Store) AllocateCandidateID(ctx context.Context, electionID int64) (int64, error) {
	if s.errs.AllocateCandidateIDError != nil {
		return 0, s.errs.AllocateCandidateIDError
	}
	return s.Store.AllocateCandidateID(ctx, electionID)
}

func (s *Store) AdjustCandidateCount(ctx context.Context, electionID int64, delta int) error {
	if s.errs.AdjustCandidateCountError != nil {
		return s.errs.AdjustCandidateCountError
	}
	return s.Store.AdjustCandidateCount(ctx, electionID, delta)
}

// ===== Candidate Methods =====

func (s *Store) InsertCandidate(ctx context.Context, c models.Candidate) error {
	if s.errs.InsertCandidateError != nil {
		return s.errs.InsertCandidateError
	}
	return s.Store.InsertCandidate(ctx, c)
}

func (s *Store) GetCandidate(ctx context.Context, electionID, candidateID int64) (*models.Candidate, error) {
	if s.errs.GetCandidateError != nil {
		return nil, s.errs.GetCandidateError
	}
	return s.Store.GetCandidate(ctx, electionID, candidateID)
}

func (s *Store) ListCandidates(ctx context.Context, electionID int64) ([]models.Candidate, error) {
	if s.errs.ListCandidatesError != nil {
		return nil, s.errs.ListCandidatesError
	}
	return s.Store.ListCandidates(ctx, electionID)
}

func (s *Store) RenameCandidate(ctx context.Context, electionID, candidateID int64, name string) error {
	if s.errs.RenameCandidateError != nil {
		return s.errs.RenameCandidateError
	}
	return s.Store.RenameCandidate(ctx, electionID, candidateID, name)
}

func (s *Store) DeleteCandidate(ctx context.Context, electionID, candidateID int64) error {
	if s.errs.DeleteCandidateError != nil {
		return s.errs.DeleteCandidateError
	}
	return s.Store.DeleteCandidate(ctx, electionID, candidateID)
}

// ===== Voter Methods =====

func (s *Store) InsertVoter(ctx context.Context, v models.Voter) error {
	if s.errs.InsertVoterError != nil {
		return s.errs.InsertVoterError
	}
	return s.Store.InsertVoter(ctx, v)
}

func (s *Store) GetVoter(ctx context.Context, wallet common.Address) (*models.Voter, error) {
	if s.errs.GetVoterError != nil {
		return nil, s.errs.GetVoterError
	}
	return s.Store.GetVoter(ctx, wallet)
}

func (s *Store) GetVoterByMatricNo(ctx context.Context, matricNo string) (*models.Voter, error) {
	if s.errs.GetVoterByMatricNoError != nil {
		return nil, s.errs.GetVoterByMatricNoError
	}
	return s.Store.GetVoterByMatricNo(ctx, matricNo)
}

func (s *Store) ListVoters(ctx context.Context) ([]models.Voter, error) {
	if s.errs.ListVotersError != nil {
		return nil, s.errs.ListVotersError
	}
	return s.Store.ListVoters(ctx)
}

func (s *Store) ListPendingVoters(ctx context.Context) ([]models.Voter, error) {
	if s.errs.ListPendingVotersError != nil {
		return nil, s.errs.ListPendingVotersError
	}
	return s.Store.ListPendingVoters(ctx)
}

func (s *Store) SetVoterVerified(ctx context.Context, wallet common.Address, verified bool) error {
	if s.errs.SetVoterVerifiedError != nil {
		return s.errs.SetVoterVerifiedError
	}
	return s.Store.SetVoterVerified(ctx, wallet, verified)
}

// ===== Ballot Methods =====

func (s *Store) IncrementVoteCount(ctx context.Context, electionID, candidateID int64) (int64, error) {
	if s.errs.IncrementVoteCountError != nil {
		return 0, s.errs.IncrementVoteCountError
	}
	return s.Store.IncrementVoteCount(ctx, electionID, candidateID)
}

func (s *Store) MarkVoted(ctx context.Context, wallet common.Address, electionID int64, at time.Time) error {
	if s.errs.MarkVotedError != nil {
		return s.errs.MarkVotedError
	}
	return s.Store.MarkVoted(ctx, wallet, electionID, at)
}

func (s *Store) HasVoted(ctx context.Context, electionID int64, wallet common.Address) (bool, error) {
	if s.errs.HasVotedError != nil {
		return false, s.errs.HasVotedError
	}
	return s.Store.HasVoted(ctx, electionID, wallet)
}

func (s *Store) SumVotes(ctx context.Context, electionID int64) (int64, error) {
	if s.errs.SumVotesError != nil {
		return 0, s.errs.SumVotesError
	}
	return s.Store.SumVotes(ctx, electionID)
}

func (s *Store) CountVoters(ctx context.Context, electionID int64) (int64, error) {
	if s.errs.CountVotersError != nil {
		return 0, s.errs.CountVotersError
	}
	return s.Store.CountVoters(ctx, electionID)
}

// ===== Audit Methods =====

func (s *Store) InsertEvent(ctx context.Context, evt models.Event) error {
	if s.errs.InsertEventError != nil {
		return s.errs.InsertEventError
	}
	return s.Store.InsertEvent(ctx, evt)
}

func (s *Store) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	if s.errs.ListEventsError != nil {
		return nil, s.errs.ListEventsError
	}
	return s.Store.ListEvents(ctx, limit)
}
