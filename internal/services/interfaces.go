package services

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abrezinsky/blockvote/internal/models"
)

// ElectionServicer defines the interface for election registry operations
type ElectionServicer interface {
	CreateElection(ctx context.Context, caller common.Address, in Election) (int64, error)
	UpdateElection(ctx context.Context, caller common.Address, id int64, in Election) error
	DeleteElection(ctx context.Context, caller common.Address, id int64) error
	EndElectionEarly(ctx context.Context, caller common.Address, id int64) error
	GetElection(ctx context.Context, id int64) (*models.ElectionView, error)
	ListElections(ctx context.Context) ([]models.ElectionView, error)
}

// CandidateServicer defines the interface for candidate roster operations
type CandidateServicer interface {
	AddCandidate(ctx context.Context, caller common.Address, electionID int64, name string) (int64, error)
	UpdateCandidate(ctx context.Context, caller common.Address, electionID, candidateID int64, name string) error
	DeleteCandidate(ctx context.Context, caller common.Address, electionID, candidateID int64) error
	GetCandidates(ctx context.Context, electionID int64) (*CandidateList, error)
}

// VoterServicer defines the interface for voter directory operations
type VoterServicer interface {
	RegisterVoter(ctx context.Context, caller common.Address, reg Registration) (*models.Voter, error)
	VerifyVoter(ctx context.Context, caller common.Address, wallet common.Address) (*models.Voter, error)
	GetVoter(ctx context.Context, wallet common.Address) (*models.Voter, error)
	ListVoters(ctx context.Context) ([]models.Voter, error)
	ListPendingVoters(ctx context.Context) ([]models.Voter, error)
	CheckCredentials(ctx context.Context, wallet common.Address, matricNo string) (*models.Voter, error)
	VoterCard(ctx context.Context, caller common.Address, wallet common.Address, size int) ([]byte, error)
}

// VotingServicer defines the interface for ballot box operations
type VotingServicer interface {
	Vote(ctx context.Context, caller common.Address, electionID, candidateID int64) (*VoteReceipt, error)
	HasVoted(ctx context.Context, electionID int64, wallet common.Address) (bool, error)
	GetResults(ctx context.Context, electionID int64) (*Results, error)
}

// AuditServicer defines the interface for reading the change log
type AuditServicer interface {
	ListEvents(ctx context.Context, caller common.Address, limit int) ([]models.Event, error)
}

// Ensure concrete types implement interfaces
var (
	_ ElectionServicer  = (*ElectionService)(nil)
	_ CandidateServicer = (*CandidateService)(nil)
	_ VoterServicer     = (*VoterService)(nil)
	_ VotingServicer    = (*VotingService)(nil)
	_ AuditServicer     = (*AuditService)(nil)
)
