package services

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abrezinsky/blockvote/internal/errors"
	"github.com/abrezinsky/blockvote/internal/models"
	"github.com/abrezinsky/blockvote/internal/repository"
)

// VotingService is the ballot box: vote casting and tallies
type VotingService struct {
	ledger *Ledger
}

// NewVotingService creates a new VotingService
func NewVotingService(ledger *Ledger) *VotingService {
	return &VotingService{ledger: ledger}
}

// VoteReceipt describes a recorded vote
type VoteReceipt struct {
	ElectionID  int64          `json:"election_id"`
	CandidateID int64          `json:"candidate_id"`
	Wallet      common.Address `json:"wallet"`
	VoteCount   int64          `json:"vote_count"`
	CastAt      time.Time      `json:"cast_at"`
}

// Results is an election's raw tallies. Candidates keep insertion order;
// ranking is left to the client.
type Results struct {
	Election     models.ElectionView `json:"election"`
	Candidates   []models.Candidate  `json:"candidates"`
	TotalVotes   int64               `json:"total_votes"`
	VoterTurnout int64               `json:"voter_turnout"`
}

// Vote casts the caller's single vote in an election. The tally increment and
// the voter's voted mark are committed together or not at all.
func (s *VotingService) Vote(ctx context.Context, caller common.Address, electionID, candidateID int64) (*VoteReceipt, error) {
	var receipt *VoteReceipt
	err := s.ledger.mutate(ctx, "vote", caller, func(t *txn) error {
		voter, err := t.GetVoter(ctx, caller)
		if err == repository.ErrNotFound {
			return errors.NotVerified("caller is not a registered voter")
		}
		if err != nil {
			return err
		}
		if !voter.IsVerified {
			return errors.NotVerified("voter is awaiting verification")
		}

		e, err := liveElection(ctx, t, electionID)
		if err != nil {
			return err
		}
		if status := e.StatusAt(t.now); status != models.StatusActive {
			return errors.VotingClosed("election is " + string(status))
		}

		if _, err := t.GetCandidate(ctx, electionID, candidateID); err == repository.ErrNotFound {
			return errors.NotFoundf("candidate %d not found in election %d", candidateID, electionID)
		} else if err != nil {
			return err
		}

		if voter.HasVotedIn(electionID) {
			return errors.AlreadyVoted("voter has already voted in this election")
		}

		count, err := t.IncrementVoteCount(ctx, electionID, candidateID)
		if err != nil {
			return err
		}
		err = t.MarkVoted(ctx, caller, electionID, t.now)
		if err == repository.ErrDuplicate {
			return errors.AlreadyVoted("voter has already voted in this election")
		}
		if err != nil {
			return err
		}

		receipt = &VoteReceipt{
			ElectionID:  electionID,
			CandidateID: candidateID,
			Wallet:      caller,
			VoteCount:   count,
			CastAt:      t.now,
		}
		t.emit(models.EventVoteCast, electionID, candidateID, caller.Hex(), map[string]any{"vote_count": count})
		return nil
	})
	return receipt, err
}

// HasVoted reports whether wallet has voted in an election. Unknown
// elections and wallets report false.
func (s *VotingService) HasVoted(ctx context.Context, electionID int64, wallet common.Address) (bool, error) {
	var voted bool
	err := s.ledger.read(ctx, func(st repository.Store, _ time.Time) error {
		var err error
		voted, err = st.HasVoted(ctx, electionID, wallet)
		return err
	})
	return voted, err
}

// GetResults returns an election's tallies and turnout from one snapshot
func (s *VotingService) GetResults(ctx context.Context, electionID int64) (*Results, error) {
	var res *Results
	err := s.ledger.read(ctx, func(st repository.Store, now time.Time) error {
		e, err := liveElection(ctx, st, electionID)
		if err != nil {
			return err
		}
		candidates, err := st.ListCandidates(ctx, electionID)
		if err != nil {
			return err
		}
		total, err := st.SumVotes(ctx, electionID)
		if err != nil {
			return err
		}
		turnout, err := st.CountVoters(ctx, electionID)
		if err != nil {
			return err
		}

		res = &Results{
			Election:     models.ElectionView{Election: *e, Status: e.StatusAt(now)},
			Candidates:   candidates,
			TotalVotes:   total,
			VoterTurnout: turnout,
		}
		return nil
	})
	return res, err
}
