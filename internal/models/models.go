package models

import (
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Status is the derived lifecycle state of an election at a point in time
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
)

// StatusAt derives an election's status from its window.
// The window is inclusive at both ends.
func StatusAt(now, start, end time.Time) Status {
	if now.Before(start) {
		return StatusPending
	}
	if now.After(end) {
		return StatusEnded
	}
	return StatusActive
}

// Election windows are limited to instants from the Unix epoch up to the
// last one representable in int64 nanoseconds.
var (
	MinWindowTime = time.Unix(0, 0).UTC()
	MaxWindowTime = time.Unix(0, math.MaxInt64).UTC()
)

// InWindowRange reports whether t can be stored as an election boundary
func InWindowRange(t time.Time) bool {
	return !t.Before(MinWindowTime) && !t.After(MaxWindowTime)
}

// Election is a time-bounded contest with a roster of candidates
type Election struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	CandidateCount  int       `json:"candidate_count"`
	Deleted         bool      `json:"-"`
	NextCandidateID int64     `json:"-"`
}

// StatusAt returns the election's derived status at now
func (e Election) StatusAt(now time.Time) Status {
	return StatusAt(now, e.StartTime, e.EndTime)
}

// ElectionView is an election together with its status at read time
type ElectionView struct {
	Election
	Status Status `json:"status"`
}

// Candidate is a contestant in exactly one election
type Candidate struct {
	ID         int64  `json:"id"`
	ElectionID int64  `json:"election_id"`
	Name       string `json:"name"`
	VoteCount  int64  `json:"vote_count"`
}

// Voter is a registration record keyed by wallet
type Voter struct {
	Wallet         common.Address `json:"wallet"`
	Name           string         `json:"name"`
	MatricNo       string         `json:"matric_no"`
	IsVerified     bool           `json:"is_verified"`
	RegisteredAt   time.Time      `json:"registered_at"`
	VotedElections []int64        `json:"voted_elections"`
}

// HasVotedIn reports whether electionID is in the voter's voted set
func (v Voter) HasVotedIn(electionID int64) bool {
	for _, id := range v.VotedElections {
		if id == electionID {
			return true
		}
	}
	return false
}

// EventType names a ledger change notification
type EventType string

const (
	EventElectionCreated  EventType = "election-created"
	EventElectionUpdated  EventType = "election-updated"
	EventElectionDeleted  EventType = "election-deleted"
	EventCandidateAdded   EventType = "candidate-added"
	EventCandidateUpdated EventType = "candidate-updated"
	EventCandidateDeleted EventType = "candidate-deleted"
	EventVoterRegistered  EventType = "voter-registered"
	EventVoterVerified    EventType = "voter-verified"
	EventVoteCast         EventType = "vote-cast"
	EventElectionStatus   EventType = "election-status"
)

// Event is a committed ledger change. It is persisted to the audit log and
// broadcast to connected clients.
type Event struct {
	ID          uuid.UUID      `json:"id"`
	Type        EventType      `json:"type"`
	ElectionID  int64          `json:"election_id,omitempty"`
	CandidateID int64          `json:"candidate_id,omitempty"`
	Wallet      string         `json:"wallet,omitempty"`
	Actor       string         `json:"actor"`
	Payload     map[string]any `json:"payload,omitempty"`
	At          time.Time      `json:"at"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
