package handlers

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abrezinsky/blockvote/internal/models"
)

// ChallengeResponse carries the message the wallet must sign
type ChallengeResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginResponse is returned after a successful wallet login
type LoginResponse struct {
	Token     string         `json:"token"`
	Wallet    common.Address `json:"wallet"`
	IsAdmin   bool           `json:"is_admin"`
	ExpiresIn int            `json:"expires_in"`
}

// MeResponse describes the signed-in caller
type MeResponse struct {
	Wallet  common.Address `json:"wallet"`
	IsAdmin bool           `json:"is_admin"`
	Voter   *models.Voter  `json:"voter"`
}

// IDResponse is returned when a record is created
type IDResponse struct {
	ID int64 `json:"id"`
}

// ElectionsResponse lists elections with their count
type ElectionsResponse struct {
	Elections []models.ElectionView `json:"elections"`
	Count     int                   `json:"count"`
}

// VotersResponse lists voters with their count
type VotersResponse struct {
	Voters []models.Voter `json:"voters"`
	Count  int            `json:"count"`
}

// HasVotedResponse answers whether a wallet voted in an election
type HasVotedResponse struct {
	ElectionID int64          `json:"election_id"`
	Wallet     common.Address `json:"wallet"`
	HasVoted   bool           `json:"has_voted"`
}

// EventsResponse is a page of the audit log, newest first
type EventsResponse struct {
	Events []models.Event `json:"events"`
	Count  int            `json:"count"`
}
