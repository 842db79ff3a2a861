package handlers

import "time"

// ChallengeRequest asks for a login message to sign
type ChallengeRequest struct {
	Wallet string `json:"wallet" validate:"required,eth_addr"`
}

// LoginRequest submits a signed challenge
type LoginRequest struct {
	Wallet    string `json:"wallet" validate:"required,eth_addr"`
	Signature string `json:"signature" validate:"required,hexadecimal"`
}

// ElectionRequest creates or replaces an election's details
type ElectionRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
}

// CandidateRequest adds or renames a candidate
type CandidateRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// RegisterRequest registers the caller as a voter. Wallet defaults to the caller.
type RegisterRequest struct {
	Wallet   string `json:"wallet" validate:"omitempty,eth_addr"`
	Name     string `json:"name" validate:"required,max=200"`
	MatricNo string `json:"matric_no" validate:"required,max=64"`
}

// CredentialsRequest checks a voter's wallet and matric number
type CredentialsRequest struct {
	Wallet   string `json:"wallet" validate:"required,eth_addr"`
	MatricNo string `json:"matric_no" validate:"required"`
}

// VoteRequest casts the caller's vote
type VoteRequest struct {
	CandidateID int64 `json:"candidate_id" validate:"required,gt=0"`
}
