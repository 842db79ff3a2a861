package services

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/skip2/go-qrcode"

	"github.com/abrezinsky/blockvote/internal/errors"
	"github.com/abrezinsky/blockvote/internal/models"
	"github.com/abrezinsky/blockvote/internal/repository"
)

// DefaultCardSize is the voter card QR edge length in pixels
const DefaultCardSize = 256

// VoterService is the voter directory
type VoterService struct {
	ledger *Ledger
}

// NewVoterService creates a new VoterService
func NewVoterService(ledger *Ledger) *VoterService {
	return &VoterService{ledger: ledger}
}

// Registration is a self-service voter registration request
type Registration struct {
	Wallet   common.Address
	Name     string
	MatricNo string
}

func voterNotFound(wallet common.Address) error {
	return errors.NotFoundf("voter %s not found", wallet.Hex())
}

// RegisterVoter creates an unverified voter record for the caller's own wallet
func (s *VoterService) RegisterVoter(ctx context.Context, caller common.Address, reg Registration) (*models.Voter, error) {
	if caller == (common.Address{}) || reg.Wallet != caller {
		return nil, errors.Unauthorized("voters may only register their own wallet")
	}
	name := strings.TrimSpace(reg.Name)
	matric := strings.TrimSpace(reg.MatricNo)
	if name == "" || matric == "" {
		return nil, errors.InvalidInput("name and matric number are required")
	}

	var voter *models.Voter
	err := s.ledger.mutate(ctx, "register-voter", caller, func(t *txn) error {
		if _, err := t.GetVoter(ctx, reg.Wallet); err == nil {
			return errors.AlreadyExists("wallet is already registered")
		} else if err != repository.ErrNotFound {
			return err
		}
		if _, err := t.GetVoterByMatricNo(ctx, matric); err == nil {
			return errors.AlreadyExists("matric number is already registered")
		} else if err != repository.ErrNotFound {
			return err
		}

		v := models.Voter{
			Wallet:         reg.Wallet,
			Name:           name,
			MatricNo:       matric,
			RegisteredAt:   t.now,
			VotedElections: []int64{},
		}
		err := t.InsertVoter(ctx, v)
		if err == repository.ErrDuplicate {
			return errors.AlreadyExists("voter is already registered")
		}
		if err != nil {
			return err
		}

		voter = &v
		t.emit(models.EventVoterRegistered, 0, 0, v.Wallet.Hex(), map[string]any{
			"name":      v.Name,
			"matric_no": v.MatricNo,
		})
		return nil
	})
	return voter, err
}

// VerifyVoter marks a registered voter eligible to vote. Verifying an
// already verified voter changes nothing.
func (s *VoterService) VerifyVoter(ctx context.Context, caller common.Address, wallet common.Address) (*models.Voter, error) {
	if err := s.ledger.access.RequireAdmin(caller); err != nil {
		return nil, err
	}

	var voter *models.Voter
	err := s.ledger.mutate(ctx, "verify-voter", caller, func(t *txn) error {
		v, err := t.GetVoter(ctx, wallet)
		if err == repository.ErrNotFound {
			return voterNotFound(wallet)
		}
		if err != nil {
			return err
		}
		voter = v
		if v.IsVerified {
			return nil
		}

		if err := t.SetVoterVerified(ctx, wallet, true); err != nil {
			return err
		}
		v.IsVerified = true

		t.emit(models.EventVoterVerified, 0, 0, wallet.Hex(), map[string]any{"is_verified": true})
		return nil
	})
	return voter, err
}

// GetVoter returns a voter by wallet
func (s *VoterService) GetVoter(ctx context.Context, wallet common.Address) (*models.Voter, error) {
	var voter *models.Voter
	err := s.ledger.read(ctx, func(st repository.Store, _ time.Time) error {
		v, err := st.GetVoter(ctx, wallet)
		if err == repository.ErrNotFound {
			return voterNotFound(wallet)
		}
		voter = v
		return err
	})
	return voter, err
}

// ListVoters returns every registered voter
func (s *VoterService) ListVoters(ctx context.Context) ([]models.Voter, error) {
	var voters []models.Voter
	err := s.ledger.read(ctx, func(st repository.Store, _ time.Time) error {
		var err error
		voters, err = st.ListVoters(ctx)
		return err
	})
	return voters, err
}

// ListPendingVoters returns registered voters awaiting verification
func (s *VoterService) ListPendingVoters(ctx context.Context) ([]models.Voter, error) {
	var voters []models.Voter
	err := s.ledger.read(ctx, func(st repository.Store, _ time.Time) error {
		var err error
		voters, err = st.ListPendingVoters(ctx)
		return err
	})
	return voters, err
}

// CheckCredentials confirms that wallet belongs to a verified voter holding matricNo
func (s *VoterService) CheckCredentials(ctx context.Context, wallet common.Address, matricNo string) (*models.Voter, error) {
	v, err := s.GetVoter(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(v.MatricNo, strings.TrimSpace(matricNo)) {
		return nil, errors.InvalidInput("matric number does not match this wallet")
	}
	if !v.IsVerified {
		return nil, errors.NotVerified("voter is awaiting verification")
	}
	return v, nil
}

// VoterCard renders a PNG QR code identifying a registered voter's wallet
func (s *VoterService) VoterCard(ctx context.Context, caller common.Address, wallet common.Address, size int) ([]byte, error) {
	if err := s.ledger.access.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultCardSize
	}

	v, err := s.GetVoter(ctx, wallet)
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode("ethereum:"+v.Wallet.Hex(), qrcode.Medium, size)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return png, nil
}
