package services

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abrezinsky/blockvote/internal/errors"
	"github.com/abrezinsky/blockvote/internal/repository"
)

// AccessController holds the administrator identity and gates mutations
type AccessController struct {
	admin common.Address
}

// NewAccessController creates an AccessController for a fixed admin
func NewAccessController(admin common.Address) *AccessController {
	return &AccessController{admin: admin}
}

// LoadAccessController binds the ledger to its administrator. On first start
// the configured admin is persisted; afterwards it must match what is stored.
func LoadAccessController(ctx context.Context, repo repository.FullRepository, configured common.Address) (*AccessController, error) {
	if configured == (common.Address{}) {
		return nil, errors.InvalidInput("admin wallet must be set")
	}

	err := repo.InTx(ctx, func(s repository.Store) error {
		stored, err := s.GetMeta(ctx, repository.MetaAdminWallet)
		if err == repository.ErrNotFound {
			return s.SetMeta(ctx, repository.MetaAdminWallet, configured.Hex())
		}
		if err != nil {
			return err
		}
		if common.HexToAddress(stored) != configured {
			return fmt.Errorf("ledger admin is %s, refusing to start with %s", stored, configured.Hex())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return NewAccessController(configured), nil
}

// Admin returns the administrator identity
func (a *AccessController) Admin() common.Address {
	return a.admin
}

// IsAdmin reports whether caller is the administrator
func (a *AccessController) IsAdmin(caller common.Address) bool {
	return caller != (common.Address{}) && caller == a.admin
}

// RequireAdmin fails with Unauthorized unless caller is the administrator
func (a *AccessController) RequireAdmin(caller common.Address) error {
	if !a.IsAdmin(caller) {
		return errors.Unauthorized("caller is not the administrator")
	}
	return nil
}
