package testutil

import (
	"crypto/ecdsa"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/abrezinsky/blockvote/internal/repository"
)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// FakeClock is a settable clock for deterministic status tests
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a clock frozen at now
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now returns the clock's current time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Wallet is a throwaway key pair for signing login challenges in tests
type Wallet struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// NewWallet generates a fresh secp256k1 key pair
func NewWallet(t *testing.T) Wallet {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return Wallet{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
}

// SignText signs msg the way a browser wallet's personal_sign does and
// returns the 0x-prefixed signature with V as 27/28
func (w Wallet) SignText(t *testing.T, msg string) string {
	t.Helper()

	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), w.Key)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}
