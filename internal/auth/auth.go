package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/abrezinsky/blockvote/internal/errors"
)

const (
	CookieName             = "blockvote_session"
	WalletHeader           = "X-Wallet-Address"
	DefaultSessionExpiry   = 24 * time.Hour
	DefaultChallengeExpiry = 5 * time.Minute
)

// Options configures an Auth
type Options struct {
	SessionExpiry   time.Duration
	ChallengeExpiry time.Duration
	// TrustWalletHeader accepts X-Wallet-Address as the caller identity.
	// Only enable behind a proxy that authenticates wallets itself.
	TrustWalletHeader bool
	// Now overrides the clock, for tests
	Now func() time.Time
}

type session struct {
	wallet  common.Address
	expires time.Time
}

type challenge struct {
	message string
	expires time.Time
}

// Auth turns wallet signatures into sessions and resolves the caller of each request
type Auth struct {
	opts       Options
	sessions   map[string]session
	challenges map[common.Address]challenge
	mu         sync.RWMutex
}

// New creates a new Auth instance
func New(opts Options) *Auth {
	if opts.SessionExpiry <= 0 {
		opts.SessionExpiry = DefaultSessionExpiry
	}
	if opts.ChallengeExpiry <= 0 {
		opts.ChallengeExpiry = DefaultChallengeExpiry
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Auth{
		opts:       opts,
		sessions:   make(map[string]session),
		challenges: make(map[common.Address]challenge),
	}
}

// SessionExpiry returns how long a login lasts
func (a *Auth) SessionExpiry() time.Duration {
	return a.opts.SessionExpiry
}

// Challenge issues a one-time message the wallet must sign to log in.
// A new challenge replaces any outstanding one for the same wallet.
func (a *Auth) Challenge(wallet common.Address) (string, time.Time) {
	now := a.opts.Now()
	expires := now.Add(a.opts.ChallengeExpiry)
	message := fmt.Sprintf("Sign in to blockvote\nWallet: %s\nNonce: %s\nIssued: %s",
		wallet.Hex(), generateToken()[:32], now.UTC().Format(time.RFC3339))

	a.mu.Lock()
	a.challenges[wallet] = challenge{message: message, expires: expires}
	a.mu.Unlock()

	return message, expires
}

// Login checks a personal_sign signature over the wallet's outstanding
// challenge and returns a session token. The challenge is consumed either way.
func (a *Auth) Login(wallet common.Address, signature string) (string, error) {
	a.mu.Lock()
	ch, ok := a.challenges[wallet]
	delete(a.challenges, wallet)
	a.mu.Unlock()

	if !ok {
		return "", errors.Unauthorized("no login challenge for this wallet")
	}
	if a.opts.Now().After(ch.expires) {
		return "", errors.Unauthorized("login challenge expired")
	}

	signer, err := RecoverSigner(ch.message, signature)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrUnauthorized, "invalid signature")
	}
	if signer != wallet {
		return "", errors.Unauthorized("signature does not match wallet")
	}

	token := generateToken()
	a.mu.Lock()
	a.sessions[token] = session{wallet: wallet, expires: a.opts.Now().Add(a.opts.SessionExpiry)}
	a.mu.Unlock()

	return token, nil
}

// RecoverSigner returns the address that produced an EIP-191 personal_sign
// signature over message
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: expected %d bytes, got %d", crypto.SignatureLength, len(sig))
	}

	// Wallets return V as 27/28; recovery wants 0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Logout invalidates a session token
func (a *Auth) Logout(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}

// ValidateSession returns the wallet a session token belongs to
func (a *Auth) ValidateSession(token string) (common.Address, bool) {
	a.mu.RLock()
	s, exists := a.sessions[token]
	a.mu.RUnlock()

	if !exists {
		return common.Address{}, false
	}

	if a.opts.Now().After(s.expires) {
		a.mu.Lock()
		delete(a.sessions, token)
		a.mu.Unlock()
		return common.Address{}, false
	}

	return s.wallet, true
}

// TokenFromRequest extracts the session token from the cookie or bearer header
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// CallerFromRequest resolves the authenticated wallet of a request
func (a *Auth) CallerFromRequest(r *http.Request) (common.Address, bool) {
	if token := TokenFromRequest(r); token != "" {
		if wallet, ok := a.ValidateSession(token); ok {
			return wallet, true
		}
	}
	if a.opts.TrustWalletHeader {
		if h := r.Header.Get(WalletHeader); common.IsHexAddress(h) {
			return common.HexToAddress(h), true
		}
	}
	return common.Address{}, false
}

type contextKey struct{}

// WithCaller returns a context carrying the caller's wallet
func WithCaller(ctx context.Context, wallet common.Address) context.Context {
	return context.WithValue(ctx, contextKey{}, wallet)
}

// CallerFromContext returns the wallet stored by Identify
func CallerFromContext(ctx context.Context) (common.Address, bool) {
	wallet, ok := ctx.Value(contextKey{}).(common.Address)
	return wallet, ok
}

// Identify middleware attaches the caller, if any, to the request context
func (a *Auth) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wallet, ok := a.CallerFromRequest(r); ok {
			r = r.WithContext(WithCaller(r.Context(), wallet))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCaller middleware for API endpoints that act as the caller (returns 401)
func RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CallerFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized - please sign in with your wallet")
	})
}

// AdminChecker answers whether a wallet is the administrator
type AdminChecker interface {
	IsAdmin(caller common.Address) bool
}

// RequireAdmin middleware rejects anonymous callers with 401 and other wallets with 403
func RequireAdmin(checker AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wallet, ok := CallerFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized - please sign in with your wallet")
				return
			}
			if !checker.IsAdmin(wallet) {
				writeJSONError(w, http.StatusForbidden, "FORBIDDEN", "Administrator access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"code":%q,"error":%q}`, code, msg)
}

// SetSessionCookie sets the session cookie on the response
func SetSessionCookie(w http.ResponseWriter, token string, expiry time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(expiry.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// generateToken creates a random session token
func generateToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
