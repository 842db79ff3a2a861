package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abrezinsky/blockvote/internal/errors"
	"github.com/abrezinsky/blockvote/internal/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestAuth() (*Auth, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return New(Options{Now: clock.Now}), clock
}

// login runs the full challenge/sign/login round trip
func login(t *testing.T, a *Auth, w testutil.Wallet) string {
	t.Helper()

	msg, _ := a.Challenge(w.Address)
	token, err := a.Login(w.Address, w.SignText(t, msg))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return token
}

func TestNew_Defaults(t *testing.T) {
	a := New(Options{})

	if a.SessionExpiry() != DefaultSessionExpiry {
		t.Errorf("expected default session expiry, got %v", a.SessionExpiry())
	}
	if a.opts.ChallengeExpiry != DefaultChallengeExpiry {
		t.Errorf("expected default challenge expiry, got %v", a.opts.ChallengeExpiry)
	}
	if a.sessions == nil || a.challenges == nil {
		t.Error("expected maps to be initialized")
	}
}

func TestChallenge_NamesWalletAndIsUnique(t *testing.T) {
	a, clock := newTestAuth()
	w := testutil.NewWallet(t)

	first, expires := a.Challenge(w.Address)
	if !strings.Contains(first, w.Address.Hex()) {
		t.Errorf("expected challenge to name the wallet, got %q", first)
	}
	if !expires.Equal(clock.Now().Add(DefaultChallengeExpiry)) {
		t.Errorf("unexpected expiry %v", expires)
	}

	second, _ := a.Challenge(w.Address)
	if first == second {
		t.Error("expected a fresh nonce per challenge")
	}
}

func TestLogin_ValidSignature(t *testing.T) {
	a, _ := newTestAuth()
	w := testutil.NewWallet(t)

	token := login(t, a, w)
	if len(token) != 64 { // 32 bytes = 64 hex chars
		t.Errorf("expected 64-char token, got %d chars", len(token))
	}

	wallet, ok := a.ValidateSession(token)
	if !ok {
		t.Fatal("expected session to be valid")
	}
	if wallet != w.Address {
		t.Errorf("expected session for %s, got %s", w.Address.Hex(), wallet.Hex())
	}
}

func TestLogin_Rejections(t *testing.T) {
	a, clock := newTestAuth()
	w := testutil.NewWallet(t)
	other := testutil.NewWallet(t)

	t.Run("no challenge", func(t *testing.T) {
		_, err := a.Login(w.Address, w.SignText(t, "anything"))
		if !errors.Is(err, errors.ErrUnauthorized) {
			t.Errorf("expected Unauthorized, got %v", err)
		}
	})

	t.Run("signed by another wallet", func(t *testing.T) {
		msg, _ := a.Challenge(w.Address)
		_, err := a.Login(w.Address, other.SignText(t, msg))
		if !errors.Is(err, errors.ErrUnauthorized) {
			t.Errorf("expected Unauthorized, got %v", err)
		}
	})

	t.Run("wrong message", func(t *testing.T) {
		a.Challenge(w.Address)
		_, err := a.Login(w.Address, w.SignText(t, "not the challenge"))
		if !errors.Is(err, errors.ErrUnauthorized) {
			t.Errorf("expected Unauthorized, got %v", err)
		}
	})

	t.Run("malformed signature", func(t *testing.T) {
		a.Challenge(w.Address)
		_, err := a.Login(w.Address, "0x1234")
		if !errors.Is(err, errors.ErrUnauthorized) {
			t.Errorf("expected Unauthorized, got %v", err)
		}
	})

	t.Run("expired challenge", func(t *testing.T) {
		msg, _ := a.Challenge(w.Address)
		clock.Advance(DefaultChallengeExpiry + time.Second)
		_, err := a.Login(w.Address, w.SignText(t, msg))
		if !errors.Is(err, errors.ErrUnauthorized) {
			t.Errorf("expected Unauthorized, got %v", err)
		}
	})
}

func TestLogin_ChallengeIsSingleUse(t *testing.T) {
	a, _ := newTestAuth()
	w := testutil.NewWallet(t)

	msg, _ := a.Challenge(w.Address)
	sig := w.SignText(t, msg)
	if _, err := a.Login(w.Address, sig); err != nil {
		t.Fatalf("first login failed: %v", err)
	}
	if _, err := a.Login(w.Address, sig); !errors.Is(err, errors.ErrUnauthorized) {
		t.Errorf("expected replayed signature to be rejected, got %v", err)
	}
}

func TestRecoverSigner_AcceptsBothRecoveryIDForms(t *testing.T) {
	w := testutil.NewWallet(t)
	sig := w.SignText(t, "hello")

	got, err := RecoverSigner("hello", sig)
	if err != nil {
		t.Fatalf("RecoverSigner failed: %v", err)
	}
	if got != w.Address {
		t.Errorf("expected %s, got %s", w.Address.Hex(), got.Hex())
	}

	// Same signature with V as 0/1
	raw := []byte(sig)
	last := sig[len(sig)-2:]
	lowered := map[string]string{"1b": "00", "1c": "01"}[last]
	if lowered == "" {
		t.Fatalf("unexpected recovery byte %q", last)
	}
	copy(raw[len(raw)-2:], lowered)

	got, err = RecoverSigner("hello", string(raw))
	if err != nil {
		t.Fatalf("RecoverSigner with 0/1 V failed: %v", err)
	}
	if got != w.Address {
		t.Errorf("expected %s, got %s", w.Address.Hex(), got.Hex())
	}
}

func TestRecoverSigner_Errors(t *testing.T) {
	tests := []struct {
		name string
		sig  string
	}{
		{"not hex", "signature"},
		{"too short", "0xdeadbeef"},
		{"missing prefix", strings.Repeat("ab", 65)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RecoverSigner("msg", tt.sig); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLogout_InvalidatesSession(t *testing.T) {
	a, _ := newTestAuth()
	token := login(t, a, testutil.NewWallet(t))

	a.Logout(token)

	if _, ok := a.ValidateSession(token); ok {
		t.Error("expected session to be invalid after logout")
	}
}

func TestValidateSession_InvalidToken(t *testing.T) {
	a, _ := newTestAuth()

	if _, ok := a.ValidateSession("nonexistent-token"); ok {
		t.Error("expected invalid token to fail validation")
	}
}

func TestValidateSession_ExpiredSession(t *testing.T) {
	a, clock := newTestAuth()
	token := login(t, a, testutil.NewWallet(t))

	clock.Advance(DefaultSessionExpiry + time.Second)

	if _, ok := a.ValidateSession(token); ok {
		t.Error("expected expired session to fail validation")
	}

	a.mu.RLock()
	_, exists := a.sessions[token]
	a.mu.RUnlock()
	if exists {
		t.Error("expected expired session to be cleaned up")
	}
}

func TestCallerFromRequest(t *testing.T) {
	a, _ := newTestAuth()
	w := testutil.NewWallet(t)
	token := login(t, a, w)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		wantOK bool
	}{
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: token}) }, true},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, true},
		{"no credentials", func(r *http.Request) {}, false},
		{"stale cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: "stale"}) }, false},
		{"untrusted wallet header", func(r *http.Request) { r.Header.Set(WalletHeader, w.Address.Hex()) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)

			wallet, ok := a.CallerFromRequest(req)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && wallet != w.Address {
				t.Errorf("expected %s, got %s", w.Address.Hex(), wallet.Hex())
			}
		})
	}
}

func TestCallerFromRequest_TrustedWalletHeader(t *testing.T) {
	a := New(Options{TrustWalletHeader: true})
	want := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(WalletHeader, want.Hex())
	if got, ok := a.CallerFromRequest(req); !ok || got != want {
		t.Errorf("expected header wallet %s, got %s (ok=%v)", want.Hex(), got.Hex(), ok)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(WalletHeader, "not-an-address")
	if _, ok := a.CallerFromRequest(req); ok {
		t.Error("expected malformed header to be ignored")
	}
}

func TestIdentify_AttachesCaller(t *testing.T) {
	a, _ := newTestAuth()
	w := testutil.NewWallet(t)
	token := login(t, a, w)

	var got common.Address
	var found bool
	handler := a.Identify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = CallerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !found || got != w.Address {
		t.Errorf("expected caller %s in context, got %s (found=%v)", w.Address.Hex(), got.Hex(), found)
	}

	found = true
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if found {
		t.Error("expected anonymous request to carry no caller")
	}
}

func TestRequireCaller(t *testing.T) {
	called := false
	handler := RequireCaller(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/votes", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	if !strings.Contains(rr.Body.String(), `"code":"UNAUTHORIZED"`) {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
	if called {
		t.Error("expected handler not to be called")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/votes", nil)
	req = req.WithContext(WithCaller(req.Context(), common.HexToAddress("0x01")))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if !called {
		t.Error("expected handler to be called with a caller")
	}
}

type adminSet map[common.Address]bool

func (s adminSet) IsAdmin(caller common.Address) bool { return s[caller] }

func TestRequireAdmin(t *testing.T) {
	admin := common.HexToAddress("0x0a")
	voter := common.HexToAddress("0x0b")
	handler := RequireAdmin(adminSet{admin: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		caller *common.Address
		want   int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"voter", &voter, http.StatusForbidden},
		{"admin", &admin, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/elections", nil)
			if tt.caller != nil {
				req = req.WithContext(WithCaller(req.Context(), *tt.caller))
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestSetSessionCookie(t *testing.T) {
	rr := httptest.NewRecorder()

	SetSessionCookie(rr, "test-token", time.Hour)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}

	cookie := cookies[0]
	if cookie.Name != CookieName {
		t.Errorf("expected cookie name %s, got %s", CookieName, cookie.Name)
	}
	if cookie.Value != "test-token" {
		t.Errorf("expected cookie value test-token, got %s", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("expected HttpOnly to be true")
	}
	if cookie.MaxAge != 3600 {
		t.Errorf("expected MaxAge 3600, got %d", cookie.MaxAge)
	}
}

func TestClearSessionCookie(t *testing.T) {
	rr := httptest.NewRecorder()

	ClearSessionCookie(rr)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge >= 0 {
		t.Errorf("expected negative MaxAge to delete cookie, got %d", cookies[0].MaxAge)
	}
}

func TestConcurrentSessionAccess(t *testing.T) {
	a, _ := newTestAuth()
	w := testutil.NewWallet(t)
	token := login(t, a, w)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			a.ValidateSession(token)
		}()
		go func() {
			defer wg.Done()
			a.Challenge(w.Address)
		}()
	}
	wg.Wait()

	if _, ok := a.ValidateSession(token); !ok {
		t.Error("expected session to survive concurrent access")
	}
}
