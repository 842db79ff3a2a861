package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abrezinsky/blockvote/internal/auth"
	"github.com/abrezinsky/blockvote/internal/handlers"
	"github.com/abrezinsky/blockvote/internal/logger"
	"github.com/abrezinsky/blockvote/internal/repository"
	"github.com/abrezinsky/blockvote/internal/services"
	"github.com/abrezinsky/blockvote/internal/testutil"
)

var (
	admin    = common.HexToAddress("0xAd00000000000000000000000000000000000001")
	alice    = common.HexToAddress("0xA11CE00000000000000000000000000000000002")
	bob      = common.HexToAddress("0xB0B0000000000000000000000000000000000003")
	baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

type testSetup struct {
	h      *handlers.Handlers
	router http.Handler
	clock  *testutil.FakeClock
}

func newTestSetup(t *testing.T) *testSetup {
	t.Helper()
	return newTestSetupWithRepo(t, testutil.NewTestRepository(t))
}

func newTestSetupWithRepo(t *testing.T, repo repository.FullRepository) *testSetup {
	t.Helper()

	log := logger.NewWithWriter(io.Discard, slog.LevelDebug)
	clock := testutil.NewFakeClock(baseTime)
	access := services.NewAccessController(admin)
	ledger := services.NewLedger(log, repo, clock, access)

	h := handlers.NewForTesting(handlers.Services{
		Elections:  services.NewElectionService(ledger),
		Candidates: services.NewCandidateService(ledger),
		Voters:     services.NewVoterService(ledger),
		Voting:     services.NewVotingService(ledger),
		Audit:      services.NewAuditService(ledger),
		Access:     access,
	}, log)

	return &testSetup{h: h, router: h.Router(), clock: clock}
}

// do sends a JSON request as the given wallet (nil for anonymous)
func (s *testSetup) do(t *testing.T, method, target string, body interface{}, as *common.Address) *httptest.ResponseRecorder {
	t.Helper()

	var buf io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		buf = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		buf = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set(auth.WalletHeader, as.Hex())
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response: %v (body %q)", err, rec.Body.String())
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// expectError checks both the status and the error code of an API error
func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rec, status)
	var apiErr handlers.APIError
	decode(t, rec, &apiErr)
	if apiErr.Code != code {
		t.Errorf("expected code %s, got %s (%s)", code, apiErr.Code, apiErr.Message)
	}
}

// createElection creates an election starting in one hour and lasting one hour
func (s *testSetup) createElection(t *testing.T, title string) int64 {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/admin/elections", map[string]interface{}{
		"title":      title,
		"start_time": baseTime.Add(time.Hour),
		"end_time":   baseTime.Add(2 * time.Hour),
	}, &admin)
	expectStatus(t, rec, http.StatusCreated)
	var resp handlers.IDResponse
	decode(t, rec, &resp)
	return resp.ID
}

func (s *testSetup) addCandidate(t *testing.T, electionID int64, name string) int64 {
	t.Helper()
	rec := s.do(t, http.MethodPost, path("/api/admin/elections/%d/candidates", electionID),
		map[string]string{"name": name}, &admin)
	expectStatus(t, rec, http.StatusCreated)
	var resp handlers.IDResponse
	decode(t, rec, &resp)
	return resp.ID
}

func (s *testSetup) verifiedVoter(t *testing.T, wallet common.Address, matric string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/voters/register",
		map[string]string{"name": "Voter " + matric, "matric_no": matric}, &wallet)
	expectStatus(t, rec, http.StatusCreated)
	rec = s.do(t, http.MethodPost, "/api/admin/voters/"+wallet.Hex()+"/verify", nil, &admin)
	expectStatus(t, rec, http.StatusOK)
}

func path(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
