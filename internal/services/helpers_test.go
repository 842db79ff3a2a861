package services_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abrezinsky/blockvote/internal/errors"
	"github.com/abrezinsky/blockvote/internal/logger"
	"github.com/abrezinsky/blockvote/internal/models"
	"github.com/abrezinsky/blockvote/internal/repository"
	"github.com/abrezinsky/blockvote/internal/services"
	"github.com/abrezinsky/blockvote/internal/testutil"
)

var (
	admin    = common.HexToAddress("0xAD00000000000000000000000000000000000001")
	alice    = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	bob      = common.HexToAddress("0xB0B0000000000000000000000000000000000002")
	stranger = common.HexToAddress("0x5750000000000000000000000000000000000003")
	baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

// recordingBroadcaster captures published events
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingBroadcaster) Publish(evt models.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recordingBroadcaster) Types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]models.EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}

func (r *recordingBroadcaster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// fixture bundles a ledger and every service over one in-memory store
type fixture struct {
	repo       *repository.Repository
	clock      *testutil.FakeClock
	ledger     *services.Ledger
	pub        *recordingBroadcaster
	elections  *services.ElectionService
	candidates *services.CandidateService
	voters     *services.VoterService
	voting     *services.VotingService
	audit      *services.AuditService
}

func quietLogger() logger.Logger {
	return logger.NewWithWriter(io.Discard, slog.LevelDebug)
}

// newFixture creates services over a fresh store with the clock at baseTime
func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	f := newFixtureWithRepo(t, repo)
	f.repo = repo
	return f
}

// newFixtureWithRepo creates services over repo, which may be a mock wrapper
func newFixtureWithRepo(t *testing.T, repo repository.FullRepository) *fixture {
	t.Helper()
	clock := testutil.NewFakeClock(baseTime)
	access, err := services.LoadAccessController(context.Background(), repo, admin)
	if err != nil {
		t.Fatalf("LoadAccessController failed: %v", err)
	}

	ledger := services.NewLedger(quietLogger(), repo, clock, access)
	pub := &recordingBroadcaster{}
	ledger.SetBroadcaster(pub)

	return &fixture{
		clock:      clock,
		ledger:     ledger,
		pub:        pub,
		elections:  services.NewElectionService(ledger),
		candidates: services.NewCandidateService(ledger),
		voters:     services.NewVoterService(ledger),
		voting:     services.NewVotingService(ledger),
		audit:      services.NewAuditService(ledger),
	}
}

// pendingElection creates an election opening in one hour and closing in two
func (f *fixture) pendingElection(t *testing.T, title string) int64 {
	t.Helper()
	now := f.clock.Now()
	id, err := f.elections.CreateElection(context.Background(), admin, services.Election{
		Title:     title,
		StartTime: now.Add(time.Hour),
		EndTime:   now.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateElection failed: %v", err)
	}
	return id
}

func (f *fixture) addCandidate(t *testing.T, electionID int64, name string) int64 {
	t.Helper()
	id, err := f.candidates.AddCandidate(context.Background(), admin, electionID, name)
	if err != nil {
		t.Fatalf("AddCandidate failed: %v", err)
	}
	return id
}

func (f *fixture) register(t *testing.T, wallet common.Address, matric string) {
	t.Helper()
	_, err := f.voters.RegisterVoter(context.Background(), wallet, services.Registration{
		Wallet: wallet, Name: "Voter " + matric, MatricNo: matric,
	})
	if err != nil {
		t.Fatalf("RegisterVoter failed: %v", err)
	}
}

func (f *fixture) verifiedVoter(t *testing.T, wallet common.Address, matric string) {
	t.Helper()
	f.register(t, wallet, matric)
	if _, err := f.voters.VerifyVoter(context.Background(), admin, wallet); err != nil {
		t.Fatalf("VerifyVoter failed: %v", err)
	}
}

// openElection creates an election with candidates and advances the clock into its window
func (f *fixture) openElection(t *testing.T, names ...string) (int64, []int64) {
	t.Helper()
	eid := f.pendingElection(t, "Open")
	ids := make([]int64, 0, len(names))
	for _, n := range names {
		ids = append(ids, f.addCandidate(t, eid, n))
	}
	f.clock.Advance(90 * time.Minute)
	return eid, ids
}

// assertKind fails unless err carries the expected kind
func assertKind(t *testing.T, err error, want errors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := errors.KindOf(err); got != want {
		t.Fatalf("expected %s error, got %s (%v)", want, got, err)
	}
}

// assertTallyMatchesTurnout checks that every election's tallies sum to the
// number of voters who voted in it
func assertTallyMatchesTurnout(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()

	elections, err := f.elections.ListElections(ctx)
	if err != nil {
		t.Fatalf("ListElections failed: %v", err)
	}
	voters, err := f.voters.ListVoters(ctx)
	if err != nil {
		t.Fatalf("ListVoters failed: %v", err)
	}

	for _, e := range elections {
		list, err := f.candidates.GetCandidates(ctx, e.ID)
		if err != nil {
			t.Fatalf("GetCandidates failed: %v", err)
		}
		var sum int64
		for _, c := range list.Candidates {
			sum += c.VoteCount
		}
		var voted int64
		for _, v := range voters {
			if v.HasVotedIn(e.ID) {
				voted++
			}
		}
		if sum != voted {
			t.Errorf("election %d: tallies sum to %d but %d voters voted", e.ID, sum, voted)
		}
	}
}
