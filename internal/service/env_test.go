package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tournament_market/internal/domain"
	"tournament_market/internal/notify"
	"tournament_market/internal/store"
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

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	store   *store.Memory
	clock   *fakeClock
	events  *notify.Recorder
	ledger  *Ledger
	tourney *TournamentService
	sweeper *Sweeper
}

var baseTime = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemory()
	clock := &fakeClock{now: baseTime}
	events := notify.NewRecorder(1024)
	ledger := NewLedger(st, events, clock.Now)
	return &testEnv{
		store:   st,
		clock:   clock,
		events:  events,
		ledger:  ledger,
		tourney: NewTournamentService(st, ledger, events, clock.Now),
		sweeper: NewSweeper(st, events, clock.Now),
	}
}

func (e *testEnv) fund(t *testing.T, userID string, wallet domain.WalletType, amount int64) {
	t.Helper()
	if _, err := e.ledger.Credit(context.Background(), userID, wallet, amount, domain.TxPurchase, nil); err != nil {
		t.Fatalf("fund %s: %v", userID, err)
	}
}

func (e *testEnv) balance(t *testing.T, userID string, wallet domain.WalletType) int64 {
	t.Helper()
	w, err := e.store.Wallet(context.Background(), userID)
	if err != nil {
		t.Fatalf("wallet %s: %v", userID, err)
	}
	return w.Balance(wallet)
}

// paidSolo creates a solo tournament starting in an hour.
func (e *testEnv) paidSolo(t *testing.T, maxPlayers int, fee int64, dist map[string]int) *domain.Tournament {
	t.Helper()
	tr, err := e.tourney.Create(context.Background(), "host", CreateParams{
		Name:              "Friday Cup",
		Mode:              domain.ModeSolo,
		MaxPlayers:        maxPlayers,
		EntryFee:          fee,
		PrizeDistribution: dist,
		ScheduledStart:    baseTime.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return tr
}

func playerID(i int) string { return fmt.Sprintf("player-%d", i) }

// joinPlayers funds and joins n distinct solo players.
func (e *testEnv) joinPlayers(t *testing.T, tr *domain.Tournament, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		uid := playerID(i)
		e.fund(t, uid, domain.WalletTournamentCredits, tr.EntryFee)
		_, err := e.tourney.Join(context.Background(), JoinRequest{
			TournamentID: tr.ID, UserID: uid, CustomUID: "g-" + uid, IGN: "ign-" + uid,
		})
		if err != nil {
			t.Fatalf("join %s: %v", uid, err)
		}
	}
}

// playAndEnd starts and ends the tournament as the host.
func (e *testEnv) playAndEnd(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	e.clock.Set(baseTime.Add(time.Hour))
	if _, err := e.tourney.Start(ctx, id, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.tourney.End(ctx, id, "host"); err != nil {
		t.Fatalf("end: %v", err)
	}
}

func wantKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := domain.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %v (%s)", kind, err, got)
	}
	if !errors.Is(err, &domain.Error{Kind: kind}) {
		t.Fatalf("errors.Is does not match kind %s", kind)
	}
}

func assertLedgerConsistent(t *testing.T, e *testEnv, userIDs ...string) {
	t.Helper()
	for _, uid := range userIDs {
		mismatches, err := e.ledger.VerifyLedger(context.Background(), uid)
		if err != nil {
			t.Fatalf("verify %s: %v", uid, err)
		}
		if len(mismatches) > 0 {
			t.Fatalf("ledger of %s inconsistent: %+v", uid, mismatches)
		}
	}
}

// conflictingStore runs every unit of work and then reports that it lost the race.
type conflictingStore struct {
	*store.Memory
	calls int
}

func (s *conflictingStore) RunTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.calls++
	err := s.Memory.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return errAbort
	})
	if errors.Is(err, errAbort) {
		return store.ErrConflict
	}
	return err
}

var errAbort = errors.New("abort")
