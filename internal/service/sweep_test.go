package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"tournament_market/internal/domain"
	"tournament_market/internal/metrics"
	"tournament_market/internal/notify"
	"tournament_market/internal/scheduler"
	"tournament_market/internal/store"
)

func TestSweepDeletesExpiredInBatches(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.sweeper.BatchSize = 2

	var ids []string
	for i := 0; i < 3; i++ {
		tr := e.paidSolo(t, 2, 10, map[string]int{"first": 100})
		if _, err := e.tourney.Cancel(ctx, tr.ID, "host"); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, tr.ID)
	}
	keep := e.paidSolo(t, 2, 10, map[string]int{"first": 100})

	if n, _ := e.sweeper.SweepOnce(ctx); n != 0 {
		t.Fatalf("nothing is expired yet, deleted %d", n)
	}

	e.clock.Advance(GraceTTL)
	n1, err := e.sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	n2, _ := e.sweeper.SweepOnce(ctx)
	n3, _ := e.sweeper.SweepOnce(ctx)
	if n1 != 2 || n2 != 1 || n3 != 0 {
		t.Fatalf("expected passes of 2, 1, 0, got %d, %d, %d", n1, n2, n3)
	}
	for _, id := range ids {
		if _, err := e.store.Tournament(ctx, id); err != store.ErrNotFound {
			t.Fatalf("%s should be gone, got %v", id, err)
		}
	}
	if _, err := e.store.Tournament(ctx, keep.ID); err != nil {
		t.Fatalf("active tournament without ttl must survive: %v", err)
	}
}

func TestSweepRemovesTeams(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tr, err := e.tourney.Create(ctx, "host", CreateParams{
		Name: "Duo Night", Mode: domain.ModeDuo, MaxPlayers: 2, EntryFee: 5,
		PrizeDistribution: map[string]int{"first": 100}, ScheduledStart: baseTime.Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	e.fund(t, "lead", domain.WalletTournamentCredits, 5)
	joined, err := e.tourney.Join(ctx, JoinRequest{
		TournamentID: tr.ID, UserID: "lead", CustomUID: "L", IGN: "Lead",
		Members: []domain.TeamMember{{UID: "mate", IGN: "Mate"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	teamID := joined.Participants[0].Team.TeamID

	e.playAndEnd(t, tr.ID)
	e.clock.Advance(GraceTTL + time.Second)
	if n, _ := e.sweeper.SweepOnce(ctx); n != 1 {
		t.Fatalf("expected one deletion, got %d", n)
	}
	err = e.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Team(ctx, teamID)
		return err
	})
	if err != store.ErrNotFound {
		t.Fatalf("team should be deleted with its tournament, got %v", err)
	}
}

func TestBackfillTTL(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tr := e.paidSolo(t, 2, 10, map[string]int{"first": 100})

	n, err := e.sweeper.BackfillTTL(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one backfill, got %d, %v", n, err)
	}
	got, _ := e.store.Tournament(ctx, tr.ID)
	if got.TTL == nil || !got.TTL.Equal(tr.ScheduledStart.Add(DefaultTTL)) {
		t.Fatalf("unexpected ttl %v", got.TTL)
	}
	if n, _ := e.sweeper.BackfillTTL(ctx); n != 0 {
		t.Fatalf("second pass must find nothing, got %d", n)
	}
}

func TestScheduledJobs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sched := scheduler.NewManual()
	if err := e.sweeper.Register(sched, time.Minute, 5*time.Minute); err != nil {
		t.Fatal(err)
	}
	if got := fmt.Sprint(sched.Jobs()); got != "[expiry_sweep ttl_backfill]" {
		t.Fatalf("unexpected jobs %s", got)
	}

	tr := e.paidSolo(t, 2, 10, map[string]int{"first": 100})
	sched.Tick(ctx, JobTTLBackfill)
	e.clock.Set(tr.ScheduledStart.Add(DefaultTTL))
	sched.Tick(ctx, JobExpirySweep)
	if _, err := e.store.Tournament(ctx, tr.ID); err != store.ErrNotFound {
		t.Fatalf("expected tournament swept, got %v", err)
	}
}

func TestAggressiveCleanupStopsItself(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.sweeper.BatchSize = 1
	sched := scheduler.NewManual()

	for i := 0; i < 2; i++ {
		tr := e.paidSolo(t, 2, 10, map[string]int{"first": 100})
		if _, err := e.tourney.Cancel(ctx, tr.ID, "host"); err != nil {
			t.Fatal(err)
		}
	}
	e.clock.Advance(GraceTTL)

	if err := e.sweeper.StartAggressive(sched); err != nil {
		t.Fatal(err)
	}
	if err := e.sweeper.StartAggressive(sched); err != nil {
		t.Fatal(err)
	}
	ticks := 0
	for sched.Tick(ctx, JobAggressiveCleanup) {
		ticks++
		if ticks > 10 {
			t.Fatal("cleanup loop did not stop")
		}
	}
	if ticks != 3 {
		t.Fatalf("expected 2 deleting passes and 1 empty pass, got %d", ticks)
	}
	if e.sweeper.AggressiveRunning() {
		t.Fatal("loop still marked running")
	}
}

func TestSweepReportsUndistributedPool(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tr := e.paidSolo(t, 2, 100, map[string]int{"first": 60, "second": 40})
	e.joinPlayers(t, tr, 2)
	e.playAndEnd(t, tr.ID)
	e.events.Drain()

	before := counterValue(t, metrics.SweepStrandedCredits)
	e.clock.Advance(GraceTTL)
	if n, err := e.sweeper.SweepOnce(ctx); err != nil || n != 1 {
		t.Fatalf("expected one deletion, got %d, %v", n, err)
	}

	if got := counterValue(t, metrics.SweepStrandedCredits) - before; got != 200 {
		t.Fatalf("expected 200 stranded credits reported, got %v", got)
	}
	for _, u := range []string{"host", playerID(0), playerID(1)} {
		if b := e.balance(t, u, domain.WalletEarnings); b != 0 {
			t.Fatalf("expiry must not move credits, %s earned %d", u, b)
		}
	}
	var expired *notify.Event
	for _, ev := range e.events.Drain() {
		if ev.Kind == notify.KindTournamentExpired {
			ev := ev
			expired = &ev
		}
	}
	if expired == nil || expired.Payload["stranded_pool"] != int64(200) {
		t.Fatalf("expected expiry event carrying the stranded pool, got %+v", expired)
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}
