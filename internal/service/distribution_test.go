package service

import (
	"context"
	"testing"
	"time"

	"tournament_market/internal/domain"
)

func confirm(t *testing.T, e *testEnv, id, position string, player int) *domain.Winner {
	t.Helper()
	ctx := context.Background()
	a := Assignment{Position: position, UID: "g-" + playerID(player), IGN: "ign-" + playerID(player)}
	preview, err := e.tourney.AssignWinner(ctx, id, "host", a)
	if err != nil {
		t.Fatalf("assign %s: %v", position, err)
	}
	a.Amount = preview.Amount
	w, err := e.tourney.ConfirmDistribution(ctx, id, "host", a)
	if err != nil {
		t.Fatalf("confirm %s: %v", position, err)
	}
	return w
}

func TestFullDistributionLeavesNoHostEarnings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tr := e.paidSolo(t, 10, 100, map[string]int{"first": 70, "second": 20, "third": 10})
	e.joinPlayers(t, tr, 10)

	got, _ := e.tourney.Get(ctx, tr.ID)
	if got.FilledSpots != 10 || got.CurrentPrizePool != 1000 {
		t.Fatalf("expected 10 spots and pool 1000, got %d and %d", got.FilledSpots, got.CurrentPrizePool)
	}
	e.playAndEnd(t, tr.ID)

	want := map[string]int64{"first": 700, "second": 200, "third": 100}
	for i, pos := range []string{"first", "second", "third"} {
		w := confirm(t, e, tr.ID, pos, i)
		if w.PrizeAmount != want[pos] {
			t.Fatalf("%s: expected %d, got %d", pos, want[pos], w.PrizeAmount)
		}
		if b := e.balance(t, playerID(i), domain.WalletEarnings); b != want[pos] {
			t.Fatalf("%s: winner earnings %d", pos, b)
		}
	}

	got, _ = e.tourney.Get(ctx, tr.ID)
	if got.CurrentPrizePool != 0 || got.TotalPrizesDistributed != 1000 {
		t.Fatalf("unexpected pool state %+v", got)
	}
	_, err := e.tourney.CollectHostEarnings(ctx, tr.ID, "host")
	wantKind(t, err, domain.KindValidation)
	if err.Error() != "no host earnings" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	assertLedgerConsistent(t, e, playerID(0), playerID(1), playerID(2), "host")
}

func TestPartialDistributionPaysHostRemainder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tr := e.paidSolo(t, 10, 100, map[string]int{"first": 50, "second": 20, "third": 10})
	e.joinPlayers(t, tr, 10)
	e.playAndEnd(t, tr.ID)

	confirm(t, e, tr.ID, "first", 0)
	_, err := e.tourney.CollectHostEarnings(ctx, tr.ID, "host")
	wantKind(t, err, domain.KindState)

	confirm(t, e, tr.ID, "second", 1)
	confirm(t, e, tr.ID, "third", 2)

	got, _ := e.tourney.Get(ctx, tr.ID)
	if got.CurrentPrizePool != 200 {
		t.Fatalf("expected 200 left for the host, got %d", got.CurrentPrizePool)
	}
	if share := HostShare(got); share != 200 {
		t.Fatalf("calculator host share %d", share)
	}

	_, err = e.tourney.CollectHostEarnings(ctx, tr.ID, "player-0")
	wantKind(t, err, domain.KindAuthorization)

	amount, err := e.tourney.CollectHostEarnings(ctx, tr.ID, "host")
	if err != nil {
		t.Fatal(err)
	}
	if amount != 200 || e.balance(t, "host", domain.WalletEarnings) != 200 {
		t.Fatalf("host credited %d", amount)
	}
	got, _ = e.tourney.Get(ctx, tr.ID)
	if got.CurrentPrizePool != 0 || !got.HostEarningsDistributed || got.HostEarningsAmount != 200 {
		t.Fatalf("unexpected tournament %+v", got)
	}
	if got.TotalPrizesDistributed+got.HostEarningsAmount != 1000 {
		t.Fatalf("payouts exceed collected pool")
	}

	_, err = e.tourney.CollectHostEarnings(ctx, tr.ID, "host")
	wantKind(t, err, domain.KindState)
	assertLedgerConsistent(t, e, "host")
}

func TestPrizeAmountIsStableAcrossPayouts(t *testing.T) {
	tr := &domain.Tournament{
		EntryFee:          7,
		PrizeDistribution: map[string]int{"first": 33, "second": 33},
		CurrentPrizePool:  101,
	}
	first, _ := PrizeAmount(tr, "first")
	again, _ := PrizeAmount(tr, "first")
	if first != 33 || first != again {
		t.Fatalf("expected floor(101*33/100)=33 twice, got %d and %d", first, again)
	}
	tr.CurrentPrizePool -= first
	tr.TotalPrizesDistributed += first
	second, _ := PrizeAmount(tr, "second")
	if second != 33 {
		t.Fatalf("payout of one position changed another: %d", second)
	}
	if HostShare(tr) != 35 {
		t.Fatalf("expected host share 35, got %d", HostShare(tr))
	}
	if _, err := PrizeAmount(tr, "fourth"); err == nil {
		t.Fatal("expected error for unknown position")
	}
}

func TestDistributionGuards(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tr := e.paidSolo(t, 4, 100, map[string]int{"first": 60, "second": 30})
	e.joinPlayers(t, tr, 3)

	a := Assignment{Position: "first", UID: "g-player-0", IGN: "ign-player-0", Amount: 180}
	_, err := e.tourney.AssignWinner(ctx, tr.ID, "host", a)
	wantKind(t, err, domain.KindState)

	e.playAndEnd(t, tr.ID)

	_, err = e.tourney.AssignWinner(ctx, tr.ID, "player-1", a)
	wantKind(t, err, domain.KindAuthorization)

	_, err = e.tourney.AssignWinner(ctx, tr.ID, "host", Assignment{Position: "first", UID: "g-player-0", IGN: "wrong"})
	wantKind(t, err, domain.KindNotFound)

	_, err = e.tourney.AssignWinner(ctx, tr.ID, "host", Assignment{Position: "tenth", UID: "g-player-0", IGN: "ign-player-0"})
	wantKind(t, err, domain.KindValidation)

	stale := a
	stale.Amount = 150
	_, err = e.tourney.ConfirmDistribution(ctx, tr.ID, "host", stale)
	wantKind(t, err, domain.KindStaleCalculation)

	within := a
	within.Amount = 179
	if _, err := e.tourney.ConfirmDistribution(ctx, tr.ID, "host", within); err != nil {
		t.Fatalf("one credit of drift must be tolerated: %v", err)
	}

	_, err = e.tourney.ConfirmDistribution(ctx, tr.ID, "host", a)
	wantKind(t, err, domain.KindState)

	dup := Assignment{Position: "second", UID: "g-player-0", IGN: "ign-player-0", Amount: 90}
	_, err = e.tourney.ConfirmDistribution(ctx, tr.ID, "host", dup)
	wantKind(t, err, domain.KindDuplicateWinner)

	got, _ := e.tourney.Get(ctx, tr.ID)
	if got.Distributed("second") || got.CurrentPrizePool != 120 {
		t.Fatalf("rejected confirmations must not write: %+v", got)
	}
}

func TestCheckWinnerSet(t *testing.T) {
	tr := &domain.Tournament{
		EntryFee:          1,
		PrizeDistribution: map[string]int{"first": 50, "second": 30, "third": 20},
		Winners: map[string]*domain.Winner{
			"first": {UID: "u1", IGN: "One", PrizeDistributed: true},
		},
	}
	tests := []struct {
		name    string
		pending []Assignment
		dup     bool
	}{
		{name: "distinct", pending: []Assignment{{Position: "second", UID: "u2", IGN: "Two"}, {Position: "third", UID: "u3", IGN: "Three"}}},
		{name: "same position again", pending: []Assignment{{Position: "first", UID: "u1", IGN: "One"}}},
		{name: "saved winner reused", pending: []Assignment{{Position: "second", UID: "u1", IGN: "One"}}, dup: true},
		{name: "pending pair reused", pending: []Assignment{{Position: "second", UID: "u2", IGN: "Two"}, {Position: "third", UID: "u2", IGN: "Two"}}, dup: true},
		{name: "same uid other ign", pending: []Assignment{{Position: "second", UID: "u1", IGN: "Alt"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWinnerSet(tr, tt.pending)
			if tt.dup {
				wantKind(t, err, domain.KindDuplicateWinner)
			} else if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestManualPrizeDistribution(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t, "host", domain.WalletHostCredits, 400)
	tr, err := e.tourney.Create(ctx, "host", CreateParams{
		Name: "Free Roll", Mode: domain.ModeSolo, MaxPlayers: 4,
		ManualPrizePool: map[string]int64{"first": 300, "second": 100}, ScheduledStart: baseTime.Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	e.joinPlayers(t, tr, 2)
	e.playAndEnd(t, tr.ID)

	if w := confirm(t, e, tr.ID, "first", 0); w.PrizeAmount != 300 {
		t.Fatalf("expected fixed 300, got %d", w.PrizeAmount)
	}
	confirm(t, e, tr.ID, "second", 1)
	got, _ := e.tourney.Get(ctx, tr.ID)
	if got.CurrentPrizePool != 0 {
		t.Fatalf("manual pool not drained: %d", got.CurrentPrizePool)
	}
	_, err = e.tourney.CollectHostEarnings(ctx, tr.ID, "host")
	wantKind(t, err, domain.KindValidation)
}
