package service

import (
	"context"
	"errors"
	"time"

	"tournament_market/internal/domain"
	"tournament_market/internal/metrics"
	"tournament_market/internal/store"

	"github.com/google/uuid"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }

// defaultTxAttempts bounds retries of units of work that lost a write race.
const defaultTxAttempts = 3

func newID() string {
	return uuid.NewString()
}

// runTx runs fn until it commits, fails for a business reason, or loses attempts races in a row.
// fn must not keep state across calls: every attempt starts from a fresh read.
func runTx(ctx context.Context, st store.Store, op string, attempts int, fn func(ctx context.Context, tx store.Tx) error) error {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		err := st.RunTx(ctx, fn)
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		metrics.StoreConflicts.WithLabelValues(op).Inc()
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return domain.Errorf(domain.KindConcurrency, "%s: too many concurrent updates, please retry", op)
}

// loadTournament reads the tournament inside tx, mapping a missing document to a NotFound error.
func loadTournament(ctx context.Context, tx store.Tx, id string) (*domain.Tournament, error) {
	t, err := tx.Tournament(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.Errorf(domain.KindNotFound, "tournament %s not found", id)
	}
	return t, err
}

func requireHost(t *domain.Tournament, actorID string) error {
	if actorID == "" || actorID != t.HostID {
		return domain.Errorf(domain.KindAuthorization, "only the host can manage this tournament")
	}
	return nil
}

func requireStatus(t *domain.Tournament, want domain.Status, action string) error {
	if t.Status != want {
		return domain.Errorf(domain.KindState, "cannot %s a tournament that is %s", action, t.Status)
	}
	return nil
}
