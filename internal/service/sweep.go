package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"tournament_market/internal/domain"
	"tournament_market/internal/logger"
	"tournament_market/internal/metrics"
	"tournament_market/internal/notify"
	"tournament_market/internal/scheduler"
	"tournament_market/internal/store"
)

// Job names registered on the scheduler.
const (
	JobExpirySweep       = "expiry_sweep"
	JobTTLBackfill       = "ttl_backfill"
	JobAggressiveCleanup = "aggressive_cleanup"
)

// DefaultSweepBatch caps deletions per pass.
const DefaultSweepBatch = 50

// Sweeper deletes tournaments whose TTL has passed and gives a TTL to those that have none.
type Sweeper struct {
	store store.Store
	sink  notify.Sink
	now   Clock

	BatchSize int
	// AggressiveInterval and AggressiveMaxPasses bound the self-stopping cleanup loop.
	AggressiveInterval  time.Duration
	AggressiveMaxPasses int

	mu         sync.Mutex
	aggressive func()
}

func NewSweeper(st store.Store, sink notify.Sink, now Clock) *Sweeper {
	if now == nil {
		now = SystemClock
	}
	return &Sweeper{
		store:               st,
		sink:                sink,
		now:                 now,
		BatchSize:           DefaultSweepBatch,
		AggressiveInterval:  10 * time.Second,
		AggressiveMaxPasses: 30,
	}
}

// SweepOnce deletes at most one batch of expired tournaments and returns how many went away.
// A tournament changed by someone else since the query is skipped until the next pass.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	limit := s.BatchSize
	if limit <= 0 {
		limit = DefaultSweepBatch
	}
	now := s.now()
	expired, err := s.store.ExpiredTournaments(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	log := logger.WithContext(ctx)
	deleted := 0
	for _, candidate := range expired {
		if ctx.Err() != nil {
			return deleted, ctx.Err()
		}
		var stranded int64
		err := s.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
			t, err := tx.Tournament(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if t.TTL == nil || t.TTL.After(now) {
				return errNotExpired
			}
			stranded = t.CurrentPrizePool
			if err := tx.DeleteTeams(ctx, t.ID); err != nil {
				return err
			}
			return tx.DeleteTournament(ctx, t)
		})
		switch {
		case err == nil:
			deleted++
			metrics.SweepDeleted.Inc()
			// expiry never moves credits; an unpaid pool is only reported
			if stranded > 0 {
				metrics.SweepStrandedCredits.Add(float64(stranded))
				log.Warn("expired tournament had undistributed prize pool",
					"tournament_id", candidate.ID, "status", string(candidate.Status), "amount", stranded)
			}
			notify.Send(ctx, s.sink, notify.KindTournamentExpired, map[string]any{
				"tournament_id": candidate.ID, "status": string(candidate.Status), "stranded_pool": stranded,
			})
		case errors.Is(err, store.ErrNotFound), errors.Is(err, errNotExpired):
		case errors.Is(err, store.ErrConflict):
			metrics.StoreConflicts.WithLabelValues("expire").Inc()
		default:
			log.Error("expire tournament", "tournament_id", candidate.ID, "error", err)
		}
	}
	if deleted > 0 {
		log.Info("expired tournaments deleted", "count", deleted)
	}
	return deleted, nil
}

var errNotExpired = errors.New("tournament ttl moved")

// BackfillTTL gives tournaments without a TTL one of scheduled_start + 2h.
func (s *Sweeper) BackfillTTL(ctx context.Context) (int, error) {
	limit := s.BatchSize
	if limit <= 0 {
		limit = DefaultSweepBatch
	}
	missing, err := s.store.TournamentsWithoutTTL(ctx, limit)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, candidate := range missing {
		_, err := store.AtomicUpdate(ctx, s.store, candidate.ID,
			func(t *domain.Tournament) error {
				if t.TTL != nil {
					return errNotExpired
				}
				return nil
			},
			func(t *domain.Tournament) error {
				ttl := t.ScheduledStart.Add(DefaultTTL)
				t.TTL = &ttl
				t.UpdatedAt = s.now()
				return nil
			})
		if err == nil {
			updated++
			continue
		}
		if !errors.Is(err, errNotExpired) && !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrConflict) {
			logger.WithContext(ctx).Error("backfill ttl", "tournament_id", candidate.ID, "error", err)
		}
	}
	if updated > 0 {
		logger.WithContext(ctx).Info("ttl backfilled", "count", updated)
	}
	return updated, nil
}

// Register puts the sweep and the backfill on sched.
func (s *Sweeper) Register(sched scheduler.Scheduler, sweepEvery, backfillEvery time.Duration) error {
	if _, err := sched.Every(JobExpirySweep, sweepEvery, func(ctx context.Context) {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Error("expiry sweep failed", "error", err)
		}
	}); err != nil {
		return err
	}
	if _, err := sched.Every(JobTTLBackfill, backfillEvery, func(ctx context.Context) {
		if _, err := s.BackfillTTL(ctx); err != nil && ctx.Err() == nil {
			logger.Error("ttl backfill failed", "error", err)
		}
	}); err != nil {
		return err
	}
	return nil
}

// StartAggressive schedules a fast cleanup loop that removes itself once a pass deletes nothing
// or the pass budget runs out. Calling it while a loop is running does nothing.
func (s *Sweeper) StartAggressive(sched scheduler.Scheduler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aggressive != nil {
		return nil
	}

	passes := 0
	cancel, err := sched.Every(JobAggressiveCleanup, s.AggressiveInterval, func(ctx context.Context) {
		passes++
		n, err := s.SweepOnce(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Error("aggressive cleanup failed", "error", err)
		}
		if n == 0 || err != nil || passes >= s.AggressiveMaxPasses {
			logger.Info("aggressive cleanup stopped", "passes", passes)
			s.stopAggressive()
		}
	})
	if err != nil {
		return err
	}
	s.aggressive = cancel
	return nil
}

// AggressiveRunning reports whether the fast cleanup loop is scheduled.
func (s *Sweeper) AggressiveRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggressive != nil
}

func (s *Sweeper) stopAggressive() {
	s.mu.Lock()
	cancel := s.aggressive
	s.aggressive = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
