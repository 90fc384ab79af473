package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"tournament_market/internal/domain"
	"tournament_market/internal/logger"
	"tournament_market/internal/metrics"
	"tournament_market/internal/notify"
	"tournament_market/internal/store"
)

const (
	// StartWindow is how early before scheduled_start the host may start.
	StartWindow = 20 * time.Minute
	// DefaultTTL is the lifetime of a started tournament that had no TTL.
	DefaultTTL = 2 * time.Hour
	// GraceTTL is left after end or cancel for prize distribution before deletion.
	GraceTTL = 10 * time.Minute
)

// TournamentService runs the tournament state machine, registration and prize distribution.
type TournamentService struct {
	store  store.Store
	ledger *Ledger
	sink   notify.Sink
	now    Clock

	// JoinRetries is how many times a join is retried after losing a write race.
	JoinRetries int
}

func NewTournamentService(st store.Store, ledger *Ledger, sink notify.Sink, now Clock) *TournamentService {
	if now == nil {
		now = SystemClock
	}
	return &TournamentService{store: st, ledger: ledger, sink: sink, now: now, JoinRetries: 2}
}

// CreateParams describes a new tournament.
type CreateParams struct {
	Name              string           `json:"name"`
	Mode              domain.Mode      `json:"mode"`
	MaxPlayers        int              `json:"max_players"`
	EntryFee          int64            `json:"entry_fee"`
	PrizeDistribution map[string]int   `json:"prize_distribution"`
	ManualPrizePool   map[string]int64 `json:"manual_prize_pool"`
	ScheduledStart    time.Time        `json:"scheduled_start"`
}

// Create opens a tournament for registration. A manual prize pool is paid from the host's
// hostCredits in the same unit of work.
func (s *TournamentService) Create(ctx context.Context, hostID string, p CreateParams) (*domain.Tournament, error) {
	if hostID == "" {
		return nil, domain.Errorf(domain.KindAuthorization, "host id is required")
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, domain.Errorf(domain.KindValidation, "tournament name is required")
	}
	if _, ok := p.Mode.SizeRule(); !ok {
		return nil, domain.Errorf(domain.KindValidation, "unknown mode %q", p.Mode)
	}
	if p.MaxPlayers <= 0 {
		return nil, domain.Errorf(domain.KindValidation, "max players must be positive")
	}
	if p.EntryFee < 0 {
		return nil, domain.Errorf(domain.KindValidation, "entry fee must not be negative")
	}
	if p.ScheduledStart.IsZero() {
		return nil, domain.Errorf(domain.KindValidation, "scheduled start is required")
	}
	if err := validatePrizes(p.EntryFee, p.PrizeDistribution, p.ManualPrizePool); err != nil {
		return nil, err
	}

	var funded int64
	for _, amount := range p.ManualPrizePool {
		funded += amount
	}

	var (
		t  *domain.Tournament
		ct *domain.CreditTransaction
	)
	err := runTx(ctx, s.store, "create_tournament", defaultTxAttempts, func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		t = &domain.Tournament{
			ID:                newID(),
			Name:              p.Name,
			Mode:              p.Mode,
			HostID:            hostID,
			MaxPlayers:        p.MaxPlayers,
			EntryFee:          p.EntryFee,
			PrizeDistribution: p.PrizeDistribution,
			ManualPrizePool:   p.ManualPrizePool,
			Status:            domain.StatusActive,
			ScheduledStart:    p.ScheduledStart.UTC(),
			Participants:      []domain.Participant{},
			CurrentPrizePool:  funded,
			Winners:           map[string]*domain.Winner{},
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		ct = nil
		if funded > 0 {
			var err error
			ct, err = s.ledger.DebitTx(ctx, tx, Entry{
				UserID:  hostID,
				Wallet:  domain.WalletHostCredits,
				Type:    domain.TxTournamentHostFunding,
				Details: map[string]interface{}{"tournamentId": t.ID, "tournamentName": t.Name},
			}, funded)
			if err != nil {
				return err
			}
		}
		return tx.InsertTournament(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Observe(ctx, ct)
	logger.WithContext(ctx).Info("tournament created", "tournament_id", t.ID, "host_id", hostID, "mode", t.Mode, "entry_fee", t.EntryFee)
	notify.Send(ctx, s.sink, notify.KindTournamentCreated, map[string]any{
		"tournament_id": t.ID, "host_id": hostID, "name": t.Name,
	})
	return t, nil
}

// Get returns the tournament or a NotFound error.
func (s *TournamentService) Get(ctx context.Context, id string) (*domain.Tournament, error) {
	t, err := s.store.Tournament(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.Errorf(domain.KindNotFound, "tournament %s not found", id)
	}
	return t, err
}

// Start moves an active tournament to ongoing. The host may start it from 20 minutes before the
// scheduled start on.
func (s *TournamentService) Start(ctx context.Context, tournamentID, actorID string) (*domain.Tournament, error) {
	t, err := s.transition(ctx, tournamentID, "start", func(t *domain.Tournament) error {
		if err := requireHost(t, actorID); err != nil {
			return err
		}
		if err := requireStatus(t, domain.StatusActive, "start"); err != nil {
			return err
		}
		now := s.now()
		opens := t.ScheduledStart.Add(-StartWindow)
		if now.Before(opens) {
			return domain.TooEarly(minutesUntil(now, opens))
		}
		t.Status = domain.StatusOngoing
		if t.TTL == nil {
			ttl := t.ScheduledStart.Add(DefaultTTL)
			t.TTL = &ttl
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	notify.Send(ctx, s.sink, notify.KindTournamentStarted, map[string]any{"tournament_id": t.ID})
	return t, nil
}

// End closes an ongoing tournament and leaves a short grace window for prize distribution.
func (s *TournamentService) End(ctx context.Context, tournamentID, actorID string) (*domain.Tournament, error) {
	t, err := s.transition(ctx, tournamentID, "end", func(t *domain.Tournament) error {
		if err := requireHost(t, actorID); err != nil {
			return err
		}
		if err := requireStatus(t, domain.StatusOngoing, "end"); err != nil {
			return err
		}
		t.Status = domain.StatusEnded
		ttl := s.now().Add(GraceTTL)
		t.TTL = &ttl
		return nil
	})
	if err != nil {
		return nil, err
	}
	notify.Send(ctx, s.sink, notify.KindTournamentEnded, map[string]any{"tournament_id": t.ID})
	return t, nil
}

// transition applies a status change that touches no wallet.
func (s *TournamentService) transition(ctx context.Context, id, op string, apply func(t *domain.Tournament) error) (*domain.Tournament, error) {
	var out *domain.Tournament
	err := runTx(ctx, s.store, op, defaultTxAttempts, func(ctx context.Context, tx store.Tx) error {
		t, err := loadTournament(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := apply(t); err != nil {
			return err
		}
		t.UpdatedAt = s.now()
		out = t
		return tx.UpdateTournament(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(out.Status)).Inc()
	logger.WithContext(ctx).Info("tournament transition", "tournament_id", out.ID, "op", op, "status", out.Status)
	return out, nil
}

// Cancel refunds every entry fee and the unspent manual pool, then marks the tournament cancelled.
// Refunds and the status change commit together or not at all.
func (s *TournamentService) Cancel(ctx context.Context, tournamentID, actorID string) (*domain.Tournament, error) {
	var (
		out     *domain.Tournament
		entries []*domain.CreditTransaction
	)
	err := runTx(ctx, s.store, "cancel", defaultTxAttempts, func(ctx context.Context, tx store.Tx) error {
		entries = entries[:0]
		t, err := loadTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if err := requireHost(t, actorID); err != nil {
			return err
		}
		if t.Status != domain.StatusActive && t.Status != domain.StatusOngoing {
			return domain.Errorf(domain.KindState, "cannot cancel a tournament that is %s", t.Status)
		}

		if t.EntryFee > 0 {
			for _, p := range t.Participants {
				uid := p.AuthUID()
				if uid == "" {
					continue
				}
				amount := t.EntryFee
				if amount > t.CurrentPrizePool {
					amount = t.CurrentPrizePool
				}
				if amount == 0 {
					break
				}
				ct, err := s.ledger.CreditTx(ctx, tx, Entry{
					UserID:  uid,
					Wallet:  domain.WalletTournamentCredits,
					Type:    domain.TxRefund,
					Details: map[string]interface{}{"tournamentId": t.ID, "reason": "tournament_cancelled"},
				}, amount)
				if err != nil {
					return err
				}
				t.CurrentPrizePool -= amount
				entries = append(entries, ct)
			}
		} else if t.CurrentPrizePool > 0 {
			ct, err := s.ledger.CreditTx(ctx, tx, Entry{
				UserID:  t.HostID,
				Wallet:  domain.WalletHostCredits,
				Type:    domain.TxRefund,
				Details: map[string]interface{}{"tournamentId": t.ID, "reason": "manual_pool_returned"},
			}, t.CurrentPrizePool)
			if err != nil {
				return err
			}
			t.CurrentPrizePool = 0
			entries = append(entries, ct)
		}

		now := s.now()
		ttl := now.Add(GraceTTL)
		t.Status = domain.StatusCancelled
		t.TTL = &ttl
		t.UpdatedAt = now
		out = t
		return tx.UpdateTournament(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Observe(ctx, entries...)
	metrics.Transitions.WithLabelValues(string(domain.StatusCancelled)).Inc()
	logger.WithContext(ctx).Info("tournament cancelled", "tournament_id", out.ID, "refunds", len(entries))
	notify.Send(ctx, s.sink, notify.KindTournamentCancelled, map[string]any{
		"tournament_id": out.ID, "refunds": len(entries),
	})
	return out, nil
}

// minutesUntil rounds up so the message never says 0 while the window is still closed.
func minutesUntil(now, at time.Time) int {
	d := at.Sub(now)
	m := int(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	return m
}
