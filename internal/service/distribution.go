package service

import (
	"context"
	"strings"

	"tournament_market/internal/domain"
	"tournament_market/internal/logger"
	"tournament_market/internal/metrics"
	"tournament_market/internal/notify"
	"tournament_market/internal/store"
)

// stalenessTolerance is how far a confirmed amount may drift from the recomputed one.
const stalenessTolerance = 1

// WinnerPreview is what the host confirms before a payout.
type WinnerPreview struct {
	TournamentID string `json:"tournament_id"`
	Position     string `json:"position"`
	UID          string `json:"uid"`
	IGN          string `json:"ign"`
	AuthUID      string `json:"auth_uid"`
	Amount       int64  `json:"amount"`
}

// Assignment picks the winner of one position.
type Assignment struct {
	Position string `json:"position"`
	UID      string `json:"uid"`
	IGN      string `json:"ign"`
	Amount   int64  `json:"amount"`
}

func (a *Assignment) normalize() error {
	a.Position = strings.TrimSpace(a.Position)
	a.UID = strings.TrimSpace(a.UID)
	a.IGN = strings.TrimSpace(a.IGN)
	if a.Position == "" || a.UID == "" || a.IGN == "" {
		return domain.Errorf(domain.KindValidation, "position, uid and ign are required")
	}
	return nil
}

// checkDistributable holds the gates shared by preview and confirm.
func checkDistributable(t *domain.Tournament, actorID string, a Assignment) (domain.Participant, error) {
	if err := requireHost(t, actorID); err != nil {
		return domain.Participant{}, err
	}
	if err := requireStatus(t, domain.StatusEnded, "distribute prizes of"); err != nil {
		return domain.Participant{}, err
	}
	if !t.HasPosition(a.Position) {
		return domain.Participant{}, domain.Errorf(domain.KindValidation, "position %q has no prize", a.Position)
	}
	p, ok := t.FindEntry(a.UID, a.IGN)
	if !ok {
		if t.Mode.IsTeam() {
			return domain.Participant{}, domain.Errorf(domain.KindNotFound, "no team leader with uid %s and ign %s", a.UID, a.IGN)
		}
		return domain.Participant{}, domain.Errorf(domain.KindNotFound, "no participant with uid %s and ign %s", a.UID, a.IGN)
	}
	return p, nil
}

// AssignWinner validates the winner and returns the prize for confirmation. Nothing is written.
func (s *TournamentService) AssignWinner(ctx context.Context, tournamentID, actorID string, a Assignment) (*WinnerPreview, error) {
	if err := a.normalize(); err != nil {
		return nil, err
	}
	t, err := s.Get(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	p, err := checkDistributable(t, actorID, a)
	if err != nil {
		return nil, err
	}
	amount, err := PrizeAmount(t, a.Position)
	if err != nil {
		return nil, err
	}
	return &WinnerPreview{
		TournamentID: t.ID,
		Position:     a.Position,
		UID:          a.UID,
		IGN:          a.IGN,
		AuthUID:      p.AuthUID(),
		Amount:       amount,
	}, nil
}

// CheckWinnerSet rejects a set of assignments where one (uid, ign) pair would win two positions,
// counting the winners already saved on the tournament.
func CheckWinnerSet(t *domain.Tournament, pending []Assignment) error {
	owner := make(map[string]string)
	claim := func(position, uid, ign string) error {
		key := uid + "\x00" + ign
		if prev, ok := owner[key]; ok && prev != position {
			return domain.Errorf(domain.KindDuplicateWinner,
				"player %s (%s) is already the winner of position %s", ign, uid, prev)
		}
		owner[key] = position
		return nil
	}
	for _, pos := range t.Positions() {
		if w, ok := t.Winners[pos]; ok && w != nil {
			if err := claim(pos, w.UID, w.IGN); err != nil {
				return err
			}
		}
	}
	for _, a := range pending {
		if err := claim(a.Position, a.UID, a.IGN); err != nil {
			return err
		}
	}
	return nil
}

// ConfirmDistribution pays one position. The winner's credit, the pool decrement and the winner
// record commit together.
func (s *TournamentService) ConfirmDistribution(ctx context.Context, tournamentID, actorID string, a Assignment) (*domain.Winner, error) {
	if err := a.normalize(); err != nil {
		return nil, err
	}
	if a.Amount < 0 {
		return nil, domain.Errorf(domain.KindValidation, "amount must not be negative")
	}

	var (
		winner *domain.Winner
		ct     *domain.CreditTransaction
	)
	err := runTx(ctx, s.store, "distribute", defaultTxAttempts, func(ctx context.Context, tx store.Tx) error {
		ct = nil
		t, err := loadTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		p, err := checkDistributable(t, actorID, a)
		if err != nil {
			return err
		}

		amount, err := PrizeAmount(t, a.Position)
		if err != nil {
			return err
		}
		if diff := amount - a.Amount; diff > stalenessTolerance || diff < -stalenessTolerance {
			return domain.Errorf(domain.KindStaleCalculation,
				"prize for %s is now %d, not %d; review and confirm again", a.Position, amount, a.Amount)
		}
		if t.Distributed(a.Position) {
			return domain.Errorf(domain.KindState, "prize for %s was already distributed", a.Position)
		}
		if err := CheckWinnerSet(t, []Assignment{a}); err != nil {
			return err
		}
		if amount > t.CurrentPrizePool {
			return domain.Errorf(domain.KindInsufficientFunds,
				"prize pool has %d left, cannot pay %d", t.CurrentPrizePool, amount)
		}

		authUID := p.AuthUID()
		if amount > 0 {
			ct, err = s.ledger.CreditTx(ctx, tx, Entry{
				UserID: authUID,
				Wallet: domain.WalletEarnings,
				Type:   domain.TxTournamentWin,
				Details: map[string]interface{}{
					"tournamentId": t.ID, "position": a.Position, "uid": a.UID, "ign": a.IGN,
				},
			}, amount)
			if err != nil {
				return err
			}
		}

		t.CurrentPrizePool -= amount
		t.TotalPrizesDistributed += amount
		if t.Winners == nil {
			t.Winners = make(map[string]*domain.Winner)
		}
		winner = &domain.Winner{
			UID:              a.UID,
			IGN:              a.IGN,
			AuthUID:          authUID,
			PrizeDistributed: true,
			PrizeAmount:      amount,
		}
		t.Winners[a.Position] = winner
		t.UpdatedAt = s.now()
		return tx.UpdateTournament(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Observe(ctx, ct)
	metrics.PrizesPaid.Add(float64(winner.PrizeAmount))
	logger.WithContext(ctx).Info("prize distributed", "tournament_id", tournamentID, "position", a.Position,
		"user_id", winner.AuthUID, "amount", winner.PrizeAmount)
	notify.Send(ctx, s.sink, notify.KindPrizeDistributed, map[string]any{
		"tournament_id": tournamentID, "position": a.Position, "user_id": winner.AuthUID, "amount": winner.PrizeAmount,
	})
	return winner, nil
}

// CollectHostEarnings pays the host what is left of a percentage pool after every prize went out.
func (s *TournamentService) CollectHostEarnings(ctx context.Context, tournamentID, actorID string) (int64, error) {
	var (
		amount int64
		ct     *domain.CreditTransaction
	)
	err := runTx(ctx, s.store, "host_earnings", defaultTxAttempts, func(ctx context.Context, tx store.Tx) error {
		ct = nil
		t, err := loadTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if err := requireHost(t, actorID); err != nil {
			return err
		}
		if err := requireStatus(t, domain.StatusEnded, "collect earnings of"); err != nil {
			return err
		}
		if t.IsManual() {
			return domain.Errorf(domain.KindValidation, "free tournaments have no host earnings")
		}
		if t.HostEarningsDistributed {
			return domain.Errorf(domain.KindState, "host earnings were already collected")
		}
		for _, pos := range t.Positions() {
			if !t.Distributed(pos) {
				return domain.Errorf(domain.KindState, "prize for %s has not been distributed yet", pos)
			}
		}
		if t.CurrentPrizePool <= 0 {
			return domain.Errorf(domain.KindValidation, "no host earnings")
		}

		amount = t.CurrentPrizePool
		ct, err = s.ledger.CreditTx(ctx, tx, Entry{
			UserID:  t.HostID,
			Wallet:  domain.WalletEarnings,
			Type:    domain.TxTournamentHostEarning,
			Details: map[string]interface{}{"tournamentId": t.ID, "tournamentName": t.Name},
		}, amount)
		if err != nil {
			return err
		}
		t.HostEarningsAmount = amount
		t.HostEarningsDistributed = true
		t.CurrentPrizePool = 0
		t.UpdatedAt = s.now()
		return tx.UpdateTournament(ctx, t)
	})
	if err != nil {
		return 0, err
	}

	s.ledger.Observe(ctx, ct)
	logger.WithContext(ctx).Info("host earnings collected", "tournament_id", tournamentID, "host_id", actorID, "amount", amount)
	notify.Send(ctx, s.sink, notify.KindHostEarningsCollected, map[string]any{
		"tournament_id": tournamentID, "host_id": actorID, "amount": amount,
	})
	return amount, nil
}
