package repository

import (
	"context"
	"errors"

	"tournament_market/internal/domain"

	"github.com/jackc/pgx/v5"
)

type WalletRepository struct{}

func NewWalletRepository() *WalletRepository {
	return &WalletRepository{}
}

// GetByUserID retrieves wallet by user ID. A missing row is an empty, unsaved wallet.
func (r *WalletRepository) GetByUserID(ctx context.Context, q querier, userID string) (*domain.Wallet, error) {
	w := domain.Wallet{UserID: userID}
	err := q.QueryRow(ctx, `
		SELECT tournament_credits, host_credits, earnings, version, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID).Scan(&w.TournamentCredits, &w.HostCredits, &w.Earnings, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.Wallet{UserID: userID}, nil
		}
		return nil, err
	}
	return &w, nil
}

// Create inserts the wallet on first write
func (r *WalletRepository) Create(ctx context.Context, q querier, w *domain.Wallet) error {
	err := checkAffected(q.Exec(ctx, `
		INSERT INTO wallets (user_id, tournament_credits, host_credits, earnings, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
	`, w.UserID, w.TournamentCredits, w.HostCredits, w.Earnings, w.CreatedAt, w.UpdatedAt))
	if err != nil {
		return err
	}
	w.Version = 1
	return nil
}

// Update writes balances at the version they were read
func (r *WalletRepository) Update(ctx context.Context, q querier, w *domain.Wallet) error {
	err := checkAffected(q.Exec(ctx, `
		UPDATE wallets
		SET tournament_credits = $3, host_credits = $4, earnings = $5, version = version + 1, updated_at = $6
		WHERE user_id = $1 AND version = $2
	`, w.UserID, w.Version, w.TournamentCredits, w.HostCredits, w.Earnings, w.UpdatedAt))
	if err != nil {
		return err
	}
	w.Version++
	return nil
}
