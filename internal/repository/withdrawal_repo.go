package repository

import (
	"context"
	"errors"
	"time"

	"tournament_market/internal/domain"
	"tournament_market/internal/store"

	"github.com/jackc/pgx/v5"
)

type WithdrawalRepository struct{}

func NewWithdrawalRepository() *WithdrawalRepository {
	return &WithdrawalRepository{}
}

const withdrawalColumns = `id, user_id, amount, commission, final_amount, upi_destination, status,
       transaction_id, version, created_at, processed_at`

// GetByID retrieves withdrawal by ID
func (r *WithdrawalRepository) GetByID(ctx context.Context, q querier, id string) (*domain.WithdrawalRequest, error) {
	row := q.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id)
	w, err := scanWithdrawal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return w, err
}

// GetPending retrieves pending withdrawals awaiting settlement, oldest first
func (r *WithdrawalRepository) GetPending(ctx context.Context, q querier, limit int) ([]*domain.WithdrawalRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.Query(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawal_requests
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// Create creates a new withdrawal request
func (r *WithdrawalRepository) Create(ctx context.Context, q querier, w *domain.WithdrawalRequest) error {
	err := checkAffected(q.Exec(ctx, `
		INSERT INTO withdrawal_requests
		  (id, user_id, amount, commission, final_amount, upi_destination, status, transaction_id, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9)
		ON CONFLICT (id) DO NOTHING
	`, w.ID, w.UserID, w.Amount, w.Commission, w.FinalAmount, w.UPIDestination, w.Status, w.TransactionID, w.CreatedAt))
	if err != nil {
		return err
	}
	w.Version = 1
	return nil
}

// Update writes status fields only; amounts are immutable after creation
func (r *WithdrawalRepository) Update(ctx context.Context, q querier, w *domain.WithdrawalRequest) error {
	err := checkAffected(q.Exec(ctx, `
		UPDATE withdrawal_requests
		SET status = $3, processed_at = $4, version = version + 1
		WHERE id = $1 AND version = $2
	`, w.ID, w.Version, w.Status, w.ProcessedAt))
	if err != nil {
		return err
	}
	w.Version++
	return nil
}

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRequest, error) {
	var w domain.WithdrawalRequest
	var processedAt *time.Time

	if err := row.Scan(
		&w.ID, &w.UserID, &w.Amount, &w.Commission, &w.FinalAmount, &w.UPIDestination, &w.Status,
		&w.TransactionID, &w.Version, &w.CreatedAt, &processedAt,
	); err != nil {
		return nil, err
	}
	w.ProcessedAt = processedAt
	return &w, nil
}
