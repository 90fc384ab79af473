package repository

import (
	"context"
	"encoding/json"

	"tournament_market/internal/domain"
	"tournament_market/internal/store"

	"github.com/jackc/pgx/v5"
)

// TransactionRepository is the append-only ledger table. Rows are never updated or deleted.
type TransactionRepository struct{}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{}
}

// GetByUserID returns every ledger entry of the user in creation order
func (r *TransactionRepository) GetByUserID(ctx context.Context, q querier, userID string) ([]*domain.CreditTransaction, error) {
	rows, err := q.Query(ctx,
		`SELECT seq, id, user_id, type, amount, balance_before, balance_after, wallet_type,
		        COALESCE(payment_ref, ''), details, created_at
		 FROM credit_transactions
		 WHERE user_id = $1
		 ORDER BY seq ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// CreateWithTx inserts a ledger entry using an existing database transaction
func (r *TransactionRepository) CreateWithTx(ctx context.Context, q querier, ct *domain.CreditTransaction) error {
	details, err := json.Marshal(ct.TransactionDetails)
	if err != nil || ct.TransactionDetails == nil {
		details = []byte("{}")
	}

	var paymentRef *string
	if ct.PaymentRef != "" {
		paymentRef = &ct.PaymentRef
	}

	err = q.QueryRow(ctx,
		`INSERT INTO credit_transactions
		   (id, user_id, type, amount, balance_before, balance_after, wallet_type, payment_ref, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING seq`,
		ct.ID, ct.UserID, ct.Type, ct.Amount, ct.BalanceBefore, ct.BalanceAfter, ct.WalletType, paymentRef, details, ct.CreatedAt,
	).Scan(&ct.Seq)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

// PaymentExists reports whether a deposit with this gateway reference was already credited
func (r *TransactionRepository) PaymentExists(ctx context.Context, q querier, paymentRef string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM credit_transactions WHERE payment_ref = $1)
	`, paymentRef).Scan(&exists)
	return exists, err
}

// Helper to scan rows into CreditTransaction slice
func (r *TransactionRepository) scanRows(rows pgx.Rows) ([]*domain.CreditTransaction, error) {
	var result []*domain.CreditTransaction

	for rows.Next() {
		var (
			ct      domain.CreditTransaction
			details []byte
		)

		if err := rows.Scan(&ct.Seq, &ct.ID, &ct.UserID, &ct.Type, &ct.Amount, &ct.BalanceBefore, &ct.BalanceAfter,
			&ct.WalletType, &ct.PaymentRef, &details, &ct.CreatedAt); err != nil {
			return nil, err
		}

		if len(details) > 0 {
			_ = json.Unmarshal(details, &ct.TransactionDetails)
		}

		result = append(result, &ct)
	}

	return result, rows.Err()
}
