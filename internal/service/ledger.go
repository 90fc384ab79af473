package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tournament_market/internal/domain"
	"tournament_market/internal/logger"
	"tournament_market/internal/metrics"
	"tournament_market/internal/notify"
	"tournament_market/internal/store"
)

// DefaultCommissionPercent is the fixed withdrawal commission.
const DefaultCommissionPercent = 4

// Package types accepted from the payment gateway.
const (
	PackageTournament = "tournament"
	PackageHost       = "host"
)

// Entry describes one balance movement.
type Entry struct {
	UserID     string
	Wallet     domain.WalletType
	Type       domain.TransactionType
	Details    map[string]interface{}
	PaymentRef string
}

// Ledger is the only writer of wallet balances. Every movement appends a CreditTransaction
// in the same unit of work as the balance change.
type Ledger struct {
	store             store.Store
	sink              notify.Sink
	now               Clock
	CommissionPercent int64
}

// NewLedger creates the ledger service
func NewLedger(st store.Store, sink notify.Sink, now Clock) *Ledger {
	if now == nil {
		now = SystemClock
	}
	return &Ledger{store: st, sink: sink, now: now, CommissionPercent: DefaultCommissionPercent}
}

// DebitTx removes amount from a wallet pool inside an existing unit of work.
func (l *Ledger) DebitTx(ctx context.Context, tx store.Tx, e Entry, amount int64) (*domain.CreditTransaction, error) {
	if amount < 0 {
		return nil, domain.Errorf(domain.KindValidation, "amount must not be negative")
	}
	return l.post(ctx, tx, e, -amount)
}

// CreditTx adds amount to a wallet pool inside an existing unit of work.
func (l *Ledger) CreditTx(ctx context.Context, tx store.Tx, e Entry, amount int64) (*domain.CreditTransaction, error) {
	if amount < 0 {
		return nil, domain.Errorf(domain.KindValidation, "amount must not be negative")
	}
	return l.post(ctx, tx, e, amount)
}

func (l *Ledger) post(ctx context.Context, tx store.Tx, e Entry, delta int64) (*domain.CreditTransaction, error) {
	if e.UserID == "" {
		return nil, domain.Errorf(domain.KindValidation, "user id is required")
	}
	if !e.Wallet.Valid() {
		return nil, domain.Errorf(domain.KindValidation, "unknown wallet type %q", e.Wallet)
	}

	w, err := tx.Wallet(ctx, e.UserID)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	before := w.Balance(e.Wallet)
	after := before + delta
	if after < 0 {
		return nil, domain.Errorf(domain.KindInsufficientFunds,
			"insufficient %s: balance %d, required %d", e.Wallet, before, -delta)
	}

	now := l.now()
	if w.Version == 0 {
		w.CreatedAt = now
	}
	w.SetBalance(e.Wallet, after)
	w.UpdatedAt = now
	if err := tx.SaveWallet(ctx, w); err != nil {
		return nil, err
	}

	ct := &domain.CreditTransaction{
		ID:                 newID(),
		UserID:             e.UserID,
		Type:               e.Type,
		Amount:             delta,
		BalanceBefore:      before,
		BalanceAfter:       after,
		WalletType:         e.Wallet,
		PaymentRef:         e.PaymentRef,
		TransactionDetails: e.Details,
		CreatedAt:          now,
	}
	if err := tx.AppendTransaction(ctx, ct); err != nil {
		return nil, err
	}
	return ct, nil
}

// Observe records committed entries in logs and metrics. Call it only after the unit of work committed.
func (l *Ledger) Observe(ctx context.Context, entries ...*domain.CreditTransaction) {
	log := logger.WithContext(ctx)
	for _, ct := range entries {
		if ct == nil {
			continue
		}
		metrics.LedgerEntries.WithLabelValues(string(ct.Type), string(ct.WalletType)).Inc()
		amount := ct.Amount
		if amount < 0 {
			amount = -amount
		}
		metrics.LedgerCredits.WithLabelValues(string(ct.Type)).Add(float64(amount))
		log.Info("ledger entry",
			logger.Ledger(ct.UserID, string(ct.WalletType), string(ct.Type), ct.Amount, ct.BalanceAfter))
	}
}

// Debit deducts amount from one pool of the user's wallet.
func (l *Ledger) Debit(ctx context.Context, userID string, wallet domain.WalletType, amount int64, reason domain.TransactionType, details map[string]interface{}) (*domain.CreditTransaction, error) {
	return l.single(ctx, "debit", func(ctx context.Context, tx store.Tx) (*domain.CreditTransaction, error) {
		return l.DebitTx(ctx, tx, Entry{UserID: userID, Wallet: wallet, Type: reason, Details: details}, amount)
	})
}

// Credit adds amount to one pool of the user's wallet.
func (l *Ledger) Credit(ctx context.Context, userID string, wallet domain.WalletType, amount int64, reason domain.TransactionType, details map[string]interface{}) (*domain.CreditTransaction, error) {
	return l.single(ctx, "credit", func(ctx context.Context, tx store.Tx) (*domain.CreditTransaction, error) {
		return l.CreditTx(ctx, tx, Entry{UserID: userID, Wallet: wallet, Type: reason, Details: details}, amount)
	})
}

func (l *Ledger) single(ctx context.Context, op string, fn func(ctx context.Context, tx store.Tx) (*domain.CreditTransaction, error)) (*domain.CreditTransaction, error) {
	var ct *domain.CreditTransaction
	err := runTx(ctx, l.store, op, defaultTxAttempts, func(ctx context.Context, tx store.Tx) error {
		var err error
		ct, err = fn(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.Observe(ctx, ct)
	return ct, nil
}

// Deposit is a confirmed payment from the checkout flow.
type Deposit struct {
	UserID      string `json:"user_id"`
	PackageType string `json:"package_type"`
	Credits     int64  `json:"credits"`
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
}

// OnFundsReceived credits a purchased package. Re-delivery of the same payment id is a no-op.
func (l *Ledger) OnFundsReceived(ctx context.Context, d Deposit) (*domain.Wallet, error) {
	var wallet domain.WalletType
	switch strings.ToLower(d.PackageType) {
	case PackageTournament:
		wallet = domain.WalletTournamentCredits
	case PackageHost:
		wallet = domain.WalletHostCredits
	default:
		return nil, domain.Errorf(domain.KindValidation, "unknown package type %q", d.PackageType)
	}
	if d.UserID == "" || d.PaymentID == "" {
		return nil, domain.Errorf(domain.KindValidation, "user id and payment id are required")
	}
	if d.Credits <= 0 {
		return nil, domain.Errorf(domain.KindValidation, "credits must be positive")
	}

	var (
		ct        *domain.CreditTransaction
		duplicate bool
	)
	err := runTx(ctx, l.store, "funds_received", defaultTxAttempts, func(ctx context.Context, tx store.Tx) error {
		ct, duplicate = nil, false
		seen, err := tx.PaymentRecorded(ctx, d.PaymentID)
		if err != nil {
			return err
		}
		if seen {
			duplicate = true
			return nil
		}
		ct, err = l.CreditTx(ctx, tx, Entry{
			UserID:     d.UserID,
			Wallet:     wallet,
			Type:       domain.TxPurchase,
			PaymentRef: d.PaymentID,
			Details: map[string]interface{}{
				"paymentId":   d.PaymentID,
				"orderId":     d.OrderID,
				"packageType": d.PackageType,
			},
		}, d.Credits)
		return err
	})
	if err != nil {
		return nil, err
	}

	if duplicate {
		logger.WithContext(ctx).Info("duplicate payment ignored", "payment_id", d.PaymentID, "user_id", d.UserID)
	} else {
		l.Observe(ctx, ct)
		notify.Send(ctx, l.sink, notify.KindFundsReceived, map[string]any{
			"user_id": d.UserID, "credits": d.Credits, "wallet": string(wallet), "payment_id": d.PaymentID,
		})
	}
	return l.store.Wallet(ctx, d.UserID)
}

// EstimateWithdrawal splits a gross amount into commission and the net amount that leaves the ledger.
func (l *Ledger) EstimateWithdrawal(amount int64) domain.WithdrawEstimate {
	commission := amount * l.CommissionPercent / 100
	return domain.WithdrawEstimate{
		Amount:            amount,
		Commission:        commission,
		FinalAmount:       amount - commission,
		CommissionPercent: l.CommissionPercent,
	}
}

// RequestWithdrawal debits the net amount from earnings and opens a pending request.
// The commission is taken out of the requested sum, not added on top of it.
func (l *Ledger) RequestWithdrawal(ctx context.Context, userID string, amount int64, upiDestination string) (*domain.WithdrawalRequest, error) {
	if userID == "" {
		return nil, domain.Errorf(domain.KindValidation, "user id is required")
	}
	if amount <= 0 {
		return nil, domain.Errorf(domain.KindValidation, "withdrawal amount must be positive")
	}
	upiDestination = strings.TrimSpace(upiDestination)
	if upiDestination == "" {
		return nil, domain.Errorf(domain.KindValidation, "UPI destination is required")
	}
	est := l.EstimateWithdrawal(amount)
	if est.FinalAmount <= 0 {
		return nil, domain.Errorf(domain.KindValidation, "withdrawal amount too small after commission")
	}

	var (
		req *domain.WithdrawalRequest
		ct  *domain.CreditTransaction
	)
	err := runTx(ctx, l.store, "withdrawal", defaultTxAttempts, func(ctx context.Context, tx store.Tx) error {
		id := newID()
		var err error
		ct, err = l.DebitTx(ctx, tx, Entry{
			UserID: userID,
			Wallet: domain.WalletEarnings,
			Type:   domain.TxWithdrawal,
			Details: map[string]interface{}{
				"withdrawalId":   id,
				"grossAmount":    est.Amount,
				"commission":     est.Commission,
				"upiDestination": upiDestination,
			},
		}, est.FinalAmount)
		if err != nil {
			return err
		}
		req = &domain.WithdrawalRequest{
			ID:             id,
			UserID:         userID,
			Amount:         est.Amount,
			Commission:     est.Commission,
			FinalAmount:    est.FinalAmount,
			UPIDestination: upiDestination,
			Status:         domain.WithdrawalPending,
			TransactionID:  ct.ID,
			CreatedAt:      l.now(),
		}
		return tx.InsertWithdrawal(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	l.Observe(ctx, ct)
	notify.Send(ctx, l.sink, notify.KindWithdrawalRequested, map[string]any{
		"user_id": userID, "withdrawal_id": req.ID, "amount": req.Amount, "final_amount": req.FinalAmount,
	})
	return req, nil
}

// MarkWithdrawalDone records off-platform settlement. It moves no funds and is idempotent.
func (l *Ledger) MarkWithdrawalDone(ctx context.Context, requestID string) (*domain.WithdrawalRequest, error) {
	var (
		req     *domain.WithdrawalRequest
		flipped bool
	)
	err := runTx(ctx, l.store, "withdrawal_done", defaultTxAttempts, func(ctx context.Context, tx store.Tx) error {
		flipped = false
		var err error
		req, err = tx.Withdrawal(ctx, requestID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.Errorf(domain.KindNotFound, "withdrawal request %s not found", requestID)
		}
		if err != nil {
			return err
		}
		if req.Status == domain.WithdrawalDone {
			return nil
		}
		now := l.now()
		req.Status = domain.WithdrawalDone
		req.ProcessedAt = &now
		flipped = true
		return tx.UpdateWithdrawal(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	if flipped {
		logger.WithContext(ctx).Info("withdrawal settled", "withdrawal_id", req.ID, "user_id", req.UserID)
		notify.Send(ctx, l.sink, notify.KindWithdrawalDone, map[string]any{
			"user_id": req.UserID, "withdrawal_id": req.ID, "final_amount": req.FinalAmount,
		})
	}
	return req, nil
}

// PendingWithdrawals lists requests waiting for settlement.
func (l *Ledger) PendingWithdrawals(ctx context.Context, limit int) ([]*domain.WithdrawalRequest, error) {
	return l.store.PendingWithdrawals(ctx, limit)
}

// GetWalletBalance returns the wallet, creating it on first access.
func (l *Ledger) GetWalletBalance(ctx context.Context, userID string) (*domain.Wallet, error) {
	if userID == "" {
		return nil, domain.Errorf(domain.KindValidation, "user id is required")
	}
	var w *domain.Wallet
	err := runTx(ctx, l.store, "wallet", defaultTxAttempts, func(ctx context.Context, tx store.Tx) error {
		var err error
		w, err = tx.Wallet(ctx, userID)
		if err != nil || w.Version != 0 {
			return err
		}
		now := l.now()
		w.CreatedAt, w.UpdatedAt = now, now
		return tx.SaveWallet(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Transactions returns the user's ledger history in creation order.
func (l *Ledger) Transactions(ctx context.Context, userID string) ([]*domain.CreditTransaction, error) {
	return l.store.Transactions(ctx, userID)
}

// LedgerMismatch describes a pool whose stored balance disagrees with its replayed history.
type LedgerMismatch struct {
	Wallet   domain.WalletType
	Stored   int64
	Replayed int64
}

// VerifyLedger replays the user's transactions and compares each pool with the stored wallet.
func (l *Ledger) VerifyLedger(ctx context.Context, userID string) ([]LedgerMismatch, error) {
	txs, err := l.store.Transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	w, err := l.store.Wallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	replayed := make(map[domain.WalletType]int64)
	last := make(map[domain.WalletType]int64)
	for _, ct := range txs {
		if ct.BalanceAfter != ct.BalanceBefore+ct.Amount {
			return nil, fmt.Errorf("transaction %s: balance_after %d != balance_before %d + amount %d",
				ct.ID, ct.BalanceAfter, ct.BalanceBefore, ct.Amount)
		}
		replayed[ct.WalletType] += ct.Amount
		last[ct.WalletType] = ct.BalanceAfter
	}

	var out []LedgerMismatch
	for _, wt := range []domain.WalletType{domain.WalletTournamentCredits, domain.WalletHostCredits, domain.WalletEarnings} {
		stored := w.Balance(wt)
		if replayed[wt] != stored || last[wt] != stored {
			out = append(out, LedgerMismatch{Wallet: wt, Stored: stored, Replayed: replayed[wt]})
		}
	}
	return out, nil
}
