package domain

import "time"

// WalletType selects one of the three balances of a wallet.
type WalletType string

const (
	WalletTournamentCredits WalletType = "tournamentCredits"
	WalletHostCredits       WalletType = "hostCredits"
	WalletEarnings          WalletType = "earnings"
)

// Valid reports whether w names a known pool.
func (w WalletType) Valid() bool {
	switch w {
	case WalletTournamentCredits, WalletHostCredits, WalletEarnings:
		return true
	}
	return false
}

// Wallet holds the per-user balances. It is only written through ledger transactions.
type Wallet struct {
	UserID            string    `json:"user_id"`
	TournamentCredits int64     `json:"tournament_credits"`
	HostCredits       int64     `json:"host_credits"`
	Earnings          int64     `json:"earnings"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Version 0 means the wallet has not been persisted yet.
	Version int64 `json:"-"`
}

// Balance returns the balance of the given pool.
func (w *Wallet) Balance(t WalletType) int64 {
	switch t {
	case WalletTournamentCredits:
		return w.TournamentCredits
	case WalletHostCredits:
		return w.HostCredits
	case WalletEarnings:
		return w.Earnings
	}
	return 0
}

// SetBalance overwrites the balance of the given pool.
func (w *Wallet) SetBalance(t WalletType, v int64) {
	switch t {
	case WalletTournamentCredits:
		w.TournamentCredits = v
	case WalletHostCredits:
		w.HostCredits = v
	case WalletEarnings:
		w.Earnings = v
	}
}

// TransactionType - тип операции в журнале
type TransactionType string

const (
	TxPurchase              TransactionType = "purchase"
	TxTournamentJoin        TransactionType = "tournament_join"
	TxTournamentWin         TransactionType = "tournament_win"
	TxTournamentHostEarning TransactionType = "tournament_host_earnings"
	TxTournamentHostFunding TransactionType = "tournament_host_funding"
	TxWithdrawal            TransactionType = "withdrawal"
	TxRefund                TransactionType = "refund"
)

// CreditTransaction is an immutable ledger entry. BalanceAfter = BalanceBefore + Amount.
type CreditTransaction struct {
	ID                 string                 `json:"id"`
	Seq                int64                  `json:"seq"`
	UserID             string                 `json:"user_id"`
	Type               TransactionType        `json:"type"`
	Amount             int64                  `json:"amount"`
	BalanceBefore      int64                  `json:"balance_before"`
	BalanceAfter       int64                  `json:"balance_after"`
	WalletType         WalletType             `json:"wallet_type"`
	PaymentRef         string                 `json:"payment_ref,omitempty"`
	TransactionDetails map[string]interface{} `json:"transaction_details,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
}
