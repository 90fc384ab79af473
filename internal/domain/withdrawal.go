package domain

import "time"

// WithdrawalStatus - статус заявки на вывод
type WithdrawalStatus string

const (
	WithdrawalPending WithdrawalStatus = "pending"
	WithdrawalDone    WithdrawalStatus = "done"
)

// WithdrawalRequest records a payout of earnings to an off-platform UPI destination.
type WithdrawalRequest struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	Amount         int64            `json:"amount"`
	Commission     int64            `json:"commission"`
	FinalAmount    int64            `json:"final_amount"`
	UPIDestination string           `json:"upi_destination"`
	Status         WithdrawalStatus `json:"status"`
	TransactionID  string           `json:"transaction_id"`
	CreatedAt      time.Time        `json:"created_at"`
	ProcessedAt    *time.Time       `json:"processed_at,omitempty"`

	Version int64 `json:"-"`
}

// WithdrawEstimate shows the split before the request is made.
type WithdrawEstimate struct {
	Amount            int64 `json:"amount"`
	Commission        int64 `json:"commission"`
	FinalAmount       int64 `json:"final_amount"`
	CommissionPercent int64 `json:"commission_percent"`
}
