// Package store defines the document store the core runs on. Every write is conditional on the
// version that was read; a write that lost the race fails the whole unit of work with ErrConflict.
package store

import (
	"context"
	"errors"
	"time"

	"tournament_market/internal/domain"
)

// Collection names, shared by every implementation.
const (
	CollTournaments        = "tournaments"
	CollTeams              = "teams"
	CollWallets            = "wallets"
	CollCreditTransactions = "credit_transactions"
	CollWithdrawalRequests = "withdrawal_requests"
)

var (
	// ErrConflict is returned when a conditional write observes a newer version.
	ErrConflict = errors.New("store: conflicting concurrent update")
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("store: document not found")
)

// Tx is one unit of work. Reads record the version they saw; writes are checked against it on commit.
type Tx interface {
	Tournament(ctx context.Context, id string) (*domain.Tournament, error)
	InsertTournament(ctx context.Context, t *domain.Tournament) error
	UpdateTournament(ctx context.Context, t *domain.Tournament) error
	DeleteTournament(ctx context.Context, t *domain.Tournament) error

	Team(ctx context.Context, id string) (*domain.Team, error)
	InsertTeam(ctx context.Context, team *domain.Team) error
	UpdateTeam(ctx context.Context, team *domain.Team) error
	DeleteTeams(ctx context.Context, tournamentID string) error

	// Wallet never returns ErrNotFound: a missing wallet comes back empty with Version 0.
	Wallet(ctx context.Context, userID string) (*domain.Wallet, error)
	// SaveWallet inserts when Version is 0 and updates conditionally otherwise.
	SaveWallet(ctx context.Context, w *domain.Wallet) error
	AppendTransaction(ctx context.Context, ct *domain.CreditTransaction) error
	PaymentRecorded(ctx context.Context, paymentRef string) (bool, error)

	Withdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error)
	InsertWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error
	UpdateWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error
}

// Store is the document store.
type Store interface {
	// RunTx runs fn in a unit of work. Nothing is written if fn returns an error or the commit conflicts.
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Tournament(ctx context.Context, id string) (*domain.Tournament, error)
	ExpiredTournaments(ctx context.Context, now time.Time, limit int) ([]*domain.Tournament, error)
	TournamentsWithoutTTL(ctx context.Context, limit int) ([]*domain.Tournament, error)

	Wallet(ctx context.Context, userID string) (*domain.Wallet, error)
	// Transactions returns the user's ledger in creation order.
	Transactions(ctx context.Context, userID string) ([]*domain.CreditTransaction, error)

	Withdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error)
	PendingWithdrawals(ctx context.Context, limit int) ([]*domain.WithdrawalRequest, error)

	Ping(ctx context.Context) error
}

// AtomicUpdate re-reads the tournament, checks precondition against that exact version and
// writes the mutated copy only if no other write happened since the read.
func AtomicUpdate(ctx context.Context, s Store, id string, precondition, mutate func(t *domain.Tournament) error) (*domain.Tournament, error) {
	var out *domain.Tournament
	err := s.RunTx(ctx, func(ctx context.Context, tx Tx) error {
		t, err := tx.Tournament(ctx, id)
		if err != nil {
			return err
		}
		if precondition != nil {
			if err := precondition(t); err != nil {
				return err
			}
		}
		if err := mutate(t); err != nil {
			return err
		}
		if err := tx.UpdateTournament(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
