package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tournament_market/internal/domain"
	"tournament_market/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore implements store.Store on PostgreSQL. Documents carry a version column and every
// update is `... WHERE version = $n`, so a lost race surfaces as store.ErrConflict.
type PgStore struct {
	db          *pgxpool.Pool
	tournaments *TournamentRepository
	teams       *TeamRepository
	wallets     *WalletRepository
	txs         *TransactionRepository
	withdrawals *WithdrawalRepository
}

var _ store.Store = (*PgStore)(nil)

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{
		db:          db,
		tournaments: NewTournamentRepository(),
		teams:       NewTeamRepository(),
		wallets:     NewWalletRepository(),
		txs:         NewTransactionRepository(),
		withdrawals: NewWithdrawalRepository(),
	}
}

func (s *PgStore) RunTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PgStore) Tournament(ctx context.Context, id string) (*domain.Tournament, error) {
	return s.tournaments.GetByID(ctx, s.db, id)
}

func (s *PgStore) ExpiredTournaments(ctx context.Context, now time.Time, limit int) ([]*domain.Tournament, error) {
	return s.tournaments.GetExpired(ctx, s.db, now, limit)
}

func (s *PgStore) TournamentsWithoutTTL(ctx context.Context, limit int) ([]*domain.Tournament, error) {
	return s.tournaments.GetWithoutTTL(ctx, s.db, limit)
}

func (s *PgStore) Wallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	return s.wallets.GetByUserID(ctx, s.db, userID)
}

func (s *PgStore) Transactions(ctx context.Context, userID string) ([]*domain.CreditTransaction, error) {
	return s.txs.GetByUserID(ctx, s.db, userID)
}

func (s *PgStore) Withdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	return s.withdrawals.GetByID(ctx, s.db, id)
}

func (s *PgStore) PendingWithdrawals(ctx context.Context, limit int) ([]*domain.WithdrawalRequest, error) {
	return s.withdrawals.GetPending(ctx, s.db, limit)
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// pgTx binds the repositories to one database transaction.
type pgTx struct {
	s  *PgStore
	tx pgx.Tx
}

func (t *pgTx) Tournament(ctx context.Context, id string) (*domain.Tournament, error) {
	return t.s.tournaments.GetByID(ctx, t.tx, id)
}

func (t *pgTx) InsertTournament(ctx context.Context, tr *domain.Tournament) error {
	return t.s.tournaments.Create(ctx, t.tx, tr)
}

func (t *pgTx) UpdateTournament(ctx context.Context, tr *domain.Tournament) error {
	return t.s.tournaments.Update(ctx, t.tx, tr)
}

func (t *pgTx) DeleteTournament(ctx context.Context, tr *domain.Tournament) error {
	return t.s.tournaments.Delete(ctx, t.tx, tr)
}

func (t *pgTx) Team(ctx context.Context, id string) (*domain.Team, error) {
	return t.s.teams.GetByID(ctx, t.tx, id)
}

func (t *pgTx) InsertTeam(ctx context.Context, team *domain.Team) error {
	return t.s.teams.Create(ctx, t.tx, team)
}

func (t *pgTx) UpdateTeam(ctx context.Context, team *domain.Team) error {
	return t.s.teams.Update(ctx, t.tx, team)
}

func (t *pgTx) DeleteTeams(ctx context.Context, tournamentID string) error {
	return t.s.teams.DeleteByTournament(ctx, t.tx, tournamentID)
}

func (t *pgTx) Wallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	return t.s.wallets.GetByUserID(ctx, t.tx, userID)
}

func (t *pgTx) SaveWallet(ctx context.Context, w *domain.Wallet) error {
	if w.Version == 0 {
		return t.s.wallets.Create(ctx, t.tx, w)
	}
	return t.s.wallets.Update(ctx, t.tx, w)
}

func (t *pgTx) AppendTransaction(ctx context.Context, ct *domain.CreditTransaction) error {
	return t.s.txs.CreateWithTx(ctx, t.tx, ct)
}

func (t *pgTx) PaymentRecorded(ctx context.Context, paymentRef string) (bool, error) {
	return t.s.txs.PaymentExists(ctx, t.tx, paymentRef)
}

func (t *pgTx) Withdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	return t.s.withdrawals.GetByID(ctx, t.tx, id)
}

func (t *pgTx) InsertWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error {
	return t.s.withdrawals.Create(ctx, t.tx, w)
}

func (t *pgTx) UpdateWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error {
	return t.s.withdrawals.Update(ctx, t.tx, w)
}

// checkAffected turns a conditional write that matched nothing into a conflict.
func checkAffected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}
