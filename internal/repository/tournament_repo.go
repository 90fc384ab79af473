package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tournament_market/internal/domain"
	"tournament_market/internal/store"

	"github.com/jackc/pgx/v5"
)

// TournamentRepository stores tournaments as JSONB documents. host_id, status and ttl are
// duplicated into columns so the sweep can query them.
type TournamentRepository struct{}

func NewTournamentRepository() *TournamentRepository {
	return &TournamentRepository{}
}

// GetByID retrieves tournament by ID
func (r *TournamentRepository) GetByID(ctx context.Context, q querier, id string) (*domain.Tournament, error) {
	row := q.QueryRow(ctx, `SELECT doc, version FROM tournaments WHERE id = $1`, id)
	t, err := scanTournament(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return t, err
}

// Create inserts a new tournament; an existing id is a conflict
func (r *TournamentRepository) Create(ctx context.Context, q querier, t *domain.Tournament) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	err = checkAffected(q.Exec(ctx, `
		INSERT INTO tournaments (id, host_id, status, ttl, doc, version)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (id) DO NOTHING
	`, t.ID, t.HostID, t.Status, t.TTL, doc))
	if err != nil {
		return err
	}
	t.Version = 1
	return nil
}

// Update writes the document if nobody else wrote it since it was read
func (r *TournamentRepository) Update(ctx context.Context, q querier, t *domain.Tournament) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	err = checkAffected(q.Exec(ctx, `
		UPDATE tournaments
		SET host_id = $3, status = $4, ttl = $5, doc = $6, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
	`, t.ID, t.Version, t.HostID, t.Status, t.TTL, doc))
	if err != nil {
		return err
	}
	t.Version++
	return nil
}

// Delete removes the tournament at the version it was read
func (r *TournamentRepository) Delete(ctx context.Context, q querier, t *domain.Tournament) error {
	return checkAffected(q.Exec(ctx, `DELETE FROM tournaments WHERE id = $1 AND version = $2`, t.ID, t.Version))
}

// GetExpired returns tournaments whose ttl has elapsed, oldest first
func (r *TournamentRepository) GetExpired(ctx context.Context, q querier, now time.Time, limit int) ([]*domain.Tournament, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.Query(ctx, `
		SELECT doc, version FROM tournaments
		WHERE ttl IS NOT NULL AND ttl <= $1
		ORDER BY ttl ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTournaments(rows)
}

// GetWithoutTTL returns tournaments that were never given a ttl
func (r *TournamentRepository) GetWithoutTTL(ctx context.Context, q querier, limit int) ([]*domain.Tournament, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.Query(ctx, `
		SELECT doc, version FROM tournaments
		WHERE ttl IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTournaments(rows)
}

func scanTournament(row pgx.Row) (*domain.Tournament, error) {
	var (
		t       domain.Tournament
		doc     []byte
		version int64
	)
	if err := row.Scan(&doc, &version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, err
	}
	t.Version = version
	return &t, nil
}

func scanTournaments(rows pgx.Rows) ([]*domain.Tournament, error) {
	var result []*domain.Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
