package repository

import (
	"context"
	"encoding/json"
	"errors"

	"tournament_market/internal/domain"
	"tournament_market/internal/store"

	"github.com/jackc/pgx/v5"
)

type TeamRepository struct{}

func NewTeamRepository() *TeamRepository {
	return &TeamRepository{}
}

// GetByID retrieves team by ID
func (r *TeamRepository) GetByID(ctx context.Context, q querier, id string) (*domain.Team, error) {
	var (
		team    domain.Team
		members []byte
	)
	err := q.QueryRow(ctx, `
		SELECT id, tournament_id, leader_id, members, version, created_at, updated_at
		FROM teams
		WHERE id = $1
	`, id).Scan(&team.ID, &team.TournamentID, &team.LeaderID, &members, &team.Version, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(members, &team.Members); err != nil {
		return nil, err
	}
	return &team, nil
}

// Create inserts a team
func (r *TeamRepository) Create(ctx context.Context, q querier, team *domain.Team) error {
	members, err := json.Marshal(team.Members)
	if err != nil {
		return err
	}
	err = checkAffected(q.Exec(ctx, `
		INSERT INTO teams (id, tournament_id, leader_id, members, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (id) DO NOTHING
	`, team.ID, team.TournamentID, team.LeaderID, members, team.CreatedAt))
	if err != nil {
		return err
	}
	team.Version = 1
	return nil
}

// Update replaces the member list at the version it was read
func (r *TeamRepository) Update(ctx context.Context, q querier, team *domain.Team) error {
	members, err := json.Marshal(team.Members)
	if err != nil {
		return err
	}
	err = checkAffected(q.Exec(ctx, `
		UPDATE teams SET members = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $2
	`, team.ID, team.Version, members, team.UpdatedAt))
	if err != nil {
		return err
	}
	team.Version++
	return nil
}

// DeleteByTournament removes every team registered for the tournament
func (r *TeamRepository) DeleteByTournament(ctx context.Context, q querier, tournamentID string) error {
	_, err := q.Exec(ctx, `DELETE FROM teams WHERE tournament_id = $1`, tournamentID)
	return err
}
