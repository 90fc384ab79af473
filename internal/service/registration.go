package service

import (
	"context"
	"errors"
	"strings"

	"tournament_market/internal/domain"
	"tournament_market/internal/logger"
	"tournament_market/internal/metrics"
	"tournament_market/internal/notify"
	"tournament_market/internal/store"
)

// JoinRequest is one registration. For team modes the caller is the leader and Members lists
// the other players.
type JoinRequest struct {
	TournamentID string              `json:"tournament_id"`
	UserID       string              `json:"-"`
	CustomUID    string              `json:"custom_uid"`
	IGN          string              `json:"ign"`
	Members      []domain.TeamMember `json:"members"`
}

// teamMembers returns the full roster with the leader first, after checking the size rule.
func teamMembers(mode domain.Mode, leaderUID, leaderIGN string, others []domain.TeamMember) ([]domain.TeamMember, error) {
	rule, ok := mode.SizeRule()
	if !ok {
		return nil, domain.Errorf(domain.KindValidation, "unknown mode %q", mode)
	}
	size := 1 + len(others)
	if size < rule.Min || size > rule.Max {
		if rule.Min == rule.Max {
			return nil, domain.Errorf(domain.KindValidation, "%s teams need exactly %d players, got %d", mode, rule.Min, size)
		}
		return nil, domain.Errorf(domain.KindValidation, "%s teams need %d to %d players, got %d", mode, rule.Min, rule.Max, size)
	}

	roster := make([]domain.TeamMember, 0, size)
	roster = append(roster, domain.TeamMember{Role: domain.RoleLeader, UID: leaderUID, IGN: leaderIGN})
	seen := map[string]bool{leaderUID: true}
	for _, m := range others {
		m.UID = strings.TrimSpace(m.UID)
		m.IGN = strings.TrimSpace(m.IGN)
		if m.UID == "" || m.IGN == "" {
			return nil, domain.Errorf(domain.KindValidation, "every team member needs a uid and an ign")
		}
		if seen[m.UID] {
			return nil, domain.Errorf(domain.KindValidation, "player %s is listed twice", m.UID)
		}
		seen[m.UID] = true
		m.Role = domain.RoleMember
		roster = append(roster, m)
	}
	return roster, nil
}

// Join registers the caller. The entry fee debit, the team record and the tournament update commit
// together; a lost race re-runs everything from a fresh read.
func (s *TournamentService) Join(ctx context.Context, req JoinRequest) (*domain.Tournament, error) {
	req.CustomUID = strings.TrimSpace(req.CustomUID)
	req.IGN = strings.TrimSpace(req.IGN)
	if req.UserID == "" {
		return nil, domain.Errorf(domain.KindAuthorization, "user id is required")
	}
	if req.TournamentID == "" {
		return nil, domain.Errorf(domain.KindValidation, "tournament id is required")
	}
	if req.CustomUID == "" || req.IGN == "" {
		return nil, domain.Errorf(domain.KindValidation, "in-game uid and ign are required")
	}

	var (
		out  *domain.Tournament
		fee  *domain.CreditTransaction
		team *domain.Team
	)
	err := runTx(ctx, s.store, "join", 1+s.JoinRetries, func(ctx context.Context, tx store.Tx) error {
		fee, team = nil, nil
		t, err := loadTournament(ctx, tx, req.TournamentID)
		if err != nil {
			return err
		}

		var roster []domain.TeamMember
		if t.Mode.IsTeam() {
			if roster, err = teamMembers(t.Mode, req.CustomUID, req.IGN, req.Members); err != nil {
				return err
			}
		} else if len(req.Members) > 0 {
			return domain.Errorf(domain.KindValidation, "solo tournaments do not take team members")
		}

		if t.Status != domain.StatusActive {
			return domain.Errorf(domain.KindState, "registration is closed: tournament is %s", t.Status)
		}
		if t.IsFull() {
			return domain.Errorf(domain.KindCapacity, "tournament is full")
		}
		if t.HostID == req.UserID {
			return domain.Errorf(domain.KindValidation, "the host cannot join their own tournament")
		}
		if t.HasParticipant(req.UserID) {
			return domain.Errorf(domain.KindDuplicateParticipant, "you have already joined this tournament")
		}
		if err := checkGameUIDs(t, req.CustomUID, roster, ""); err != nil {
			return err
		}

		if t.EntryFee > 0 {
			fee, err = s.ledger.DebitTx(ctx, tx, Entry{
				UserID:  req.UserID,
				Wallet:  domain.WalletTournamentCredits,
				Type:    domain.TxTournamentJoin,
				Details: map[string]interface{}{"tournamentId": t.ID, "tournamentName": t.Name},
			}, t.EntryFee)
			if err != nil {
				return err
			}
			t.CurrentPrizePool += t.EntryFee
		}

		now := s.now()
		if t.Mode.IsTeam() {
			team = &domain.Team{
				ID:           newID(),
				TournamentID: t.ID,
				LeaderID:     req.UserID,
				Members:      roster,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.InsertTeam(ctx, team); err != nil {
				return err
			}
			t.Participants = append(t.Participants, domain.Participant{Kind: domain.ParticipantTeam, Team: team.Ref()})
		} else {
			t.Participants = append(t.Participants, domain.Participant{
				Kind:       domain.ParticipantIndividual,
				Individual: &domain.Individual{CustomUID: req.CustomUID, IGN: req.IGN, AuthUID: req.UserID},
			})
		}
		t.FilledSpots++
		t.UpdatedAt = now
		out = t
		return tx.UpdateTournament(ctx, t)
	})
	if err != nil {
		metrics.Joins.WithLabelValues(joinOutcome(err)).Inc()
		return nil, err
	}

	metrics.Joins.WithLabelValues("ok").Inc()
	s.ledger.Observe(ctx, fee)
	logger.WithContext(ctx).Info("player joined", "tournament_id", out.ID, "user_id", req.UserID, "filled_spots", out.FilledSpots)
	payload := map[string]any{
		"tournament_id": out.ID, "user_id": req.UserID, "filled_spots": out.FilledSpots, "max_players": out.MaxPlayers,
	}
	if team != nil {
		payload["team_id"] = team.ID
	}
	notify.Send(ctx, s.sink, notify.KindPlayerJoined, payload)
	return out, nil
}

// checkGameUIDs rejects in-game uids that another entry already registered. Winners are picked by
// in-game identity, so a reused uid would route a prize to the wrong account.
func checkGameUIDs(t *domain.Tournament, uid string, roster []domain.TeamMember, skipTeam string) error {
	uids := []string{uid}
	for _, m := range roster {
		if m.UID != uid {
			uids = append(uids, m.UID)
		}
	}
	for _, u := range uids {
		if t.GameUIDTaken(u, skipTeam) {
			return domain.Errorf(domain.KindDuplicateParticipant, "in-game uid %s is already registered in this tournament", u)
		}
	}
	return nil
}

func joinOutcome(err error) string {
	if k := domain.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

// UpdateTeam replaces the non-leader members of a team. Only the leader may do it and only while
// registration is open; the copy inside the tournament changes in the same unit of work.
func (s *TournamentService) UpdateTeam(ctx context.Context, teamID, actorID string, members []domain.TeamMember) (*domain.Team, error) {
	var out *domain.Team
	err := runTx(ctx, s.store, "update_team", defaultTxAttempts, func(ctx context.Context, tx store.Tx) error {
		team, err := tx.Team(ctx, teamID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.Errorf(domain.KindNotFound, "team %s not found", teamID)
		}
		if err != nil {
			return err
		}
		if team.LeaderID != actorID {
			return domain.Errorf(domain.KindAuthorization, "only the team leader can edit the team")
		}
		t, err := loadTournament(ctx, tx, team.TournamentID)
		if err != nil {
			return err
		}
		if err := requireStatus(t, domain.StatusActive, "edit a team of"); err != nil {
			return err
		}
		leader, ok := team.Leader()
		if !ok {
			return domain.Errorf(domain.KindState, "team %s has no leader", teamID)
		}
		roster, err := teamMembers(t.Mode, leader.UID, leader.IGN, members)
		if err != nil {
			return err
		}
		if err := checkGameUIDs(t, leader.UID, roster, team.ID); err != nil {
			return err
		}

		now := s.now()
		team.Members = roster
		team.UpdatedAt = now
		if err := tx.UpdateTeam(ctx, team); err != nil {
			return err
		}
		found := false
		for i, p := range t.Participants {
			if p.Kind == domain.ParticipantTeam && p.Team != nil && p.Team.TeamID == team.ID {
				t.Participants[i].Team = team.Ref()
				found = true
			}
		}
		if !found {
			return domain.Errorf(domain.KindNotFound, "team %s is not registered in tournament %s", team.ID, t.ID)
		}
		t.UpdatedAt = now
		out = team
		return tx.UpdateTournament(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	logger.WithContext(ctx).Info("team updated", "team_id", out.ID, "members", len(out.Members))
	return out, nil
}
