package handlers

import (
	"context"
	"net/http"

	"tournament_market/internal/domain"
	"tournament_market/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateTournament opens a tournament hosted by the caller.
func (h *Handler) CreateTournament(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		unauthorized(c)
		return
	}
	var req service.CreateParams
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	t, err := h.Tournaments.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTournament(c *gin.Context) {
	t, err := h.Tournaments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tournament": t.Redacted(), "prizes": service.Breakdown(t)})
}

type joinRequest struct {
	CustomUID string              `json:"custom_uid"`
	IGN       string              `json:"ign"`
	Members   []domain.TeamMember `json:"members"`
}

func (h *Handler) JoinTournament(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		unauthorized(c)
		return
	}
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	t, err := h.Tournaments.Join(c.Request.Context(), service.JoinRequest{
		TournamentID: c.Param("id"),
		UserID:       userID,
		CustomUID:    req.CustomUID,
		IGN:          req.IGN,
		Members:      req.Members,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tournament_id": t.ID, "filled_spots": t.FilledSpots, "max_players": t.MaxPlayers})
}

func (h *Handler) StartTournament(c *gin.Context) {
	h.transition(c, h.Tournaments.Start)
}

func (h *Handler) EndTournament(c *gin.Context) {
	h.transition(c, h.Tournaments.End)
}

func (h *Handler) CancelTournament(c *gin.Context) {
	h.transition(c, h.Tournaments.Cancel)
}

func (h *Handler) transition(c *gin.Context, op func(ctx context.Context, id, actor string) (*domain.Tournament, error)) {
	userID, ok := getUserID(c)
	if !ok {
		unauthorized(c)
		return
	}
	t, err := op(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tournament_id": t.ID, "status": t.Status, "ttl": t.TTL})
}

type updateTeamRequest struct {
	Members []domain.TeamMember `json:"members"`
}

func (h *Handler) UpdateTeam(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		unauthorized(c)
		return
	}
	var req updateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	team, err := h.Tournaments.UpdateTeam(c.Request.Context(), c.Param("teamId"), userID, req.Members)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

// AssignWinner previews the payout for a position.
func (h *Handler) AssignWinner(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		unauthorized(c)
		return
	}
	var a service.Assignment
	if err := c.ShouldBindJSON(&a); err != nil {
		badRequest(c)
		return
	}
	preview, err := h.Tournaments.AssignWinner(c.Request.Context(), c.Param("id"), userID, a)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// ConfirmDistribution pays the previewed amount.
func (h *Handler) ConfirmDistribution(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		unauthorized(c)
		return
	}
	var a service.Assignment
	if err := c.ShouldBindJSON(&a); err != nil {
		badRequest(c)
		return
	}
	winner, err := h.Tournaments.ConfirmDistribution(c.Request.Context(), c.Param("id"), userID, a)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": a.Position, "winner": winner})
}

func (h *Handler) CollectHostEarnings(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		unauthorized(c)
		return
	}
	amount, err := h.Tournaments.CollectHostEarnings(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": amount})
}
