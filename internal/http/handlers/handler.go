package handlers

import (
	"errors"
	"net/http"

	"tournament_market/internal/domain"
	"tournament_market/internal/http/middleware"
	"tournament_market/internal/logger"
	"tournament_market/internal/service"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Tournaments *service.TournamentService
	Ledger      *service.Ledger
}

func NewHandler(tournaments *service.TournamentService, ledger *service.Ledger) *Handler {
	return &Handler{Tournaments: tournaments, Ledger: ledger}
}

// getUserID извлекает user_id из контекста Gin
func getUserID(c *gin.Context) (string, bool) {
	uid := c.GetString(middleware.ContextUserID)
	return uid, uid != ""
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case domain.KindState, domain.KindTooEarly, domain.KindCapacity, domain.KindDuplicateParticipant,
		domain.KindDuplicateWinner, domain.KindStaleCalculation, domain.KindConcurrency:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes a business error with its kind, or a generic 500 for anything else.
func respondError(c *gin.Context, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		body := gin.H{"error": de.Error(), "kind": de.Kind}
		if de.Kind == domain.KindTooEarly {
			body["minutes_remaining"] = de.MinutesRemaining
		}
		c.JSON(statusFor(de.Kind), body)
		return
	}
	logger.WithContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "kind": domain.KindValidation})
}
