package handlers

import (
	"net/http"
	"strconv"

	"tournament_market/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetWallet(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		unauthorized(c)
		return
	}
	w, err := h.Ledger.GetWalletBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tournament_credits": w.TournamentCredits,
		"host_credits":       w.HostCredits,
		"earnings":           w.Earnings,
	})
}

func (h *Handler) GetTransactions(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		unauthorized(c)
		return
	}
	txs, err := h.Ledger.Transactions(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

type withdrawRequest struct {
	Amount         int64  `json:"amount"`
	UPIDestination string `json:"upi_destination"`
}

// EstimateWithdrawal shows commission and net amount without debiting anything.
func (h *Handler) EstimateWithdrawal(c *gin.Context) {
	amount, err := strconv.ParseInt(c.Query("amount"), 10, 64)
	if err != nil || amount <= 0 {
		badRequest(c)
		return
	}
	c.JSON(http.StatusOK, h.Ledger.EstimateWithdrawal(amount))
}

func (h *Handler) RequestWithdrawal(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		unauthorized(c)
		return
	}
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	wr, err := h.Ledger.RequestWithdrawal(c.Request.Context(), userID, req.Amount, req.UPIDestination)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wr)
}

// ListPendingWithdrawals is the admin settlement queue.
func (h *Handler) ListPendingWithdrawals(c *gin.Context) {
	limit := 100
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	list, err := h.Ledger.PendingWithdrawals(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}

func (h *Handler) MarkWithdrawalDone(c *gin.Context) {
	wr, err := h.Ledger.MarkWithdrawalDone(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wr)
}

// VerifyLedger replays a user's ledger for support staff.
func (h *Handler) VerifyLedger(c *gin.Context) {
	mismatches, err := h.Ledger.VerifyLedger(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consistent": len(mismatches) == 0, "mismatches": mismatches})
}

// PaymentWebhook receives confirmed deposits from the payment gateway.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	var d service.Deposit
	if err := c.ShouldBindJSON(&d); err != nil {
		badRequest(c)
		return
	}
	w, err := h.Ledger.OnFundsReceived(c.Request.Context(), d)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":            w.UserID,
		"tournament_credits": w.TournamentCredits,
		"host_credits":       w.HostCredits,
	})
}
