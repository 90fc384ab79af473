package http

import (
	"time"

	"tournament_market/internal/config"
	"tournament_market/internal/http/handlers"
	"tournament_market/internal/http/middleware"
	"tournament_market/internal/service"
	"tournament_market/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is everything the router needs.
type Deps struct {
	Config      *config.Config
	Tournaments *service.TournamentService
	Ledger      *service.Ledger
	Tokens      *service.Tokens
	Hub         *ws.Hub
	Limiter     *middleware.RateLimiter
	Health      *handlers.HealthHandler
}

// moneyRateLimit bounds money-moving calls per user regardless of the general API limit.
const (
	moneyRateLimit  = 20
	moneyRateWindow = time.Minute
)

func RegisterRoutes(r *gin.Engine, d Deps) {
	h := handlers.NewHandler(d.Tournaments, d.Ledger)
	cfg := d.Config
	limiter := d.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil)
	}

	r.Use(middleware.Metrics(), middleware.RequestLogger())

	// Health checks (no rate limiting)
	r.GET("/health", d.Health.Health)
	r.GET("/healthz", d.Health.Liveness)
	r.GET("/readyz", d.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Payment gateway callback
	r.POST("/webhooks/payments", middleware.WebhookToken(cfg.PaymentWebhookToken), h.PaymentWebhook)

	auth := middleware.JWT(d.Tokens)
	money := limiter.PerUser(moneyRateLimit, moneyRateWindow)

	v1 := r.Group("/api/v1")
	v1.Use(limiter.PerIP(cfg.APIRateLimit, cfg.APIRateWindow))
	{
		v1.GET("/tournaments/:id", h.GetTournament)

		v1.POST("/tournaments", auth, money, h.CreateTournament)
		v1.POST("/tournaments/:id/join", auth, money, h.JoinTournament)
		v1.POST("/tournaments/:id/start", auth, h.StartTournament)
		v1.POST("/tournaments/:id/end", auth, h.EndTournament)
		v1.POST("/tournaments/:id/cancel", auth, money, h.CancelTournament)
		v1.POST("/tournaments/:id/winners/preview", auth, h.AssignWinner)
		v1.POST("/tournaments/:id/winners/confirm", auth, money, h.ConfirmDistribution)
		v1.POST("/tournaments/:id/host-earnings", auth, money, h.CollectHostEarnings)
		v1.PUT("/teams/:teamId", auth, h.UpdateTeam)

		v1.GET("/wallet", auth, h.GetWallet)
		v1.GET("/wallet/transactions", auth, h.GetTransactions)
		v1.GET("/wallet/withdraw/estimate", auth, h.EstimateWithdrawal)
		v1.POST("/wallet/withdraw", auth, money, h.RequestWithdrawal)

		admin := v1.Group("/admin", auth, middleware.Admin(cfg.IsAdmin))
		admin.GET("/withdrawals", h.ListPendingWithdrawals)
		admin.POST("/withdrawals/:id/done", h.MarkWithdrawalDone)
		admin.GET("/ledger/:userId/verify", h.VerifyLedger)
	}

	// Live tournament events
	if d.Hub != nil {
		r.GET("/ws", ws.HandleWS(d.Hub, d.Tokens, cfg.AllowedOrigin))
	}
}
