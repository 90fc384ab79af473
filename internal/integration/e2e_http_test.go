package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tournament_market/internal/config"
	"tournament_market/internal/domain"
	httpServer "tournament_market/internal/http"
	"tournament_market/internal/http/handlers"
	"tournament_market/internal/notify"
	"tournament_market/internal/service"
	"tournament_market/internal/store"

	"github.com/gin-gonic/gin"
)

type app struct {
	t      *testing.T
	router *gin.Engine
	tokens *service.Tokens
	ledger *service.Ledger
	now    time.Time
}

func newApp(t *testing.T, st store.Store) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	a := &app{t: t, now: time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return a.now }

	tokens, err := service.NewTokens("test-secret", clock)
	if err != nil {
		t.Fatal(err)
	}
	sink := notify.NewRecorder(256)
	a.ledger = service.NewLedger(st, sink, clock)
	tournaments := service.NewTournamentService(st, a.ledger, sink, clock)

	cfg := &config.Config{
		AdminUserIDs:        []string{"admin"},
		PaymentWebhookToken: "hook-secret",
		APIRateLimit:        1000,
		APIRateWindow:       time.Minute,
	}
	a.router = gin.New()
	httpServer.RegisterRoutes(a.router, httpServer.Deps{
		Config:      cfg,
		Tournaments: tournaments,
		Ledger:      a.ledger,
		Tokens:      tokens,
		Health:      handlers.NewHealthHandler("test", handlers.Dependency{Name: "store", Ping: st.Ping, Required: true}),
	})
	a.tokens = tokens
	return a
}

func (a *app) do(method, path, user string, body any, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		tok, err := a.tokens.Generate(user)
		if err != nil {
			a.t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if path == "/webhooks/payments" {
		req.Header.Set("X-Webhook-Token", "hook-secret")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code
}

type apiError struct {
	Error            string           `json:"error"`
	Kind             domain.ErrorKind `json:"kind"`
	MinutesRemaining int              `json:"minutes_remaining"`
}

func TestTournamentFlowOverHTTP(t *testing.T) {
	a := newApp(t, store.NewMemory())

	var created domain.Tournament
	code := a.do(http.MethodPost, "/api/v1/tournaments", "host", service.CreateParams{
		Name: "Evening Cup", Mode: domain.ModeSolo, MaxPlayers: 2, EntryFee: 100,
		PrizeDistribution: map[string]int{"first": 80},
		ScheduledStart:    a.now.Add(time.Hour),
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("create: %d", code)
	}

	for _, p := range []string{"p1", "p2"} {
		code := a.do(http.MethodPost, "/webhooks/payments", "", service.Deposit{
			UserID: p, PackageType: "tournament", Credits: 100, PaymentID: "pay-" + p,
		}, nil)
		if code != http.StatusOK {
			t.Fatalf("deposit %s: %d", p, code)
		}
		code = a.do(http.MethodPost, "/api/v1/tournaments/"+created.ID+"/join", p,
			map[string]string{"custom_uid": "g-" + p, "ign": "ign-" + p}, nil)
		if code != http.StatusOK {
			t.Fatalf("join %s: %d", p, code)
		}
	}

	var public struct {
		Tournament domain.Tournament `json:"tournament"`
	}
	if code := a.do(http.MethodGet, "/api/v1/tournaments/"+created.ID, "", nil, &public); code != http.StatusOK {
		t.Fatalf("get: %d", code)
	}
	if len(public.Tournament.Participants) != 2 {
		t.Fatalf("expected 2 public entries, got %d", len(public.Tournament.Participants))
	}
	for _, p := range public.Tournament.Participants {
		if p.Individual == nil || p.Individual.CustomUID == "" || p.AuthUID() != "" {
			t.Fatalf("public view must keep in-game ids and hide accounts: %+v", p.Individual)
		}
	}

	var e apiError
	code = a.do(http.MethodPost, "/api/v1/tournaments/"+created.ID+"/join", "p3",
		map[string]string{"custom_uid": "g-p3", "ign": "ign-p3"}, &e)
	if code != http.StatusConflict || e.Kind != domain.KindCapacity {
		t.Fatalf("expected capacity conflict, got %d %+v", code, e)
	}

	code = a.do(http.MethodPost, "/api/v1/tournaments/"+created.ID+"/start", "host", nil, &e)
	if code != http.StatusConflict || e.Kind != domain.KindTooEarly || e.MinutesRemaining != 40 {
		t.Fatalf("expected too early with 40 minutes, got %d %+v", code, e)
	}
	code = a.do(http.MethodPost, "/api/v1/tournaments/"+created.ID+"/start", "p1", nil, &e)
	if code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-host, got %d", code)
	}

	a.now = a.now.Add(40 * time.Minute)
	if code := a.do(http.MethodPost, "/api/v1/tournaments/"+created.ID+"/start", "host", nil, nil); code != http.StatusOK {
		t.Fatalf("start: %d", code)
	}
	if code := a.do(http.MethodPost, "/api/v1/tournaments/"+created.ID+"/end", "host", nil, nil); code != http.StatusOK {
		t.Fatalf("end: %d", code)
	}

	var preview service.WinnerPreview
	pick := service.Assignment{Position: "first", UID: "g-p2", IGN: "ign-p2"}
	if code := a.do(http.MethodPost, "/api/v1/tournaments/"+created.ID+"/winners/preview", "host", pick, &preview); code != http.StatusOK {
		t.Fatalf("preview: %d", code)
	}
	if preview.Amount != 160 || preview.AuthUID != "p2" {
		t.Fatalf("unexpected preview %+v", preview)
	}
	pick.Amount = preview.Amount
	if code := a.do(http.MethodPost, "/api/v1/tournaments/"+created.ID+"/winners/confirm", "host", pick, nil); code != http.StatusOK {
		t.Fatalf("confirm: %d", code)
	}

	var earned struct{ Amount int64 }
	if code := a.do(http.MethodPost, "/api/v1/tournaments/"+created.ID+"/host-earnings", "host", nil, &earned); code != http.StatusOK || earned.Amount != 40 {
		t.Fatalf("host earnings: %d %+v", code, earned)
	}

	var wr domain.WithdrawalRequest
	code = a.do(http.MethodPost, "/api/v1/wallet/withdraw", "p2", map[string]any{"amount": 150, "upi_destination": "p2@upi"}, &wr)
	if code != http.StatusCreated || wr.Commission != 6 || wr.FinalAmount != 144 {
		t.Fatalf("withdraw: %d %+v", code, wr)
	}
	if code := a.do(http.MethodPost, "/api/v1/admin/withdrawals/"+wr.ID+"/done", "p2", nil, nil); code != http.StatusForbidden {
		t.Fatalf("non-admin settled a withdrawal: %d", code)
	}
	if code := a.do(http.MethodPost, "/api/v1/admin/withdrawals/"+wr.ID+"/done", "admin", nil, nil); code != http.StatusOK {
		t.Fatalf("mark done: %d", code)
	}

	var bal map[string]int64
	a.do(http.MethodGet, "/api/v1/wallet", "p2", nil, &bal)
	if bal["earnings"] != 16 || bal["tournament_credits"] != 0 {
		t.Fatalf("unexpected wallet %+v", bal)
	}

	var verify struct{ Consistent bool }
	for _, u := range []string{"p1", "p2", "host"} {
		a.do(http.MethodGet, "/api/v1/admin/ledger/"+u+"/verify", "admin", nil, &verify)
		if !verify.Consistent {
			t.Fatalf("ledger of %s inconsistent", u)
		}
	}
}

func TestInsufficientFundsOverHTTP(t *testing.T) {
	a := newApp(t, store.NewMemory())
	var created domain.Tournament
	a.do(http.MethodPost, "/api/v1/tournaments", "host", service.CreateParams{
		Name: "Cup", Mode: domain.ModeSolo, MaxPlayers: 4, EntryFee: 100,
		PrizeDistribution: map[string]int{"first": 100}, ScheduledStart: a.now.Add(time.Hour),
	}, &created)

	if _, err := a.ledger.Credit(context.Background(), "poor", domain.WalletTournamentCredits, 50, domain.TxPurchase, nil); err != nil {
		t.Fatal(err)
	}
	var e apiError
	code := a.do(http.MethodPost, "/api/v1/tournaments/"+created.ID+"/join", "poor",
		map[string]string{"custom_uid": "x", "ign": "y"}, &e)
	if code != http.StatusPaymentRequired || e.Kind != domain.KindInsufficientFunds {
		t.Fatalf("expected 402, got %d %+v", code, e)
	}
	if code := a.do(http.MethodPost, "/api/v1/tournaments/"+created.ID+"/join", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := a.do(http.MethodGet, "/api/v1/tournaments/missing", "", nil, &e); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}
