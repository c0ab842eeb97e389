package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"HeadToHead/internal/core"
	"HeadToHead/internal/observability"
	"HeadToHead/internal/query"
	"HeadToHead/internal/store"
)

const testAdminToken = "test-admin-token"

var testAdmin = uuid.MustParse("00000000-0000-0000-0000-00000000a001")

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := core.Config{
		Admin:                testAdmin,
		Currency:             "USDC",
		BetSize:              1_000_000,
		WinThresholdPercent:  5,
		JoinThresholdPercent: 2,
		ThresholdDecimals:    0,
	}

	engine, err := core.NewEngine(
		cfg, 100_000, 3,
		store.NewMemAllocator(0),
		make(chan core.Output, 1024), nil, nil,
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	health := observability.NewHealthChecker()
	health.SetReady(true)

	return NewServer(engine, query.NewService(engine, nil), health, testAdminToken, nil)
}

func doJSON(t *testing.T, s *Server, method, path string, player *uuid.UUID, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if player != nil {
		req.Header.Set("X-Player-ID", player.String())
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()

	return resp, data
}

func mustStatus(t *testing.T, resp *http.Response, body []byte, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status %d, want %d (body: %s)", resp.StatusCode, want, body)
	}
}

func depositFor(t *testing.T, s *Server, player uuid.UUID, amount int64) {
	t.Helper()
	resp, body := doJSON(t, s, "POST", "/api/deposit", &player, map[string]int64{"amount": amount})
	mustStatus(t, resp, body, http.StatusOK)
}

func adminAppendPrice(t *testing.T, s *Server, price uint64) {
	t.Helper()

	data, _ := json.Marshal(map[string]uint64{"price": price})
	req := httptest.NewRequest("POST", "/admin/prices", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", testAdminToken)

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("admin append price: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("admin append price status %d (body: %s)", resp.StatusCode, body)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp, body := doJSON(t, s, "GET", "/healthz", nil, nil)
	mustStatus(t, resp, body, http.StatusOK)

	resp, body = doJSON(t, s, "GET", "/readyz", nil, nil)
	mustStatus(t, resp, body, http.StatusOK)
}

func TestDepositAndBalance(t *testing.T) {
	s := newTestServer(t)
	player := uuid.New()

	depositFor(t, s, player, 3_000_000)

	resp, body := doJSON(t, s, "GET", "/api/balance", &player, nil)
	mustStatus(t, resp, body, http.StatusOK)

	var balance query.BalanceResponse
	if err := json.Unmarshal(body, &balance); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if balance.Available != 3_000_000 || balance.Asset != "USDC" {
		t.Fatalf("unexpected balance: %+v", balance)
	}
}

func TestMissingPlayerHeader(t *testing.T) {
	s := newTestServer(t)

	resp, body := doJSON(t, s, "POST", "/api/deposit", nil, map[string]int64{"amount": 100})
	mustStatus(t, resp, body, http.StatusBadRequest)
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	host := uuid.New()
	opponent := uuid.New()

	depositFor(t, s, host, 1_000_000)
	depositFor(t, s, opponent, 1_000_000)

	// Host opens a game predicting the price rises.
	resp, body := doJSON(t, s, "POST", "/api/games", &host, map[string]string{"prediction": "up"})
	mustStatus(t, resp, body, http.StatusCreated)

	var created query.GameResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.Index != 0 || created.Status != "Open" {
		t.Fatalf("unexpected game: %+v", created)
	}

	// Opponent joins.
	resp, body = doJSON(t, s, "POST", "/api/games/0/join", &opponent, nil)
	mustStatus(t, resp, body, http.StatusOK)

	var joined query.GameResponse
	if err := json.Unmarshal(body, &joined); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if joined.Status != "Matched" {
		t.Fatalf("expected Matched, got %s", joined.Status)
	}

	// Claim before the threshold crossing conflicts.
	resp, body = doJSON(t, s, "POST", "/api/games/0/claim", &host, nil)
	mustStatus(t, resp, body, http.StatusConflict)

	// Price crosses the 5% win threshold upward; host wins.
	adminAppendPrice(t, s, 105_000)

	resp, body = doJSON(t, s, "POST", "/api/games/0/claim", &host, nil)
	mustStatus(t, resp, body, http.StatusOK)

	var resolved query.GameResponse
	if err := json.Unmarshal(body, &resolved); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resolved.Status != "Resolved" || resolved.Result == nil || !*resolved.Result {
		t.Fatalf("unexpected resolution: %+v", resolved)
	}

	resp, body = doJSON(t, s, "GET", "/api/balance", &host, nil)
	mustStatus(t, resp, body, http.StatusOK)
	var balance query.BalanceResponse
	if err := json.Unmarshal(body, &balance); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if balance.Available != 2_000_000 {
		t.Fatalf("winner balance %d, want 2000000", balance.Available)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)
	host := uuid.New()
	outsider := uuid.New()

	depositFor(t, s, host, 1_000_000)

	// Unknown game.
	resp, body := doJSON(t, s, "POST", "/api/games/42/join", &host, nil)
	mustStatus(t, resp, body, http.StatusNotFound)

	_, body = doJSON(t, s, "POST", "/api/games", &host, map[string]string{"prediction": "up"})
	var created query.GameResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	path := fmt.Sprintf("/api/games/%d", created.Index)

	// Host cannot join their own game.
	resp, body = doJSON(t, s, "POST", path+"/join", &host, nil)
	mustStatus(t, resp, body, http.StatusConflict)

	// Unfunded opponent.
	resp, body = doJSON(t, s, "POST", path+"/join", &outsider, nil)
	mustStatus(t, resp, body, http.StatusBadRequest)

	// Outsider cannot withdraw someone else's game.
	resp, body = doJSON(t, s, "POST", path+"/withdraw", &outsider, nil)
	mustStatus(t, resp, body, http.StatusForbidden)

	// Bad prediction value.
	resp, body = doJSON(t, s, "POST", "/api/games", &host, map[string]string{"prediction": "sideways"})
	mustStatus(t, resp, body, http.StatusBadRequest)
}

func TestListGamesWithStatusFilter(t *testing.T) {
	s := newTestServer(t)
	host := uuid.New()

	depositFor(t, s, host, 2_000_000)

	doJSON(t, s, "POST", "/api/games", &host, map[string]string{"prediction": "up"})
	doJSON(t, s, "POST", "/api/games", &host, map[string]string{"prediction": "down"})
	doJSON(t, s, "POST", "/api/games/1/withdraw", &host, nil)

	resp, body := doJSON(t, s, "GET", "/api/games?status=open", nil, nil)
	mustStatus(t, resp, body, http.StatusOK)

	var open []query.GameResponse
	if err := json.Unmarshal(body, &open); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(open) != 1 || open[0].Index != 0 {
		t.Fatalf("unexpected open games: %+v", open)
	}

	resp, body = doJSON(t, s, "GET", "/api/games?status=bogus", nil, nil)
	mustStatus(t, resp, body, http.StatusBadRequest)
}

func TestAdminGuard(t *testing.T) {
	s := newTestServer(t)

	data, _ := json.Marshal(map[string]uint64{"price": 101_000})
	req := httptest.NewRequest("POST", "/admin/prices", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", "wrong-token")

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestGetPricesAndEscrow(t *testing.T) {
	s := newTestServer(t)
	host := uuid.New()

	depositFor(t, s, host, 1_000_000)
	doJSON(t, s, "POST", "/api/games", &host, map[string]string{"prediction": "up"})
	adminAppendPrice(t, s, 101_000)

	resp, body := doJSON(t, s, "GET", "/api/prices", nil, nil)
	mustStatus(t, resp, body, http.StatusOK)
	var prices query.PriceSeriesResponse
	if err := json.Unmarshal(body, &prices); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(prices.Prices) != 2 || prices.Decimals != 3 {
		t.Fatalf("unexpected prices: %+v", prices)
	}

	resp, body = doJSON(t, s, "GET", "/api/escrow", nil, nil)
	mustStatus(t, resp, body, http.StatusOK)
	var esc query.EscrowResponse
	if err := json.Unmarshal(body, &esc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if esc.Vaulted != 1_000_000 {
		t.Fatalf("vaulted %d, want 1000000", esc.Vaulted)
	}
}
