package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestFortunaClient(t *testing.T, baseURL string) *FortunaClient {
	t.Helper()
	t.Setenv("FORTUNA_BASE_URL", baseURL)
	t.Setenv("FORTUNA_CLIENT_ID", "client")
	t.Setenv("FORTUNA_CLIENT_SECRET", "secret")
	c, err := NewFortunaClient(NewTokenCache())
	if err != nil {
		t.Fatalf("NewFortunaClient: %v", err)
	}
	c.retry.sleep = noSleep
	return c
}

func serveToken(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`))
}

func TestReserveBalancesRetriesTransientThenSucceeds(t *testing.T) {
	var dataCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			serveToken(w)
		case "/v1/reserves/balances":
			n := atomic.AddInt32(&dataCalls, 1)
			if n <= 2 {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"Code":"INTERNAL","Message":"upstream hiccup"}`))
				return
			}
			_, _ = w.Write([]byte(`[{"balanceDate":"2026-01-18","ES":"100","NonES":"50"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestFortunaClient(t, srv.URL)
	rows, err := c.ReserveBalances(context.Background(), "2026-01-16", "2026-01-18", "ACME")
	if err != nil {
		t.Fatalf("ReserveBalances: %v", err)
	}
	if got := atomic.LoadInt32(&dataCalls); got != 3 {
		t.Fatalf("expected 2 retries then success (3 calls), got %d", got)
	}
	if len(rows) != 1 || rows[0].BalanceDate != "2026-01-18" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestReserveBalancesRejectionReadsAsNoData(t *testing.T) {
	var dataCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			serveToken(w)
		default:
			atomic.AddInt32(&dataCalls, 1)
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"scope not permitted"}`))
		}
	}))
	defer srv.Close()

	c := newTestFortunaClient(t, srv.URL)
	rows, err := c.ReserveBalances(context.Background(), "2026-01-16", "2026-01-18", "ACME")
	if err != nil {
		t.Fatalf("4xx must not surface an error, got %v", err)
	}
	if rows != nil {
		t.Fatalf("4xx must read as no data, got %+v", rows)
	}
	if got := atomic.LoadInt32(&dataCalls); got != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", got)
	}
}

func TestEmptyResultDefectReadsAsEmptySlice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			serveToken(w)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"Code":"NO_RECORDS","Message":"No records found for the given range"}`))
		}
	}))
	defer srv.Close()

	c := newTestFortunaClient(t, srv.URL)
	rows, err := c.ExpensePayouts(context.Background(), "2026-01-16", "2026-01-18", "ACME")
	if err != nil {
		t.Fatalf("empty-result 500 must not be an error, got %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty slice, got %+v", rows)
	}
}

func TestTransientExhaustionSurfacesError(t *testing.T) {
	var dataCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			serveToken(w)
		default:
			atomic.AddInt32(&dataCalls, 1)
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"Code":"GATEWAY","Message":"bad gateway"}`))
		}
	}))
	defer srv.Close()

	c := newTestFortunaClient(t, srv.URL)
	_, err := c.PurchaseOrders(context.Background(), "2026-01-16", "2026-01-18", "ACME")
	if err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	if got := atomic.LoadInt32(&dataCalls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestNormalizeFortunaRows(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"flat array", `[{"a":1},{"a":2}]`, 2},
		{"Response envelope", `{"Response":[{"a":1}]}`, 1},
		{"Responses envelope", `{"Responses":[{"a":1},{"a":2},{"a":3}]}`, 3},
		{"empty object", `{}`, 0},
		{"null body", `null`, 0},
		{"empty body", ``, 0},
	}
	for _, tc := range cases {
		rows, err := normalizeFortunaRows([]byte(tc.body))
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(rows) != tc.want {
			t.Fatalf("%s: got %d rows, want %d", tc.name, len(rows), tc.want)
		}
	}
}

func TestReserveBalancesRefreshesExpiredToken(t *testing.T) {
	var tokenCalls, dataCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			n := atomic.AddInt32(&tokenCalls, 1)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":3600}`, n)
		case "/v1/reserves/balances":
			atomic.AddInt32(&dataCalls, 1)
			if r.Header.Get("Authorization") == "Bearer token-1" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"Code":"TOKEN_EXPIRED","Message":"access token expired"}`))
				return
			}
			_, _ = w.Write([]byte(`[{"balanceDate":"2026-01-18","ES":"100","NonES":"50"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestFortunaClient(t, srv.URL)
	rows, err := c.ReserveBalances(context.Background(), "2026-01-16", "2026-01-18", "ACME")
	if err != nil {
		t.Fatalf("ReserveBalances: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (an expired token must not read as no data)", len(rows))
	}
	if got := atomic.LoadInt32(&tokenCalls); got != 2 {
		t.Fatalf("token exchanges = %d, want 2", got)
	}
	if got := atomic.LoadInt32(&dataCalls); got != 2 {
		t.Fatalf("data calls = %d, want 2", got)
	}
}
