package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestZanalyticsClient(t *testing.T, baseURL string) *ZanalyticsClient {
	t.Helper()
	t.Setenv("ZANALYTICS_BASE_URL", baseURL)
	t.Setenv("ZANALYTICS_CLIENT_ID", "client")
	t.Setenv("ZANALYTICS_CLIENT_SECRET", "secret")
	t.Setenv("ZANALYTICS_REFRESH_TOKEN", "refresh")
	t.Setenv("ZANALYTICS_WORKSPACE_ID", "ws1")
	c, err := NewZanalyticsClient(NewTokenCache())
	if err != nil {
		t.Fatalf("NewZanalyticsClient: %v", err)
	}
	c.retry.sleep = noSleep
	c.sleep = noSleep
	return c
}

func TestExportViewRowsPollsUntilCompleted(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/oauth/v2/token":
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
		case r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/views/sales/data"):
			_, _ = w.Write([]byte(`{"data":{"jobId":"job-7"}}`))
		case strings.HasSuffix(r.URL.Path, "/exportjobs/job-7"):
			n := atomic.AddInt32(&polls, 1)
			if n < 3 {
				_, _ = w.Write([]byte(`{"data":{"jobId":"job-7","status":"running"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"data":{"jobId":"job-7","status":"completed"}}`))
		case strings.HasSuffix(r.URL.Path, "/exportjobs/job-7/data"):
			_, _ = w.Write([]byte(`{"data":[{"entityCode":"ACME"},{"entityCode":"GLOBX"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestZanalyticsClient(t, srv.URL)
	rows, err := c.ExportViewRows(context.Background(), "sales", "2026-01-16", "2026-01-18")
	if err != nil {
		t.Fatalf("ExportViewRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if atomic.LoadInt32(&polls) != 3 {
		t.Fatalf("expected 3 polls, got %d", polls)
	}
}

func TestExportViewRowsNotReadyErrorCodeKeepsPolling(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/oauth/v2/token":
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
		case r.Method == http.MethodPost:
			_, _ = w.Write([]byte(`{"data":{"jobId":"job-9"}}`))
		case strings.HasSuffix(r.URL.Path, "/exportjobs/job-9"):
			n := atomic.AddInt32(&polls, 1)
			if n == 1 {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"errorCode":7389,"message":"job not started"}`))
				return
			}
			_, _ = w.Write([]byte(`{"data":{"jobId":"job-9","status":"completed"}}`))
		case strings.HasSuffix(r.URL.Path, "/exportjobs/job-9/data"):
			_, _ = w.Write([]byte(`{"data":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestZanalyticsClient(t, srv.URL)
	rows, err := c.ExportViewRows(context.Background(), "sales", "2026-01-16", "2026-01-18")
	if err != nil {
		t.Fatalf("ExportViewRows: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want 0", len(rows))
	}
	if atomic.LoadInt32(&polls) != 2 {
		t.Fatalf("expected not-ready then completed (2 polls), got %d", polls)
	}
}

func TestExportViewRowsFailedJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/oauth/v2/token":
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
		case r.Method == http.MethodPost:
			_, _ = w.Write([]byte(`{"data":{"jobId":"job-3"}}`))
		default:
			_, _ = w.Write([]byte(`{"data":{"jobId":"job-3","status":"failed","reason":"view too large"}}`))
		}
	}))
	defer srv.Close()

	c := newTestZanalyticsClient(t, srv.URL)
	_, err := c.ExportViewRows(context.Background(), "sales", "2026-01-16", "2026-01-18")
	var failed *JobFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected JobFailedError, got %v", err)
	}
	if failed.Reason != "view too large" {
		t.Fatalf("unexpected reason %q", failed.Reason)
	}
}

func TestExportViewRowsTimesOutAfterBudget(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/oauth/v2/token":
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
		case r.Method == http.MethodPost:
			_, _ = w.Write([]byte(`{"data":{"jobId":"job-5"}}`))
		default:
			atomic.AddInt32(&polls, 1)
			_, _ = w.Write([]byte(`{"data":{"jobId":"job-5","status":"running"}}`))
		}
	}))
	defer srv.Close()

	c := newTestZanalyticsClient(t, srv.URL)
	c.maxPolls = 5
	_, err := c.ExportViewRows(context.Background(), "sales", "2026-01-16", "2026-01-18")
	var timeout *JobTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected JobTimeoutError, got %v", err)
	}
	if atomic.LoadInt32(&polls) != 5 {
		t.Fatalf("expected exactly maxPolls polls, got %d", polls)
	}
}

func TestViewRowsRejectionReadsAsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v2/token" {
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorCode":100,"message":"view not found"}`))
	}))
	defer srv.Close()

	c := newTestZanalyticsClient(t, srv.URL)
	rows, err := c.ViewRows(context.Background(), "missing", "2026-01-16", "2026-01-18")
	if err != nil {
		t.Fatalf("4xx must not surface an error, got %v", err)
	}
	if rows != nil {
		t.Fatalf("expected no data, got %+v", rows)
	}
}

func TestViewRowsRefreshesExpiredToken(t *testing.T) {
	var tokenCalls, dataCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/oauth/v2/token":
			n := atomic.AddInt32(&tokenCalls, 1)
			fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":3600}`, n)
		case strings.Contains(r.URL.Path, "/views/reservations/data"):
			atomic.AddInt32(&dataCalls, 1)
			if r.Header.Get("Authorization") == "Zoho-oauthtoken tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"errorCode":8016,"message":"token expired"}`))
				return
			}
			_, _ = w.Write([]byte(`{"data":[{"projectName":"Riverside"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestZanalyticsClient(t, srv.URL)
	rows, err := c.ViewRows(context.Background(), "reservations", "2026-01-16", "2026-01-18")
	if err != nil {
		t.Fatalf("ViewRows: %v", err)
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
