package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// SocialpulseClient pulls per-profile social-media insights. Unlike the
// other providers it authenticates with a static API key header, so there
// is no token lifecycle to manage.
type SocialpulseClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	retry     RetryPolicy
}

func NewSocialpulseClient() (*SocialpulseClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("SOCIALPULSE_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.socialpulse.io"
	}
	apiKey := strings.TrimSpace(os.Getenv("SOCIALPULSE_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("socialpulse api key is empty")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("SOCIALPULSE_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	return &SocialpulseClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		retry:     DefaultRetryPolicy(),
	}, nil
}

func (c *SocialpulseClient) Provider() string { return "socialpulse" }

// SocialpulseInsightRow is one day of metrics for one platform.
type SocialpulseInsightRow struct {
	Platform    string `json:"platform"`
	InsightDate string `json:"date"`
	Followers   int64  `json:"followers"`
	Impressions int64  `json:"impressions"`
	Engagements int64  `json:"engagements"`
}

// Insights fetches the date-ranged metric rows for one profile. 4xx reads
// as "no data"; a transient failure surviving the retry budget is returned
// so the orchestrator can record it for the slice.
func (c *SocialpulseClient) Insights(ctx context.Context, profileCode, fromDate, toDate string) ([]SocialpulseInsightRow, error) {
	params := url.Values{}
	params.Set("profile", profileCode)
	params.Set("from", fromDate)
	params.Set("to", toDate)
	endpoint := c.baseURL + "/v1/insights?" + params.Encode()

	var rows []SocialpulseInsightRow
	retryErr := c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set(c.apiKeyHdr, c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return &TransientError{Provider: c.Provider(), Err: err}
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			rows = nil
			if err := json.Unmarshal(body, &rows); err != nil {
				return err
			}
			return nil
		case resp.StatusCode >= 500:
			return &TransientError{Provider: c.Provider(), StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
		default:
			return &RejectedError{Provider: c.Provider(), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
	})
	if retryErr != nil {
		var rejected *RejectedError
		if errors.As(retryErr, &rejected) {
			return nil, nil
		}
		return nil, retryErr
	}
	if rows == nil {
		rows = []SocialpulseInsightRow{}
	}
	return rows, nil
}
