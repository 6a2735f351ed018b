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

// ZanalyticsClient talks to the Z-Analytics reporting workspace that backs
// sales collections and revenue reservations. Small result sets come back
// from a synchronous view read; large ones go through an asynchronous
// export job that is created once and then polled until the workspace
// reports completion.
type ZanalyticsClient struct {
	baseURL      string
	clientId     string
	clientSecret string
	refreshToken string
	workspaceId  string
	http         *http.Client
	tokens       *TokenCache
	retry        RetryPolicy

	pollInterval time.Duration
	maxPolls     int
	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewZanalyticsClient(tokens *TokenCache) (*ZanalyticsClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("ZANALYTICS_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://analytics.zserv.io"
	}
	clientId := strings.TrimSpace(os.Getenv("ZANALYTICS_CLIENT_ID"))
	clientSecret := strings.TrimSpace(os.Getenv("ZANALYTICS_CLIENT_SECRET"))
	refreshToken := strings.TrimSpace(os.Getenv("ZANALYTICS_REFRESH_TOKEN"))
	workspaceId := strings.TrimSpace(os.Getenv("ZANALYTICS_WORKSPACE_ID"))
	if clientId == "" || clientSecret == "" || refreshToken == "" {
		return nil, errors.New("zanalytics credentials are empty")
	}
	if workspaceId == "" {
		return nil, errors.New("zanalytics workspace id is empty")
	}
	if tokens == nil {
		tokens = NewTokenCache()
	}
	return &ZanalyticsClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientId:     clientId,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		workspaceId:  workspaceId,
		http:         &http.Client{Timeout: 30 * time.Second},
		tokens:       tokens,
		retry:        DefaultRetryPolicy(),
		pollInterval: 2 * time.Second,
		maxPolls:     30,
		sleep:        sleepCtx,
	}, nil
}

func (c *ZanalyticsClient) Provider() string { return "zanalytics" }

type zanalyticsTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *ZanalyticsClient) Exchange(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.refreshToken)
	form.Set("client_id", c.clientId)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/v2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed zanalyticsTokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, err
	}
	if parsed.AccessToken == "" {
		return "", 0, errors.New("token endpoint returned empty access_token")
	}
	expiresIn := parsed.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return parsed.AccessToken, time.Duration(expiresIn) * time.Second, nil
}

type zanalyticsDataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type zanalyticsJobInfo struct {
	JobId  string `json:"jobId"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type zanalyticsErrorBody struct {
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
}

// jobNotReadyCode reports whether an error response is the workspace's
// "job not yet started / not yet completed" signal, which is a normal
// continue-polling state rather than a failure.
func jobNotReadyCode(code int) bool {
	return code == 7389 || code == 8535
}

// get replays once on 401: a cached token the workspace already expired
// must trigger a fresh exchange, not surface as an empty result.
func (c *ZanalyticsClient) get(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	body, status, err := c.getOnce(ctx, path, params)
	if err != nil || status != http.StatusUnauthorized {
		return body, status, err
	}
	c.tokens.Invalidate(c.Provider())
	return c.getOnce(ctx, path, params)
}

func (c *ZanalyticsClient) getOnce(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	token, err := c.tokens.Token(ctx, c)
	if err != nil {
		return nil, 0, err
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, &TransientError{Provider: c.Provider(), Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return body, resp.StatusCode, nil
}

// ViewRows reads a view synchronously; used for small result sets
// (revenue reservations). The retry/no-data contract matches Fortuna's.
func (c *ZanalyticsClient) ViewRows(ctx context.Context, viewId, fromDate, toDate string) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("fromDate", fromDate)
	params.Set("toDate", toDate)
	path := fmt.Sprintf("/api/v2/workspaces/%s/views/%s/data", c.workspaceId, viewId)

	var rows []json.RawMessage
	retryErr := c.retry.Do(ctx, func() error {
		body, status, err := c.get(ctx, path, params)
		if err != nil {
			return err
		}
		switch {
		case status >= 200 && status < 300:
			var envelope zanalyticsDataEnvelope
			if err := json.Unmarshal(body, &envelope); err != nil {
				return err
			}
			rows = nil
			if len(envelope.Data) > 0 {
				if err := json.Unmarshal(envelope.Data, &rows); err != nil {
					return err
				}
			}
			return nil
		case status >= 500:
			return &TransientError{Provider: c.Provider(), StatusCode: status, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
		default:
			return &RejectedError{Provider: c.Provider(), StatusCode: status, Body: strings.TrimSpace(string(body))}
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
		rows = []json.RawMessage{}
	}
	return rows, nil
}

// ExportViewRows runs the asynchronous bulk export: create the job, poll it
// at a fixed interval and download the rows once completed. Unlike the
// synchronous paths, failures here propagate: a half-finished export is not
// a usable "no data" answer.
func (c *ZanalyticsClient) ExportViewRows(ctx context.Context, viewId, fromDate, toDate string) ([]json.RawMessage, error) {
	jobId, err := c.createExportJob(ctx, viewId, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	pollPath := fmt.Sprintf("/api/v2/bulk/workspaces/%s/exportjobs/%s", c.workspaceId, jobId)
	for attempt := 1; attempt <= c.maxPolls; attempt++ {
		body, status, err := c.get(ctx, pollPath, nil)
		if err != nil {
			return nil, err
		}

		if status >= 200 && status < 300 {
			var envelope zanalyticsDataEnvelope
			if err := json.Unmarshal(body, &envelope); err != nil {
				return nil, err
			}
			var info zanalyticsJobInfo
			if err := json.Unmarshal(envelope.Data, &info); err != nil {
				return nil, err
			}
			switch strings.ToLower(strings.TrimSpace(info.Status)) {
			case "completed":
				return c.downloadExport(ctx, jobId)
			case "failed":
				return nil, &JobFailedError{Provider: c.Provider(), JobId: jobId, Reason: info.Reason}
			default:
				// queued / running
			}
		} else {
			var errBody zanalyticsErrorBody
			if jsonErr := json.Unmarshal(body, &errBody); jsonErr != nil || !jobNotReadyCode(errBody.ErrorCode) {
				return nil, &TransientError{Provider: c.Provider(), StatusCode: status, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
			}
			// Not-ready error code: keep polling.
		}

		if attempt == c.maxPolls {
			break
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}
	}
	return nil, &JobTimeoutError{Provider: c.Provider(), JobId: jobId, Attempts: c.maxPolls}
}

func (c *ZanalyticsClient) createExportJob(ctx context.Context, viewId, fromDate, toDate string) (string, error) {
	params := url.Values{}
	params.Set("jobType", "export")
	params.Set("fromDate", fromDate)
	params.Set("toDate", toDate)
	endpoint := fmt.Sprintf("%s/api/v2/bulk/workspaces/%s/views/%s/data?%s", c.baseURL, c.workspaceId, viewId, params.Encode())

	var jobId string
	retryErr := c.retry.Do(ctx, func() error {
		token, err := c.tokens.Token(ctx, c)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return &TransientError{Provider: c.Provider(), Err: err}
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if resp.StatusCode >= 500 {
				return &TransientError{Provider: c.Provider(), StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
			}
			if resp.StatusCode == http.StatusUnauthorized {
				c.tokens.Invalidate(c.Provider())
				return &TransientError{Provider: c.Provider(), StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
			}
			return &RejectedError{Provider: c.Provider(), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}

		var envelope zanalyticsDataEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return err
		}
		var info zanalyticsJobInfo
		if err := json.Unmarshal(envelope.Data, &info); err != nil {
			return err
		}
		if info.JobId == "" {
			return fmt.Errorf("export job create returned empty jobId")
		}
		jobId = info.JobId
		return nil
	})
	if retryErr != nil {
		return "", retryErr
	}
	return jobId, nil
}

func (c *ZanalyticsClient) downloadExport(ctx context.Context, jobId string) ([]json.RawMessage, error) {
	path := fmt.Sprintf("/api/v2/bulk/workspaces/%s/exportjobs/%s/data", c.workspaceId, jobId)
	body, status, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &TransientError{Provider: c.Provider(), StatusCode: status, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}
	var envelope zanalyticsDataEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &rows); err != nil {
			return nil, err
		}
	}
	if rows == nil {
		rows = []json.RawMessage{}
	}
	return rows, nil
}

// ZanalyticsCollectionRow is one exported sales-collection row.
type ZanalyticsCollectionRow struct {
	EntityCode     string      `json:"entityCode"`
	ProjectName    string      `json:"projectName"`
	CollectionDate string      `json:"collectionDate"`
	Collected      json.Number `json:"collected"`
	Invoiced       json.Number `json:"invoiced"`
}

// ZanalyticsReservationRow is one revenue-reservation row from the
// synchronous view.
type ZanalyticsReservationRow struct {
	ProjectName string      `json:"projectName"`
	SalesTeam   string      `json:"salesTeam"`
	ReserveDate string      `json:"reserveDate"`
	Amount      json.Number `json:"amount"`
	Units       int         `json:"units"`
}

func (c *ZanalyticsClient) SalesCollections(ctx context.Context, fromDate, toDate string) ([]ZanalyticsCollectionRow, error) {
	viewId := strings.TrimSpace(os.Getenv("ZANALYTICS_COLLECTION_VIEW_ID"))
	if viewId == "" {
		viewId = "sales_collections"
	}
	raw, err := c.ExportViewRows(ctx, viewId, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	return decodeRows[ZanalyticsCollectionRow](raw)
}

func (c *ZanalyticsClient) RevenueReservations(ctx context.Context, fromDate, toDate string) ([]ZanalyticsReservationRow, error) {
	viewId := strings.TrimSpace(os.Getenv("ZANALYTICS_RESERVATION_VIEW_ID"))
	if viewId == "" {
		viewId = "revenue_reservations"
	}
	raw, err := c.ViewRows(ctx, viewId, fromDate, toDate)
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeRows[ZanalyticsReservationRow](raw)
}
