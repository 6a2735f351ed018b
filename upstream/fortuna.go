package upstream

import (
	"bytes"
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

// FortunaClient talks to the Fortuna financial data gateway (bank reserve
// balances, expense payouts, purchase orders). Authentication is an OAuth2
// client-credentials exchange; domain endpoints are POSTs taking
// {fromDate, toDate, scopeCode?}. Responses come back either as a flat
// array or wrapped in {"Response": [...]} / {"Responses": [...]}; both are
// normalized here before any row reaches a transformer.
type FortunaClient struct {
	baseURL      string
	clientId     string
	clientSecret string
	http         *http.Client
	tokens       *TokenCache
	retry        RetryPolicy
}

func NewFortunaClient(tokens *TokenCache) (*FortunaClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("FORTUNA_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://gateway.fortuna-fin.com"
	}
	clientId := strings.TrimSpace(os.Getenv("FORTUNA_CLIENT_ID"))
	clientSecret := strings.TrimSpace(os.Getenv("FORTUNA_CLIENT_SECRET"))
	if clientId == "" || clientSecret == "" {
		return nil, errors.New("fortuna client credentials are empty")
	}
	if tokens == nil {
		tokens = NewTokenCache()
	}
	return &FortunaClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientId:     clientId,
		clientSecret: clientSecret,
		http:         &http.Client{Timeout: 30 * time.Second},
		tokens:       tokens,
		retry:        DefaultRetryPolicy(),
	}, nil
}

func (c *FortunaClient) Provider() string { return "fortuna" }

type fortunaTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *FortunaClient) Exchange(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientId)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
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

	var parsed fortunaTokenResponse
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

type fortunaQuery struct {
	FromDate  string `json:"fromDate"`
	ToDate    string `json:"toDate"`
	ScopeCode string `json:"scopeCode,omitempty"`
}

// fortunaEnvelope covers the gateway's two wrapped response shapes.
type fortunaEnvelope struct {
	Response  []json.RawMessage `json:"Response"`
	Responses []json.RawMessage `json:"Responses"`
}

type fortunaErrorBody struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

// fetchList POSTs one domain endpoint and normalizes the response shape.
// 4xx means "no data" (nil, nil); a transient failure that survives the
// retry budget is returned so the caller can record it for the slice.
func (c *FortunaClient) fetchList(ctx context.Context, path string, query fortunaQuery) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	retryErr := c.retry.Do(ctx, func() error {
		token, err := c.tokens.Token(ctx, c)
		if err != nil {
			return err
		}
		var innerErr error
		rows, innerErr = c.postOnce(ctx, path, token, query)
		return innerErr
	})
	if retryErr != nil {
		var rejected *RejectedError
		if errors.As(retryErr, &rejected) {
			return nil, nil
		}
		return nil, retryErr
	}
	return rows, nil
}

func (c *FortunaClient) postOnce(ctx context.Context, path string, token string, query fortunaQuery) ([]json.RawMessage, error) {
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{Provider: c.Provider(), Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return normalizeFortunaRows(body)
	case resp.StatusCode >= 500:
		// The gateway 500s on empty result sets for some endpoints; that
		// defect must read as "no rows", not as a failure.
		if fortunaEmptyResultDefect(body) {
			return []json.RawMessage{}, nil
		}
		return nil, &TransientError{
			Provider:   c.Provider(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	case resp.StatusCode == http.StatusUnauthorized:
		// A cached token the gateway already expired must not read as
		// "no data"; drop it so the next attempt exchanges fresh.
		c.tokens.Invalidate(c.Provider())
		return nil, &TransientError{
			Provider:   c.Provider(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	default:
		return nil, &RejectedError{
			Provider:   c.Provider(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
}

func normalizeFortunaRows(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []json.RawMessage{}, nil
	}
	if trimmed[0] == '[' {
		var rows []json.RawMessage
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var envelope fortunaEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	if envelope.Response != nil {
		return envelope.Response, nil
	}
	if envelope.Responses != nil {
		return envelope.Responses, nil
	}
	return []json.RawMessage{}, nil
}

func fortunaEmptyResultDefect(body []byte) bool {
	var parsed fortunaErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false
	}
	if parsed.Code == "NO_RECORDS" {
		return true
	}
	return strings.Contains(strings.ToLower(parsed.Message), "no record")
}

// FortunaReserveRow is one day of reserve balances for the requested scope.
type FortunaReserveRow struct {
	BalanceDate string      `json:"balanceDate"`
	ES          json.Number `json:"ES"`
	NonES       json.Number `json:"NonES"`
}

// FortunaPayoutRow is one day of expense payouts for the requested scope.
type FortunaPayoutRow struct {
	PayoutDate string      `json:"payoutDate"`
	Amount     json.Number `json:"amount"`
	TxnCount   int         `json:"txnCount"`
}

// FortunaPurchaseOrderRow is one purchase order.
type FortunaPurchaseOrderRow struct {
	PONumber     string      `json:"poNumber"`
	OrderDate    string      `json:"orderDate"`
	Amount       json.Number `json:"amount"`
	SupplierName string      `json:"supplierName"`
	ProjectName  string      `json:"projectName"`
	Status       string      `json:"status"`
}

func (c *FortunaClient) ReserveBalances(ctx context.Context, fromDate, toDate, scopeCode string) ([]FortunaReserveRow, error) {
	raw, err := c.fetchList(ctx, "/v1/reserves/balances", fortunaQuery{FromDate: fromDate, ToDate: toDate, ScopeCode: scopeCode})
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeRows[FortunaReserveRow](raw)
}

func (c *FortunaClient) ExpensePayouts(ctx context.Context, fromDate, toDate, scopeCode string) ([]FortunaPayoutRow, error) {
	raw, err := c.fetchList(ctx, "/v1/expenses/payouts", fortunaQuery{FromDate: fromDate, ToDate: toDate, ScopeCode: scopeCode})
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeRows[FortunaPayoutRow](raw)
}

func (c *FortunaClient) PurchaseOrders(ctx context.Context, fromDate, toDate, scopeCode string) ([]FortunaPurchaseOrderRow, error) {
	raw, err := c.fetchList(ctx, "/v1/procurement/orders", fortunaQuery{FromDate: fromDate, ToDate: toDate, ScopeCode: scopeCode})
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeRows[FortunaPurchaseOrderRow](raw)
}

// decodeRows drops rows that fail to decode rather than failing the slice.
func decodeRows[T any](raw []json.RawMessage) ([]T, error) {
	rows := make([]T, 0, len(raw))
	for _, r := range raw {
		var row T
		if err := json.Unmarshal(r, &row); err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
