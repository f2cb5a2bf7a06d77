package assessment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RegimeClient is the wire boundary to the volatility-forecasting
// collaborator. It returns the raw payload; the adapter owns validation.
type RegimeClient interface {
	Forecast(ctx context.Context, symbol string, lookbackDays int) ([]byte, error)
}

// EventClient is the wire boundary to the event-research collaborator.
type EventClient interface {
	Search(ctx context.Context, symbol string, asOf time.Time) ([]byte, error)
}

// HTTPRegimeClient calls GET {base}/v1/forecast?symbol=...&lookback_days=...
type HTTPRegimeClient struct {
	BaseURL  string
	APIToken string
	Client   *http.Client
}

func (c *HTTPRegimeClient) Forecast(ctx context.Context, symbol string, lookbackDays int) ([]byte, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("lookback_days", strconv.Itoa(lookbackDays))
	return doGet(ctx, c.Client, c.BaseURL, "/v1/forecast", q, c.APIToken)
}

// HTTPEventClient calls GET {base}/v1/events?symbol=...&as_of=...
type HTTPEventClient struct {
	BaseURL  string
	APIToken string
	Client   *http.Client
}

func (c *HTTPEventClient) Search(ctx context.Context, symbol string, asOf time.Time) ([]byte, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("as_of", asOf.UTC().Format(time.RFC3339))
	return doGet(ctx, c.Client, c.BaseURL, "/v1/events", q, c.APIToken)
}

func doGet(ctx context.Context, client *http.Client, base, path string, q url.Values, token string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	endpoint := strings.TrimRight(base, "/") + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
