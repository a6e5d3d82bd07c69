// Package alphavantage fetches equity quotes from the Alpha Vantage
// GLOBAL_QUOTE endpoint.
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultHost = "https://www.alphavantage.co"

// ErrRateLimited is returned when the provider answers with a "Note" or
// "Information" message instead of a quote.
var ErrRateLimited = errors.New("alphavantage: rate limited")

// ErrNoQuote is returned when the payload carries no usable price.
var ErrNoQuote = errors.New("alphavantage: no quote in response")

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alphavantage: API error (%d): %s", e.Status, e.Body)
}

type Quote struct {
	Symbol        string
	Price         decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
}

type Client struct {
	host       string
	apiKey     string
	userAgent  string
	httpClient *http.Client
}

func NewClient(httpClient *http.Client, host, apiKey, userAgent string) *Client {
	if host == "" {
		host = defaultHost
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		host:       strings.TrimRight(host, "/"),
		apiKey:     apiKey,
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

// GetQuote returns the latest quote for symbol. Change fields that are missing
// or malformed default to zero; a missing or negative price is an error.
func (c *Client) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Quote{}, fmt.Errorf("alphavantage: symbol is required")
	}
	query := url.Values{}
	query.Set("function", "GLOBAL_QUOTE")
	query.Set("symbol", symbol)
	query.Set("apikey", c.apiKey)

	body, err := c.doRequest(ctx, "/query", query)
	if err != nil {
		return Quote{}, err
	}
	q, err := parseGlobalQuote(body)
	if err != nil {
		return Quote{}, fmt.Errorf("%s: %w", symbol, err)
	}
	q.Symbol = symbol
	return q, nil
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("alphavantage: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alphavantage: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("alphavantage: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

type globalQuoteResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
	Note        string            `json:"Note"`
	Information string            `json:"Information"`
	ErrorMsg    string            `json:"Error Message"`
}

func parseGlobalQuote(body []byte) (Quote, error) {
	var resp globalQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Quote{}, fmt.Errorf("decode: %w", err)
	}
	if resp.Note != "" || resp.Information != "" {
		return Quote{}, ErrRateLimited
	}
	if resp.ErrorMsg != "" {
		return Quote{}, fmt.Errorf("alphavantage: %s", resp.ErrorMsg)
	}
	raw := strings.TrimSpace(resp.GlobalQuote["05. price"])
	if raw == "" {
		return Quote{}, ErrNoQuote
	}
	price, err := decimal.NewFromString(raw)
	if err != nil || price.IsNegative() {
		return Quote{}, ErrNoQuote
	}
	return Quote{
		Price:         price,
		Change:        parseOptional(resp.GlobalQuote["09. change"]),
		ChangePercent: parseOptional(strings.TrimSuffix(strings.TrimSpace(resp.GlobalQuote["10. change percent"]), "%")),
	}, nil
}

func parseOptional(v string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero
	}
	return d
}
