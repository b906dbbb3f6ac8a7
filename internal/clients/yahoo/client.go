// Package yahoo provides a Yahoo Finance API client for batch quote lookups.
package yahoo

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

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// quoteFields lists the fields requested from the quote API.
const quoteFields = "symbol,regularMarketPrice,currentPrice,regularMarketTime," +
	"longName,shortName,sector,trailingPE,dividendYield"

// Config holds Yahoo Finance client configuration
type Config struct {
	BaseURL    string        // Defaults to the public query API
	Timeout    time.Duration // Per-request timeout (default 10s)
	MaxRetries int           // Attempts per batch before giving up (default 3)
}

// Client is a Yahoo Finance API client.
// Requests are rate limited and routed through a circuit breaker so a
// misbehaving upstream degrades to cached data instead of hammering the API.
type Client struct {
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	log        zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	settings := gobreaker.Settings{Name: "yahoo"}
	settings.Timeout = 30 * time.Second
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 5
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(5), 5), // 5 calls/sec
		breaker:    gobreaker.NewCircuitBreaker(settings),
		maxRetries: cfg.MaxRetries,
		log:        log.With().Str("client", "yahoo").Logger(),
	}
}

// yahooQuoteResponse represents the response from the Yahoo Finance quote API
type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []map[string]interface{} `json:"result"`
		Error  interface{}              `json:"error"`
	} `json:"quoteResponse"`
}

// GetQuotes fetches current quotes for multiple symbols in one batch request.
// Symbols the API does not recognize are simply absent from the returned map;
// callers decide how to handle the gaps. Retries with exponential backoff,
// except when the circuit breaker is open.
func (c *Client) GetQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	if len(symbols) == 0 {
		return make(map[string]Quote), nil
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter interrupted: %w", err)
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetchBatch(ctx, symbols)
		})
		if err == nil {
			return result.(map[string]Quote), nil
		}

		lastErr = err
		if errors.Is(err, gobreaker.ErrOpenState) || ctx.Err() != nil {
			break
		}

		if attempt < c.maxRetries-1 {
			waitTime := time.Duration(1<<uint(attempt)) * time.Second // exponential backoff
			c.log.Warn().Err(err).
				Int("symbols", len(symbols)).
				Int("attempt", attempt+1).
				Dur("wait", waitTime).
				Msg("Failed to fetch quotes, retrying")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitTime):
			}
		}
	}

	return nil, fmt.Errorf("failed to fetch quotes after %d attempts: %w", c.maxRetries, lastErr)
}

// fetchBatch performs a single batch quote request
func (c *Client) fetchBatch(ctx context.Context, symbols []string) (map[string]Quote, error) {
	params := url.Values{}
	params.Add("symbols", strings.Join(symbols, ","))
	params.Add("fields", quoteFields)

	reqURL := c.baseURL + "/v7/finance/quote?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Yahoo Finance API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result yahooQuoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("Yahoo Finance API error: %v", result.QuoteResponse.Error)
	}

	quotes := make(map[string]Quote, len(result.QuoteResponse.Result))
	for _, info := range result.QuoteResponse.Result {
		quote, ok := parseQuote(info)
		if !ok {
			continue
		}
		quotes[quote.Symbol] = quote
	}

	return quotes, nil
}

// parseQuote extracts a Quote from one result entry.
// Entries without a symbol or a positive price are dropped.
func parseQuote(info map[string]interface{}) (Quote, bool) {
	symbol := getString(info, "symbol", "")
	if symbol == "" {
		return Quote{}, false
	}

	// Try currentPrice first, then regularMarketPrice
	price := getFloat64OrZero(info, "currentPrice")
	if price <= 0 {
		price = getFloat64OrZero(info, "regularMarketPrice")
	}
	if price <= 0 {
		return Quote{}, false
	}

	asOf := time.Now().UTC()
	if ts := getFloat64OrZero(info, "regularMarketTime"); ts > 0 {
		asOf = time.Unix(int64(ts), 0).UTC()
	}

	name := getString(info, "longName", "")
	if name == "" {
		name = getString(info, "shortName", "")
	}

	return Quote{
		Symbol:        strings.ToUpper(symbol),
		Price:         price,
		AsOf:          asOf,
		Name:          name,
		Sector:        getString(info, "sector", ""),
		PERatio:       getFloat64(info, "trailingPE"),
		DividendYield: getFloat64(info, "dividendYield"),
	}, true
}

// Helper functions to safely extract values from map

func getFloat64(m map[string]interface{}, key string) *float64 {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case float64:
			return &v
		case int:
			f := float64(v)
			return &f
		case int64:
			f := float64(v)
			return &f
		}
	}
	return nil
}

func getFloat64OrZero(m map[string]interface{}, key string) float64 {
	if val := getFloat64(m, key); val != nil {
		return *val
	}
	return 0
}

func getString(m map[string]interface{}, key string, defaultVal string) string {
	if val, ok := m[key]; ok && val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return defaultVal
}
