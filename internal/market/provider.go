// Package market resolves quotes for ticker symbols through an ordered chain
// of data providers. Every requested symbol always yields a quote: live data
// from the first provider that answers, or a flagged synthetic placeholder
// when the whole chain is exhausted.
package market

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Provider is one stage of the fallback chain.
type Provider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (Quote, error)
}

const defaultRequestTimeout = 8 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultRequestTimeout}
}

func fetch(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "pennywise/1.0")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// yahooProvider reads the public chart endpoint.
type yahooProvider struct {
	baseURL string
	client  *http.Client
}

// NewYahooProvider returns the first-stage quote provider. baseURL is
// overridable for tests; empty selects the public endpoint.
func NewYahooProvider(baseURL string) Provider {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &yahooProvider{baseURL: baseURL, client: newHTTPClient()}
}

func (p *yahooProvider) Name() string { return "yahoo" }

func (p *yahooProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	body, err := fetch(ctx, p.client, p.baseURL+"/v8/finance/chart/"+url.PathEscape(symbol))
	if err != nil {
		return Quote{}, fmt.Errorf("yahoo %s: %w", symbol, err)
	}
	var payload struct {
		Chart struct {
			Result []struct {
				Meta struct {
					RegularMarketPrice *float64 `json:"regularMarketPrice"`
					PreviousClose      *float64 `json:"chartPreviousClose"`
				} `json:"meta"`
			} `json:"result"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Quote{}, fmt.Errorf("yahoo %s: parse: %w", symbol, err)
	}
	if len(payload.Chart.Result) == 0 || payload.Chart.Result[0].Meta.RegularMarketPrice == nil {
		return Quote{}, fmt.Errorf("yahoo %s: no price in response", symbol)
	}
	meta := payload.Chart.Result[0].Meta
	price := *meta.RegularMarketPrice
	change := 0.0
	if meta.PreviousClose != nil && *meta.PreviousClose != 0 {
		change = (price - *meta.PreviousClose) / *meta.PreviousClose * 100
	}
	return liveQuote(symbol, price, change, p.Name()), nil
}

// stooqProvider reads the CSV quote endpoint.
type stooqProvider struct {
	baseURL string
	client  *http.Client
}

// NewStooqProvider returns the second-stage quote provider.
func NewStooqProvider(baseURL string) Provider {
	if baseURL == "" {
		baseURL = "https://stooq.com"
	}
	return &stooqProvider{baseURL: baseURL, client: newHTTPClient()}
}

func (p *stooqProvider) Name() string { return "stooq" }

func (p *stooqProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	u := p.baseURL + "/q/l/?s=" + url.QueryEscape(strings.ToLower(symbol)) + "&f=sd2t2ohlcv&h&e=csv"
	body, err := fetch(ctx, p.client, u)
	if err != nil {
		return Quote{}, fmt.Errorf("stooq %s: %w", symbol, err)
	}
	rows, err := csv.NewReader(strings.NewReader(string(body))).ReadAll()
	if err != nil || len(rows) < 2 {
		return Quote{}, fmt.Errorf("stooq %s: malformed csv", symbol)
	}
	header, row := rows[0], rows[1]
	cols := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(row) {
			cols[strings.ToLower(name)] = row[i]
		}
	}
	closeStr, openStr := cols["close"], cols["open"]
	price, err := strconv.ParseFloat(closeStr, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("stooq %s: no close price (%q)", symbol, closeStr)
	}
	change := 0.0
	if open, err := strconv.ParseFloat(openStr, 64); err == nil && open != 0 {
		change = (price - open) / open * 100
	}
	return liveQuote(symbol, price, change, p.Name()), nil
}

// alphaProvider reads the Alpha Vantage global quote endpoint. The stage is
// only present in the chain when an API key is configured.
type alphaProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewAlphaProvider returns the keyed third-stage quote provider.
func NewAlphaProvider(baseURL, apiKey string) Provider {
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co"
	}
	return &alphaProvider{baseURL: baseURL, apiKey: apiKey, client: newHTTPClient()}
}

func (p *alphaProvider) Name() string { return "alphavantage" }

func (p *alphaProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	u := p.baseURL + "/query?function=GLOBAL_QUOTE&symbol=" + url.QueryEscape(symbol) + "&apikey=" + url.QueryEscape(p.apiKey)
	body, err := fetch(ctx, p.client, u)
	if err != nil {
		return Quote{}, fmt.Errorf("alphavantage %s: %w", symbol, err)
	}
	var payload struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Quote{}, fmt.Errorf("alphavantage %s: parse: %w", symbol, err)
	}
	price, err := strconv.ParseFloat(payload.GlobalQuote["05. price"], 64)
	if err != nil {
		return Quote{}, fmt.Errorf("alphavantage %s: no price field", symbol)
	}
	change := 0.0
	if raw := strings.TrimSuffix(payload.GlobalQuote["10. change percent"], "%"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			change = parsed
		}
	}
	return liveQuote(symbol, price, change, p.Name()), nil
}
