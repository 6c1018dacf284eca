package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// Headline is one news item returned by get_financial_news.
type Headline struct {
	Title     string `json:"title"`
	Source    string `json:"source"`
	URL       string `json:"url,omitempty"`
	Synthetic bool   `json:"synthetic,omitempty"`
}

type newsQuery struct {
	category string
	topic    string
	limit    int
}

// newsSource is one stage of the news fallback chain, mirroring the market
// provider chain: first stage to answer wins, exhaustion falls through to the
// built-in digest.
type newsSource interface {
	Name() string
	Fetch(ctx context.Context, q newsQuery) ([]Headline, error)
}

// NewsChain resolves headlines through its sources in order.
type NewsChain struct {
	sources []newsSource
}

// NewNewsChain assembles the chain. The keyed stage is skipped entirely when
// apiKey is empty. Base URLs are overridable for tests.
func NewNewsChain(apiKey, newsAPIBase, hnBase string) *NewsChain {
	client := &http.Client{Timeout: 8 * time.Second}
	var sources []newsSource
	if apiKey != "" {
		sources = append(sources, &newsAPISource{apiKey: apiKey, baseURL: defaultStr(newsAPIBase, "https://newsapi.org"), client: client})
	}
	sources = append(sources, &hnSource{baseURL: defaultStr(hnBase, "https://hn.algolia.com"), client: client})
	return &NewsChain{sources: sources}
}

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Headlines never fails: when every source is down it returns the built-in
// digest, each entry flagged synthetic.
func (c *NewsChain) Headlines(ctx context.Context, q newsQuery) []Headline {
	if q.limit <= 0 || q.limit > 25 {
		q.limit = 5
	}
	for _, src := range c.sources {
		items, err := src.Fetch(ctx, q)
		if err != nil {
			log.Printf("[toolserver] news source %s failed: %v", src.Name(), err)
			continue
		}
		if len(items) == 0 {
			continue
		}
		if len(items) > q.limit {
			items = items[:q.limit]
		}
		return items
	}
	log.Printf("[toolserver] all news sources exhausted, using built-in digest")
	return builtinDigest(q.limit)
}

type newsAPISource struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func (s *newsAPISource) Name() string { return "newsapi" }

func (s *newsAPISource) Fetch(ctx context.Context, q newsQuery) ([]Headline, error) {
	u := s.baseURL + "/v2/top-headlines?category=" + url.QueryEscape(defaultStr(q.category, "business")) + "&pageSize=25&apiKey=" + url.QueryEscape(s.apiKey)
	if q.topic != "" {
		u += "&q=" + url.QueryEscape(q.topic)
	}
	body, err := httpGet(ctx, s.client, u)
	if err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	var payload struct {
		Status   string `json:"status"`
		Articles []struct {
			Title  string `json:"title"`
			URL    string `json:"url"`
			Source struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("newsapi: parse: %w", err)
	}
	if payload.Status != "ok" {
		return nil, fmt.Errorf("newsapi: status %q", payload.Status)
	}
	out := make([]Headline, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		if a.Title == "" {
			continue
		}
		out = append(out, Headline{Title: a.Title, Source: defaultStr(a.Source.Name, "newsapi"), URL: a.URL})
	}
	return out, nil
}

type hnSource struct {
	baseURL string
	client  *http.Client
}

func (s *hnSource) Name() string { return "hn" }

func (s *hnSource) Fetch(ctx context.Context, q newsQuery) ([]Headline, error) {
	query := defaultStr(q.topic, defaultStr(q.category, "finance"))
	u := s.baseURL + "/api/v1/search?tags=story&query=" + url.QueryEscape(query)
	body, err := httpGet(ctx, s.client, u)
	if err != nil {
		return nil, fmt.Errorf("hn: %w", err)
	}
	var payload struct {
		Hits []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("hn: parse: %w", err)
	}
	out := make([]Headline, 0, len(payload.Hits))
	for _, h := range payload.Hits {
		if h.Title == "" {
			continue
		}
		out = append(out, Headline{Title: h.Title, Source: "hn", URL: h.URL})
	}
	return out, nil
}

// builtinDigest is the last-resort stage: generic evergreen finance notes,
// clearly flagged so they are never mistaken for live coverage.
func builtinDigest(limit int) []Headline {
	digest := []Headline{
		{Title: "Live news feeds unavailable; review your recurring expenses this week", Source: "pennywise", Synthetic: true},
		{Title: "Reminder: diversified index funds remain the default long-horizon holding", Source: "pennywise", Synthetic: true},
		{Title: "Check upcoming tax due dates in your dashboard", Source: "pennywise", Synthetic: true},
	}
	if limit < len(digest) {
		digest = digest[:limit]
	}
	return digest
}

func httpGet(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
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
