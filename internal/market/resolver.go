package market

import (
	"context"
	"encoding/json"
	"log"
	"sync"
)

const unavailable = "unavailable"

// Quote is the unit returned per requested symbol. A synthetic quote carries
// no price data; its Price and ChangePercent serialize as "unavailable" so a
// placeholder can never be mistaken for live data.
type Quote struct {
	Symbol        string
	Price         *float64
	ChangePercent *float64
	Synthetic     bool
	Source        string
	Note          string
}

func liveQuote(symbol string, price, change float64, source string) Quote {
	return Quote{Symbol: symbol, Price: &price, ChangePercent: &change, Source: source}
}

// SyntheticQuote builds the flagged placeholder substituted when every
// provider fails for a symbol.
func SyntheticQuote(symbol string) Quote {
	return Quote{
		Symbol:    symbol,
		Synthetic: true,
		Source:    "synthetic",
		Note:      "all market data providers unavailable",
	}
}

func (q Quote) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"symbol":    q.Symbol,
		"synthetic": q.Synthetic,
		"source":    q.Source,
	}
	if q.Price != nil {
		out["price"] = *q.Price
	} else {
		out["price"] = unavailable
	}
	if q.ChangePercent != nil {
		out["changePercent"] = *q.ChangePercent
	} else {
		out["changePercent"] = unavailable
	}
	if q.Note != "" {
		out["note"] = q.Note
	}
	return json.Marshal(out)
}

// Resolver walks an ordered provider chain per symbol.
type Resolver struct {
	providers []Provider
}

// NewResolver builds a resolver over the given chain. Order is significant:
// providers[0] is tried first.
func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers}
}

// Providers returns the names of the configured chain stages in order.
func (r *Resolver) Providers() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// ResolveQuotes returns exactly one quote per requested symbol. Symbols are
// resolved independently; a symbol that exhausts the chain gets a synthetic
// placeholder and never affects its neighbors.
func (r *Resolver) ResolveQuotes(ctx context.Context, symbols []string) []Quote {
	quotes := make([]Quote, len(symbols))
	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			quotes[i] = r.resolveOne(ctx, symbol)
		}(i, symbol)
	}
	wg.Wait()
	return quotes
}

func (r *Resolver) resolveOne(ctx context.Context, symbol string) Quote {
	for _, p := range r.providers {
		quote, err := p.Quote(ctx, symbol)
		if err != nil {
			log.Printf("[market] provider %s failed for %s: %v", p.Name(), symbol, err)
			continue
		}
		return quote
	}
	log.Printf("[market] all providers exhausted for %s, substituting synthetic quote", symbol)
	return SyntheticQuote(symbol)
}
