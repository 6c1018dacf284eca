package toolserver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pennywiseapp/pennywise/internal/market"
	"github.com/pennywiseapp/pennywise/internal/model"
	"github.com/pennywiseapp/pennywise/internal/store"
)

// FinanceData is the slice of the store the tool handlers need. The Mongo
// store satisfies it through StoreData; tests use fakes.
type FinanceData interface {
	Dashboard(ctx context.Context, tenantID string, q store.Query) (store.Summary, error)
	Investments(ctx context.Context, tenantID string) ([]model.Investment, error)
	Tenant(ctx context.Context, id string) (model.Tenant, error)
}

// StoreData adapts *store.Store to FinanceData.
type StoreData struct {
	Store *store.Store
}

func (d StoreData) Dashboard(ctx context.Context, tenantID string, q store.Query) (store.Summary, error) {
	return d.Store.Dashboard(ctx, tenantID, q)
}

func (d StoreData) Investments(ctx context.Context, tenantID string) ([]model.Investment, error) {
	return d.Store.Investments.List(ctx, tenantID, store.Query{})
}

func (d StoreData) Tenant(ctx context.Context, id string) (model.Tenant, error) {
	return d.Store.Tenants.Get(ctx, id)
}

// Deps wires the handlers to their data sources.
type Deps struct {
	Data    FinanceData
	Market  *market.Resolver
	News    *NewsChain
	// Now is overridable in tests; nil means time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// NewServer assembles the fixed tool catalog over deps.
func NewServer(deps Deps) *Server {
	schema := func(props map[string]any, required ...string) map[string]any {
		s := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			s["required"] = required
		}
		return s
	}
	str := map[string]any{"type": "string"}
	num := map[string]any{"type": "number"}
	strList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

	return New(
		Tool{
			Name:        "get_user_financial_profile",
			Description: "Summarize a tenant's finances: totals, category spend, savings rate, holdings.",
			InputSchema: schema(map[string]any{"tenantId": str, "days": num}, "tenantId"),
			Required:    []string{"tenantId"},
			Handle:      deps.handleProfile,
		},
		Tool{
			Name:        "get_financial_news",
			Description: "Fetch recent finance headlines, optionally filtered by category or topic.",
			InputSchema: schema(map[string]any{"category": str, "limit": num, "topic": str}),
			Handle:      deps.handleNews,
		},
		Tool{
			Name:        "get_market_data",
			Description: "Resolve current quotes for the given ticker symbols.",
			InputSchema: schema(map[string]any{"symbols": strList}, "symbols"),
			Required:    []string{"symbols"},
			Handle:      deps.handleMarketData,
		},
		Tool{
			Name:        "get_economic_indicators",
			Description: "Return reference macroeconomic indicators.",
			InputSchema: schema(map[string]any{"indicators": strList}),
			Handle:      deps.handleIndicators,
		},
		Tool{
			Name:        "analyze_spending_vs_market",
			Description: "Compare a tenant's monthly net cashflow against benchmark market performance.",
			InputSchema: schema(map[string]any{"tenantId": str}, "tenantId"),
			Required:    []string{"tenantId"},
			Handle:      deps.handleSpendingVsMarket,
		},
		Tool{
			Name:        "get_investment_opportunities",
			Description: "Suggest portfolio additions for a tenant given a risk tolerance.",
			InputSchema: schema(map[string]any{"tenantId": str, "riskTolerance": str}, "tenantId"),
			Required:    []string{"tenantId"},
			Handle:      deps.handleOpportunities,
		},
		Tool{
			Name:        "get_expense_reduction_suggestions",
			Description: "Identify spending categories where a tenant could cut costs.",
			InputSchema: schema(map[string]any{"tenantId": str}, "tenantId"),
			Required:    []string{"tenantId"},
			Handle:      deps.handleExpenseReduction,
		},
	)
}

func (d Deps) handleProfile(ctx context.Context, args map[string]any) (any, error) {
	tenantID := stringArg(args, "tenantId", "")
	days := intArg(args, "days", 30)
	if days <= 0 || days > 365 {
		days = 30
	}
	now := d.now()
	summary, err := d.Data.Dashboard(ctx, tenantID, store.Query{From: now.AddDate(0, 0, -days), To: now})
	if err != nil {
		return nil, fmt.Errorf("load profile for %s: %w", tenantID, err)
	}
	holdings, err := d.Data.Investments(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load holdings for %s: %w", tenantID, err)
	}
	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}
	return map[string]any{
		"tenantId":    tenantID,
		"windowDays":  days,
		"summary":     summary,
		"holdings":    symbols,
		"generatedAt": now.UTC().Format(time.RFC3339),
	}, nil
}

func (d Deps) handleNews(ctx context.Context, args map[string]any) (any, error) {
	q := newsQuery{
		category: stringArg(args, "category", ""),
		topic:    stringArg(args, "topic", ""),
		limit:    intArg(args, "limit", 5),
	}
	return map[string]any{"headlines": d.News.Headlines(ctx, q)}, nil
}

func (d Deps) handleMarketData(ctx context.Context, args map[string]any) (any, error) {
	symbols := stringSliceArg(args, "symbols")
	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbols must be a non-empty list of strings")
	}
	return map[string]any{"quotes": d.Market.ResolveQuotes(ctx, symbols)}, nil
}

// Reference indicator table, used whenever no live macro source is wired.
// Values are flagged so callers can tell them from live data.
var referenceIndicators = map[string]float64{
	"cpi_yoy":         2.9,
	"fed_funds_rate":  4.25,
	"unemployment":    4.1,
	"gdp_growth":      2.2,
	"mortgage_30y":    6.4,
	"treasury_10y":    4.0,
}

func (d Deps) handleIndicators(ctx context.Context, args map[string]any) (any, error) {
	requested := stringSliceArg(args, "indicators")
	if len(requested) == 0 {
		for name := range referenceIndicators {
			requested = append(requested, name)
		}
		sort.Strings(requested)
	}
	out := make([]map[string]any, 0, len(requested))
	for _, name := range requested {
		entry := map[string]any{"name": name, "reference": true}
		if v, ok := referenceIndicators[name]; ok {
			entry["value"] = v
		} else {
			entry["value"] = "unavailable"
		}
		out = append(out, entry)
	}
	return map[string]any{"indicators": out}, nil
}

// benchmarkSymbols is the fixed comparison basket for spending analysis.
var benchmarkSymbols = []string{"VTI", "BND"}

func (d Deps) handleSpendingVsMarket(ctx context.Context, args map[string]any) (any, error) {
	tenantID := stringArg(args, "tenantId", "")
	now := d.now()
	summary, err := d.Data.Dashboard(ctx, tenantID, store.Query{From: now.AddDate(0, -3, 0), To: now})
	if err != nil {
		return nil, fmt.Errorf("load spending for %s: %w", tenantID, err)
	}
	quotes := d.Market.ResolveQuotes(ctx, benchmarkSymbols)

	verdict := "spending and saving are balanced"
	switch {
	case summary.SavingsRate >= 0.2:
		verdict = "healthy savings rate; consider routing surplus into the benchmark holdings"
	case summary.Net.IsNegative():
		verdict = "spending exceeds income over the window; market exposure should wait"
	}
	return map[string]any{
		"tenantId":   tenantID,
		"summary":    summary,
		"benchmarks": quotes,
		"verdict":    verdict,
	}, nil
}

type opportunity struct {
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

var opportunitiesByRisk = map[string][]opportunity{
	"conservative": {
		{Symbol: "BND", Kind: "bond", Reason: "broad investment-grade bond exposure"},
		{Symbol: "VTIP", Kind: "bond", Reason: "inflation-protected treasuries"},
	},
	"moderate": {
		{Symbol: "VTI", Kind: "etf", Reason: "total US market core holding"},
		{Symbol: "VXUS", Kind: "etf", Reason: "international diversification"},
		{Symbol: "BND", Kind: "bond", Reason: "ballast against equity drawdowns"},
	},
	"aggressive": {
		{Symbol: "VTI", Kind: "etf", Reason: "total US market core holding"},
		{Symbol: "QQQ", Kind: "etf", Reason: "growth tilt"},
		{Symbol: "VWO", Kind: "etf", Reason: "emerging markets exposure"},
	},
}

func (d Deps) handleOpportunities(ctx context.Context, args map[string]any) (any, error) {
	tenantID := stringArg(args, "tenantId", "")
	risk := stringArg(args, "riskTolerance", "")
	if risk == "" {
		if tenant, err := d.Data.Tenant(ctx, tenantID); err == nil {
			risk = tenant.RiskTolerance
		}
	}
	if !model.ValidCategory(risk, model.RiskLevels) {
		risk = "moderate"
	}

	held := map[string]bool{}
	if holdings, err := d.Data.Investments(ctx, tenantID); err == nil {
		for _, h := range holdings {
			held[h.Symbol] = true
		}
	}

	var out []opportunity
	for _, opp := range opportunitiesByRisk[risk] {
		if held[opp.Symbol] {
			continue
		}
		out = append(out, opp)
	}
	return map[string]any{"tenantId": tenantID, "riskTolerance": risk, "opportunities": out}, nil
}

func (d Deps) handleExpenseReduction(ctx context.Context, args map[string]any) (any, error) {
	tenantID := stringArg(args, "tenantId", "")
	now := d.now()
	summary, err := d.Data.Dashboard(ctx, tenantID, store.Query{From: now.AddDate(0, -1, 0), To: now})
	if err != nil {
		return nil, fmt.Errorf("load expenses for %s: %w", tenantID, err)
	}

	type suggestion struct {
		Category string `json:"category"`
		Spent    string `json:"spent"`
		Advice   string `json:"advice"`
	}
	var out []suggestion
	if summary.TotalExpenses.IsPositive() {
		threshold := summary.TotalExpenses.Mul(decimal.NewFromFloat(0.25))
		cats := make([]string, 0, len(summary.ExpensesByCategory))
		for cat := range summary.ExpensesByCategory {
			cats = append(cats, cat)
		}
		sort.Strings(cats)
		for _, cat := range cats {
			spent := summary.ExpensesByCategory[cat]
			if spent.LessThan(threshold) {
				continue
			}
			out = append(out, suggestion{
				Category: cat,
				Spent:    spent.String(),
				Advice:   fmt.Sprintf("%s is over a quarter of monthly spend; review for cuts", cat),
			})
		}
	}
	return map[string]any{"tenantId": tenantID, "suggestions": out}, nil
}
