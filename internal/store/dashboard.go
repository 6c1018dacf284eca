package store

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pennywiseapp/pennywise/internal/model"
)

// Summary is the dashboard aggregate for one tenant over a period.
type Summary struct {
	TotalIncome        decimal.Decimal            `json:"totalIncome"`
	TotalExpenses      decimal.Decimal            `json:"totalExpenses"`
	Net                decimal.Decimal            `json:"net"`
	SavingsRate        float64                    `json:"savingsRate"` // 0..1, zero when no income
	ExpensesByCategory map[string]decimal.Decimal `json:"expensesByCategory"`
	MonthlyNet         []MonthNet                 `json:"monthlyNet"`
}

// MonthNet is the net cashflow of one calendar month.
type MonthNet struct {
	Month string          `json:"month"` // YYYY-MM
	Net   decimal.Decimal `json:"net"`
}

// Summarize aggregates totals, per-category spend, and monthly net cashflow.
func Summarize(incomes []model.Income, expenses []model.Expense) Summary {
	s := Summary{
		TotalIncome:        decimal.Zero,
		TotalExpenses:      decimal.Zero,
		Net:                decimal.Zero,
		ExpensesByCategory: make(map[string]decimal.Decimal),
	}
	months := make(map[string]decimal.Decimal)

	for _, in := range incomes {
		s.TotalIncome = s.TotalIncome.Add(in.Amount)
		m := in.Date.Format("2006-01")
		months[m] = monthOr(months, m).Add(in.Amount)
	}
	for _, ex := range expenses {
		s.TotalExpenses = s.TotalExpenses.Add(ex.Amount)
		cat := ex.Category
		if cat == "" {
			cat = "other"
		}
		prev, ok := s.ExpensesByCategory[cat]
		if !ok {
			prev = decimal.Zero
		}
		s.ExpensesByCategory[cat] = prev.Add(ex.Amount)
		m := ex.Date.Format("2006-01")
		months[m] = monthOr(months, m).Sub(ex.Amount)
	}

	s.Net = s.TotalIncome.Sub(s.TotalExpenses)
	if s.TotalIncome.IsPositive() {
		rate, _ := s.Net.Div(s.TotalIncome).Float64()
		if rate < 0 {
			rate = 0
		}
		s.SavingsRate = rate
	}

	keys := make([]string, 0, len(months))
	for m := range months {
		keys = append(keys, m)
	}
	sort.Strings(keys)
	for _, m := range keys {
		s.MonthlyNet = append(s.MonthlyNet, MonthNet{Month: m, Net: months[m]})
	}
	return s
}

func monthOr(months map[string]decimal.Decimal, key string) decimal.Decimal {
	if v, ok := months[key]; ok {
		return v
	}
	return decimal.Zero
}

// Dashboard lists the tenant's records in the query window and aggregates
// them.
func (s *Store) Dashboard(ctx context.Context, tenantID string, q Query) (Summary, error) {
	incomes, err := s.Incomes.List(ctx, tenantID, q)
	if err != nil {
		return Summary{}, err
	}
	expenses, err := s.Expenses.List(ctx, tenantID, q)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(incomes, expenses), nil
}
