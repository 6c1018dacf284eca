package sched

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pennywiseapp/pennywise/internal/advisor"
	"github.com/pennywiseapp/pennywise/internal/alerts"
	"github.com/pennywiseapp/pennywise/internal/config"
	"github.com/pennywiseapp/pennywise/internal/model"
)

type fakeData struct {
	tenants  []model.Tenant
	incomes  map[string][]model.Income
	expenses map[string][]model.Expense
	projects map[string][]model.Project

	insertedIncomes  []model.Income
	insertedExpenses []model.Expense
}

func (f *fakeData) Tenants(ctx context.Context) ([]model.Tenant, error) {
	return f.tenants, nil
}

func (f *fakeData) RecurringIncomes(ctx context.Context, tenantID string) ([]model.Income, error) {
	return f.incomes[tenantID], nil
}

func (f *fakeData) RecurringExpenses(ctx context.Context, tenantID string) ([]model.Expense, error) {
	return f.expenses[tenantID], nil
}

func (f *fakeData) InsertIncome(ctx context.Context, in model.Income) error {
	f.insertedIncomes = append(f.insertedIncomes, in)
	return nil
}

func (f *fakeData) InsertExpense(ctx context.Context, ex model.Expense) error {
	f.insertedExpenses = append(f.insertedExpenses, ex)
	return nil
}

func (f *fakeData) Projects(ctx context.Context, tenantID string) ([]model.Project, error) {
	return f.projects[tenantID], nil
}

type fakeAdviser struct {
	resp     advisor.Response
	requests []advisor.Request
}

func (f *fakeAdviser) Advise(ctx context.Context, req advisor.Request) advisor.Response {
	f.requests = append(f.requests, req)
	return f.resp
}

type fakeNotifier struct {
	enabled  bool
	messages []string
	budget   []alerts.BudgetAlert
}

func (f *fakeNotifier) Enabled() bool { return f.enabled }

func (f *fakeNotifier) Notify(text string) error {
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeNotifier) NotifyBudget(batch []alerts.BudgetAlert) error {
	f.budget = append(f.budget, batch...)
	return nil
}

func newTestService(data *fakeData, adv *fakeAdviser, n *fakeNotifier, now time.Time) *Service {
	s := NewService(config.SchedConfig{
		DigestCron:    config.DefaultDigestSpec,
		RecurringCron: config.DefaultRecurrSpec,
	}, data, adv, n)
	s.now = func() time.Time { return now }
	return s
}

func TestRunRecurring_MaterializesTemplates(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 30, 0, 0, time.UTC)
	data := &fakeData{
		tenants: []model.Tenant{{ID: "t1"}},
		incomes: map[string][]model.Income{"t1": {{
			ID: "inc-tpl", TenantID: "t1", Source: "acme", Category: "salary",
			Amount: decimal.NewFromInt(5000), Currency: "USD",
			Date: time.Date(2025, time.June, 25, 0, 0, 0, 0, time.UTC), Recurring: true,
		}}},
		expenses: map[string][]model.Expense{"t1": {{
			ID: "exp-tpl", TenantID: "t1", Merchant: "landlord", Category: "housing",
			Amount: decimal.NewFromInt(1500), Currency: "USD",
			Date: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), Recurring: true,
		}}},
	}
	s := newTestService(data, &fakeAdviser{}, &fakeNotifier{}, now)

	n, err := s.RunRecurring(context.Background())
	if err != nil {
		t.Fatalf("RunRecurring error: %v", err)
	}
	if n != 2 {
		t.Errorf("created = %d, want 2", n)
	}
	if len(data.insertedIncomes) != 1 || len(data.insertedExpenses) != 1 {
		t.Fatalf("inserted %d incomes, %d expenses", len(data.insertedIncomes), len(data.insertedExpenses))
	}

	in := data.insertedIncomes[0]
	if in.ID == "inc-tpl" || in.ID == "" {
		t.Errorf("materialized income should get a fresh id, got %q", in.ID)
	}
	if in.Recurring {
		t.Error("materialized instance must not itself be recurring")
	}
	if in.Date.Month() != time.March || in.Date.Day() != 25 {
		t.Errorf("income date = %v, want March 25", in.Date)
	}
	if !in.Amount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("amount = %s, want 5000", in.Amount)
	}
}

func TestRunRecurring_ClampsDayToMonthEnd(t *testing.T) {
	now := time.Date(2026, time.February, 1, 0, 30, 0, 0, time.UTC)
	data := &fakeData{
		tenants: []model.Tenant{{ID: "t1"}},
		expenses: map[string][]model.Expense{"t1": {{
			ID: "exp-tpl", TenantID: "t1", Category: "subscriptions",
			Amount: decimal.NewFromInt(15),
			Date:   time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC), Recurring: true,
		}}},
	}
	s := newTestService(data, &fakeAdviser{}, &fakeNotifier{}, now)

	if _, err := s.RunRecurring(context.Background()); err != nil {
		t.Fatalf("RunRecurring error: %v", err)
	}
	if len(data.insertedExpenses) != 1 {
		t.Fatalf("inserted %d expenses, want 1", len(data.insertedExpenses))
	}
	got := data.insertedExpenses[0].Date
	if got.Month() != time.February || got.Day() != 28 {
		t.Errorf("date = %v, want Feb 28", got)
	}
}

func TestRunRecurring_SkipsCurrentMonthTemplates(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 30, 0, 0, time.UTC)
	data := &fakeData{
		tenants: []model.Tenant{{ID: "t1"}},
		incomes: map[string][]model.Income{"t1": {{
			ID: "fresh", TenantID: "t1",
			Date: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), Recurring: true,
		}}},
	}
	s := newTestService(data, &fakeAdviser{}, &fakeNotifier{}, now)

	n, err := s.RunRecurring(context.Background())
	if err != nil {
		t.Fatalf("RunRecurring error: %v", err)
	}
	if n != 0 {
		t.Errorf("created = %d, want 0 for a template added this month", n)
	}
}

func TestRunDigest_DisabledNotifierIsNoop(t *testing.T) {
	adv := &fakeAdviser{}
	data := &fakeData{tenants: []model.Tenant{{ID: "t1"}}}
	s := newTestService(data, adv, &fakeNotifier{enabled: false}, time.Now())

	if err := s.RunDigest(context.Background()); err != nil {
		t.Fatalf("RunDigest error: %v", err)
	}
	if len(adv.requests) != 0 {
		t.Error("adviser should not be called when the notifier is disabled")
	}
}

func TestRunDigest_SendsAdviceAndBudgetAlerts(t *testing.T) {
	adv := &fakeAdviser{resp: advisor.Response{Advice: "keep saving"}}
	n := &fakeNotifier{enabled: true}
	data := &fakeData{
		tenants: []model.Tenant{{ID: "t1", Name: "Alice"}},
		projects: map[string][]model.Project{"t1": {
			{Name: "kitchen", Budget: decimal.NewFromInt(1000), Spent: decimal.NewFromInt(900), Status: "active"},
			{Name: "garden", Budget: decimal.NewFromInt(1000), Spent: decimal.NewFromInt(100), Status: "active"},
			{Name: "attic", Budget: decimal.NewFromInt(100), Spent: decimal.NewFromInt(100), Status: "done"},
		}},
	}
	s := newTestService(data, adv, n, time.Now())

	if err := s.RunDigest(context.Background()); err != nil {
		t.Fatalf("RunDigest error: %v", err)
	}

	if len(adv.requests) != 1 || adv.requests[0].TenantID != "t1" {
		t.Fatalf("adviser requests = %+v", adv.requests)
	}
	if len(n.messages) != 1 {
		t.Fatalf("sent %d digests, want 1", len(n.messages))
	}
	if !strings.Contains(n.messages[0], "Alice") || !strings.Contains(n.messages[0], "keep saving") {
		t.Errorf("digest = %q", n.messages[0])
	}

	if len(n.budget) != 1 {
		t.Fatalf("budget alerts = %+v, want just the kitchen project", n.budget)
	}
	if n.budget[0].Category != "kitchen" {
		t.Errorf("alert category = %q, want kitchen", n.budget[0].Category)
	}
}

func TestRunDigest_FlagsDegradedAdvice(t *testing.T) {
	adv := &fakeAdviser{resp: advisor.Response{Advice: "generic tips", Degraded: true}}
	n := &fakeNotifier{enabled: true}
	data := &fakeData{tenants: []model.Tenant{{ID: "t1", Name: "Bob"}}}
	s := newTestService(data, adv, n, time.Now())

	if err := s.RunDigest(context.Background()); err != nil {
		t.Fatalf("RunDigest error: %v", err)
	}
	if len(n.messages) != 1 || !strings.Contains(n.messages[0], "degraded") {
		t.Errorf("digest should note degraded advice: %v", n.messages)
	}
}

func TestStart_RejectsBadSpec(t *testing.T) {
	s := NewService(config.SchedConfig{
		DigestCron:    "not a cron spec",
		RecurringCron: config.DefaultRecurrSpec,
	}, &fakeData{}, &fakeAdviser{}, &fakeNotifier{})
	defer s.Stop()

	if err := s.Start(); err == nil {
		t.Error("expected error for malformed cron spec")
	}
}

func TestStartStop(t *testing.T) {
	s := newTestService(&fakeData{}, &fakeAdviser{}, &fakeNotifier{}, time.Now())
	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	s.Stop()
}
