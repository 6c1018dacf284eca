// Package sched runs the background jobs: monthly materialization of
// recurring transactions and a daily advice digest pushed through the alert
// notifier.
package sched

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	rcron "github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/pennywiseapp/pennywise/internal/advisor"
	"github.com/pennywiseapp/pennywise/internal/alerts"
	"github.com/pennywiseapp/pennywise/internal/config"
	"github.com/pennywiseapp/pennywise/internal/model"
	"github.com/pennywiseapp/pennywise/internal/store"
)

const jobTimeout = 2 * time.Minute

// Data is the slice of the store the scheduler needs.
type Data interface {
	Tenants(ctx context.Context) ([]model.Tenant, error)
	RecurringIncomes(ctx context.Context, tenantID string) ([]model.Income, error)
	RecurringExpenses(ctx context.Context, tenantID string) ([]model.Expense, error)
	InsertIncome(ctx context.Context, in model.Income) error
	InsertExpense(ctx context.Context, ex model.Expense) error
	Projects(ctx context.Context, tenantID string) ([]model.Project, error)
}

// Adviser produces the digest text.
type Adviser interface {
	Advise(ctx context.Context, req advisor.Request) advisor.Response
}

// Notifier delivers digest and budget messages.
type Notifier interface {
	Enabled() bool
	Notify(text string) error
	NotifyBudget(batch []alerts.BudgetAlert) error
}

// StoreData adapts the Mongo store to the Data interface.
type StoreData struct {
	Store *store.Store
}

func (s StoreData) Tenants(ctx context.Context) ([]model.Tenant, error) {
	return s.Store.Tenants.List(ctx)
}

func (s StoreData) RecurringIncomes(ctx context.Context, tenantID string) ([]model.Income, error) {
	return s.Store.Incomes.List(ctx, tenantID, store.Query{Recurring: true})
}

func (s StoreData) RecurringExpenses(ctx context.Context, tenantID string) ([]model.Expense, error) {
	return s.Store.Expenses.List(ctx, tenantID, store.Query{Recurring: true})
}

func (s StoreData) InsertIncome(ctx context.Context, in model.Income) error {
	return s.Store.Incomes.Insert(ctx, in)
}

func (s StoreData) InsertExpense(ctx context.Context, ex model.Expense) error {
	return s.Store.Expenses.Insert(ctx, ex)
}

func (s StoreData) Projects(ctx context.Context, tenantID string) ([]model.Project, error) {
	return s.Store.Projects.List(ctx, tenantID, store.Query{})
}

type Service struct {
	data   Data
	adv    Adviser
	notify Notifier

	digestSpec    string
	recurringSpec string

	cron *rcron.Cron
	now  func() time.Time
}

func NewService(cfg config.SchedConfig, data Data, adv Adviser, notify Notifier) *Service {
	return &Service{
		data:          data,
		adv:           adv,
		notify:        notify,
		digestSpec:    cfg.DigestCron,
		recurringSpec: cfg.RecurringCron,
		now:           time.Now,
	}
}

func (s *Service) Start() error {
	s.cron = rcron.New(rcron.WithSeconds())

	if _, err := s.cron.AddFunc(s.recurringSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if n, err := s.RunRecurring(ctx); err != nil {
			log.Printf("[sched] recurring job error: %v", err)
		} else {
			log.Printf("[sched] materialized %d recurring transactions", n)
		}
	}); err != nil {
		return fmt.Errorf("register recurring job (%s): %w", s.recurringSpec, err)
	}

	if _, err := s.cron.AddFunc(s.digestSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := s.RunDigest(ctx); err != nil {
			log.Printf("[sched] digest job error: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("register digest job (%s): %w", s.digestSpec, err)
	}

	s.cron.Start()
	log.Printf("[sched] started (digest %q, recurring %q)", s.digestSpec, s.recurringSpec)
	return nil
}

func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		log.Printf("[sched] stop timeout waiting for running jobs")
	}
	log.Printf("[sched] stopped")
}

// RunRecurring copies every recurring income and expense into the current
// month as a one-off instance. Templates dated within the current month are
// skipped so a freshly added template is not duplicated on its first run.
// Returns the number of records created.
func (s *Service) RunRecurring(ctx context.Context) (int, error) {
	tenants, err := s.data.Tenants(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}

	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	created := 0
	for _, tenant := range tenants {
		incomes, err := s.data.RecurringIncomes(ctx, tenant.ID)
		if err != nil {
			log.Printf("[sched] tenant %s: list recurring incomes: %v", tenant.ID, err)
			continue
		}
		for _, in := range incomes {
			if !in.Date.Before(monthStart) {
				continue
			}
			in.ID = uuid.NewString()
			in.Date = materializedDate(in.Date, now)
			in.Recurring = false
			in.CreatedAt = now
			if err := s.data.InsertIncome(ctx, in); err != nil {
				log.Printf("[sched] tenant %s: insert income: %v", tenant.ID, err)
				continue
			}
			created++
		}

		expenses, err := s.data.RecurringExpenses(ctx, tenant.ID)
		if err != nil {
			log.Printf("[sched] tenant %s: list recurring expenses: %v", tenant.ID, err)
			continue
		}
		for _, ex := range expenses {
			if !ex.Date.Before(monthStart) {
				continue
			}
			ex.ID = uuid.NewString()
			ex.Date = materializedDate(ex.Date, now)
			ex.Recurring = false
			ex.CreatedAt = now
			if err := s.data.InsertExpense(ctx, ex); err != nil {
				log.Printf("[sched] tenant %s: insert expense: %v", tenant.ID, err)
				continue
			}
			created++
		}
	}
	return created, nil
}

// materializedDate keeps the template's day-of-month in the current month,
// clamped to the month's length (a template on the 31st lands on Feb 28).
func materializedDate(template, now time.Time) time.Time {
	day := template.Day()
	if last := lastDayOfMonth(now); day > last {
		day = last
	}
	return time.Date(now.Year(), now.Month(), day, 0, 0, 0, 0, now.Location())
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// RunDigest sends each tenant a short advice digest and flags any project
// whose spend crossed 80% of its budget. A disabled notifier makes this a
// no-op.
func (s *Service) RunDigest(ctx context.Context) error {
	if !s.notify.Enabled() {
		return nil
	}

	tenants, err := s.data.Tenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	var budget []alerts.BudgetAlert
	threshold := decimal.NewFromFloat(0.8)
	for _, tenant := range tenants {
		projects, err := s.data.Projects(ctx, tenant.ID)
		if err != nil {
			log.Printf("[sched] tenant %s: list projects: %v", tenant.ID, err)
			continue
		}
		for _, p := range projects {
			if p.Status == "done" || !p.Budget.IsPositive() {
				continue
			}
			if p.Spent.GreaterThanOrEqual(p.Budget.Mul(threshold)) {
				budget = append(budget, alerts.BudgetAlert{
					TenantID: tenant.ID,
					Category: p.Name,
					Spent:    p.Spent,
					Budget:   p.Budget,
				})
			}
		}

		resp := s.adv.Advise(ctx, advisor.Request{TenantID: tenant.ID, Focus: advisor.FocusGeneral})
		var b strings.Builder
		fmt.Fprintf(&b, "Daily digest for %s:\n%s", tenant.Name, resp.Advice)
		if resp.Degraded {
			b.WriteString("\n(advice service degraded; general guidance only)")
		}
		if err := s.notify.Notify(b.String()); err != nil {
			log.Printf("[sched] tenant %s: send digest: %v", tenant.ID, err)
		}
	}

	if err := s.notify.NotifyBudget(budget); err != nil {
		return fmt.Errorf("send budget alerts: %w", err)
	}
	return nil
}
