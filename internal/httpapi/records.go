package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pennywiseapp/pennywise/internal/model"
	"github.com/pennywiseapp/pennywise/internal/store"
)

// Records is tenant-scoped CRUD over one record type.
type Records[M any] interface {
	Insert(ctx context.Context, m M) error
	Get(ctx context.Context, tenantID, id string) (M, error)
	Update(ctx context.Context, tenantID, id string, m M) error
	Delete(ctx context.Context, tenantID, id string) error
	List(ctx context.Context, tenantID string, q store.Query) ([]M, error)
}

// normalizeFunc stamps ownership onto a decoded record and validates it.
type normalizeFunc[M any] func(m *M, tenantID, id string, now time.Time) error

type resource[M any] struct {
	repo      Records[M]
	normalize normalizeFunc[M]
}

func mountRecords[M any](r chi.Router, path string, repo Records[M], normalize normalizeFunc[M]) {
	res := resource[M]{repo: repo, normalize: normalize}
	r.Route(path, func(r chi.Router) {
		r.Get("/", res.list)
		r.Post("/", res.create)
		r.Get("/{id}", res.get)
		r.Put("/{id}", res.update)
		r.Delete("/{id}", res.delete)
	})
}

func (res resource[M]) create(w http.ResponseWriter, r *http.Request) {
	var m M
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := res.normalize(&m, TenantID(r.Context()), uuid.NewString(), time.Now()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := res.repo.Insert(r.Context(), m); err != nil {
		serverError(w, "create record", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (res resource[M]) get(w http.ResponseWriter, r *http.Request) {
	m, err := res.repo.Get(r.Context(), TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		serverError(w, "get record", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (res resource[M]) update(w http.ResponseWriter, r *http.Request) {
	var m M
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id := chi.URLParam(r, "id")
	if err := res.normalize(&m, TenantID(r.Context()), id, time.Now()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := res.repo.Update(r.Context(), TenantID(r.Context()), id, m); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		serverError(w, "update record", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (res resource[M]) delete(w http.ResponseWriter, r *http.Request) {
	err := res.repo.Delete(r.Context(), TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		serverError(w, "delete record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (res resource[M]) list(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := res.repo.List(r.Context(), TenantID(r.Context()), q)
	if err != nil {
		serverError(w, "list records", err)
		return
	}
	if out == nil {
		out = []M{}
	}
	writeJSON(w, http.StatusOK, out)
}

// queryFromRequest parses the shared list filters: from, to (date or
// RFC 3339), recurring.
func queryFromRequest(r *http.Request) (store.Query, error) {
	var q store.Query
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if q.From, err = parseTime(raw); err != nil {
			return q, fmt.Errorf("invalid from date %q", raw)
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if q.To, err = parseTime(raw); err != nil {
			return q, fmt.Errorf("invalid to date %q", raw)
		}
	}
	q.Recurring = r.URL.Query().Get("recurring") == "true"
	return q, nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func normalizeIncome(m *model.Income, tenantID, id string, now time.Time) error {
	m.ID = id
	m.TenantID = tenantID
	if !m.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if !model.ValidCategory(m.Category, model.IncomeCategories) {
		return fmt.Errorf("category must be one of: %s", strings.Join(model.IncomeCategories, ", "))
	}
	if m.Currency == "" {
		m.Currency = "USD"
	}
	if m.Date.IsZero() {
		m.Date = now
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	return nil
}

func normalizeExpense(m *model.Expense, tenantID, id string, now time.Time) error {
	m.ID = id
	m.TenantID = tenantID
	if !m.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if !model.ValidCategory(m.Category, model.ExpenseCategories) {
		return fmt.Errorf("category must be one of: %s", strings.Join(model.ExpenseCategories, ", "))
	}
	if m.Currency == "" {
		m.Currency = "USD"
	}
	if m.Date.IsZero() {
		m.Date = now
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	return nil
}

var taxKinds = []string{"income", "property", "capital-gains"}

func normalizeTax(m *model.TaxRecord, tenantID, id string, now time.Time) error {
	m.ID = id
	m.TenantID = tenantID
	if m.Year < 1900 || m.Year > now.Year()+1 {
		return fmt.Errorf("year %d out of range", m.Year)
	}
	if !model.ValidCategory(m.Kind, taxKinds) {
		return fmt.Errorf("kind must be one of: %s", strings.Join(taxKinds, ", "))
	}
	if m.Amount.IsNegative() {
		return fmt.Errorf("amount must not be negative")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	return nil
}

var investmentKinds = []string{"stock", "etf", "bond", "crypto", "cash"}

func normalizeInvestment(m *model.Investment, tenantID, id string, now time.Time) error {
	m.ID = id
	m.TenantID = tenantID
	m.Symbol = strings.ToUpper(strings.TrimSpace(m.Symbol))
	if m.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !model.ValidCategory(m.Kind, investmentKinds) {
		return fmt.Errorf("kind must be one of: %s", strings.Join(investmentKinds, ", "))
	}
	if !m.Units.IsPositive() {
		return fmt.Errorf("units must be positive")
	}
	if m.CostBasis.IsNegative() {
		return fmt.Errorf("costBasis must not be negative")
	}
	if m.AcquiredAt.IsZero() {
		m.AcquiredAt = now
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	return nil
}

var projectStatuses = []string{"planned", "active", "done"}

func normalizeProject(m *model.Project, tenantID, id string, now time.Time) error {
	m.ID = id
	m.TenantID = tenantID
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if m.Status == "" {
		m.Status = "planned"
	}
	if !model.ValidCategory(m.Status, projectStatuses) {
		return fmt.Errorf("status must be one of: %s", strings.Join(projectStatuses, ", "))
	}
	if m.Budget.IsNegative() || m.Spent.IsNegative() {
		return fmt.Errorf("budget and spent must not be negative")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	return nil
}
