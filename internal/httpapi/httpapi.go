// Package httpapi exposes the REST surface: per-tenant record CRUD, the
// dashboard aggregate, and advice. Authentication is a static bearer-token
// map resolved to a tenant id by middleware.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pennywiseapp/pennywise/internal/advisor"
	"github.com/pennywiseapp/pennywise/internal/model"
	"github.com/pennywiseapp/pennywise/internal/store"
)

type ctxKey int

const tenantKey ctxKey = iota

// TenantID returns the tenant resolved by the auth middleware, or "".
func TenantID(ctx context.Context) string {
	id, _ := ctx.Value(tenantKey).(string)
	return id
}

// Adviser produces advice for the advice endpoint.
type Adviser interface {
	Advise(ctx context.Context, req advisor.Request) advisor.Response
}

// Dashboards serves the dashboard aggregate.
type Dashboards interface {
	Dashboard(ctx context.Context, tenantID string, q store.Query) (store.Summary, error)
}

// TenantStore reads and writes tenant profiles.
type TenantStore interface {
	Get(ctx context.Context, id string) (model.Tenant, error)
	Upsert(ctx context.Context, t model.Tenant) error
}

// API holds the handler dependencies. Repositories are interfaces so tests
// can run against in-memory fakes.
type API struct {
	Incomes     Records[model.Income]
	Expenses    Records[model.Expense]
	Taxes       Records[model.TaxRecord]
	Investments Records[model.Investment]
	Projects    Records[model.Project]
	Tenants     TenantStore
	Dash        Dashboards
	Adviser     Adviser

	// Tokens maps bearer tokens to tenant ids.
	Tokens map[string]string

	// Now is replaceable for tests.
	Now func() time.Time
}

func (a *API) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Router builds the chi router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(a.auth)

		mountRecords(r, "/incomes", a.Incomes, normalizeIncome)
		mountRecords(r, "/expenses", a.Expenses, normalizeExpense)
		mountRecords(r, "/taxes", a.Taxes, normalizeTax)
		mountRecords(r, "/investments", a.Investments, normalizeInvestment)
		mountRecords(r, "/projects", a.Projects, normalizeProject)

		r.Get("/dashboard", a.handleDashboard)
		r.Post("/advice", a.handleAdvice)
		r.Get("/tenant", a.handleTenantGet)
		r.Put("/tenant", a.handleTenantPut)
	})

	return r
}

// auth resolves the bearer token to a tenant id and stores it on the request
// context. Unknown or missing tokens get 401.
func (a *API) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tenantID, ok := a.Tokens[token]
		if !ok {
			writeError(w, http.StatusUnauthorized, "unknown token")
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := a.Dash.Dashboard(r.Context(), TenantID(r.Context()), q)
	if err != nil {
		serverError(w, "dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type adviceBody struct {
	Question string `json:"question"`
	Focus    string `json:"focus"`
}

// handleAdvice never propagates tool or model failures as 5xx; the advisor
// degrades internally.
func (a *API) handleAdvice(w http.ResponseWriter, r *http.Request) {
	var body adviceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	switch body.Focus {
	case "", advisor.FocusGeneral, advisor.FocusInvestment, advisor.FocusExpense:
	default:
		writeError(w, http.StatusBadRequest, "focus must be general, investment, or expense")
		return
	}
	resp := a.Adviser.Advise(r.Context(), advisor.Request{
		TenantID: TenantID(r.Context()),
		Question: body.Question,
		Focus:    body.Focus,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleTenantGet(w http.ResponseWriter, r *http.Request) {
	t, err := a.Tenants.Get(r.Context(), TenantID(r.Context()))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "tenant profile not set")
			return
		}
		serverError(w, "tenant get", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type tenantBody struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	RiskTolerance string `json:"riskTolerance"`
}

func (a *API) handleTenantPut(w http.ResponseWriter, r *http.Request) {
	var body tenantBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.RiskTolerance == "" {
		body.RiskTolerance = "moderate"
	}
	if !model.ValidCategory(body.RiskTolerance, model.RiskLevels) {
		writeError(w, http.StatusBadRequest, "riskTolerance must be conservative, moderate, or aggressive")
		return
	}

	id := TenantID(r.Context())
	t := model.Tenant{
		ID:            id,
		Name:          body.Name,
		Email:         body.Email,
		RiskTolerance: body.RiskTolerance,
		CreatedAt:     a.now(),
	}
	if existing, err := a.Tenants.Get(r.Context(), id); err == nil {
		t.CreatedAt = existing.CreatedAt
	}
	if err := a.Tenants.Upsert(r.Context(), t); err != nil {
		serverError(w, "tenant upsert", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func serverError(w http.ResponseWriter, op string, err error) {
	log.Printf("[http] %s: %v", op, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
