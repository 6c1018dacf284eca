package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/pennywiseapp/pennywise/internal/advisor"
	"github.com/pennywiseapp/pennywise/internal/model"
	"github.com/pennywiseapp/pennywise/internal/store"
)

type entry[M any] struct {
	tenant, id string
	m          M
}

// memRecords is an in-memory Records implementation. key extracts the tenant
// and id stamped onto a record by the handler.
type memRecords[M any] struct {
	key   func(M) (tenant, id string)
	items []entry[M]
}

func (f *memRecords[M]) Insert(ctx context.Context, m M) error {
	tenant, id := f.key(m)
	f.items = append(f.items, entry[M]{tenant: tenant, id: id, m: m})
	return nil
}

func (f *memRecords[M]) Get(ctx context.Context, tenantID, id string) (M, error) {
	for _, e := range f.items {
		if e.tenant == tenantID && e.id == id {
			return e.m, nil
		}
	}
	var zero M
	return zero, store.ErrNotFound
}

func (f *memRecords[M]) Update(ctx context.Context, tenantID, id string, m M) error {
	for i, e := range f.items {
		if e.tenant == tenantID && e.id == id {
			f.items[i].m = m
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *memRecords[M]) Delete(ctx context.Context, tenantID, id string) error {
	for i, e := range f.items {
		if e.tenant == tenantID && e.id == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *memRecords[M]) List(ctx context.Context, tenantID string, q store.Query) ([]M, error) {
	var out []M
	for _, e := range f.items {
		if e.tenant == tenantID {
			out = append(out, e.m)
		}
	}
	return out, nil
}

type memTenants struct {
	tenants map[string]model.Tenant
}

func (f *memTenants) Get(ctx context.Context, id string) (model.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return model.Tenant{}, store.ErrNotFound
	}
	return t, nil
}

func (f *memTenants) Upsert(ctx context.Context, t model.Tenant) error {
	f.tenants[t.ID] = t
	return nil
}

type fakeDash struct {
	summary    store.Summary
	lastTenant string
	lastQuery  store.Query
}

func (f *fakeDash) Dashboard(ctx context.Context, tenantID string, q store.Query) (store.Summary, error) {
	f.lastTenant, f.lastQuery = tenantID, q
	return f.summary, nil
}

type fakeAdviser struct {
	resp advisor.Response
	last advisor.Request
}

func (f *fakeAdviser) Advise(ctx context.Context, req advisor.Request) advisor.Response {
	f.last = req
	return f.resp
}

type testEnv struct {
	api      *API
	incomes  *memRecords[model.Income]
	projects *memRecords[model.Project]
	tenants  *memTenants
	dash     *fakeDash
	adviser  *fakeAdviser
	router   http.Handler
}

func newTestEnv() *testEnv {
	env := &testEnv{
		incomes: &memRecords[model.Income]{key: func(m model.Income) (string, string) {
			return m.TenantID, m.ID
		}},
		projects: &memRecords[model.Project]{key: func(m model.Project) (string, string) {
			return m.TenantID, m.ID
		}},
		tenants: &memTenants{tenants: make(map[string]model.Tenant)},
		dash:    &fakeDash{},
		adviser: &fakeAdviser{resp: advisor.Response{Advice: "ok"}},
	}
	env.api = &API{
		Incomes: env.incomes,
		Expenses: &memRecords[model.Expense]{key: func(m model.Expense) (string, string) {
			return m.TenantID, m.ID
		}},
		Taxes: &memRecords[model.TaxRecord]{key: func(m model.TaxRecord) (string, string) {
			return m.TenantID, m.ID
		}},
		Investments: &memRecords[model.Investment]{key: func(m model.Investment) (string, string) {
			return m.TenantID, m.ID
		}},
		Projects: env.projects,
		Tenants:  env.tenants,
		Dash:     env.dash,
		Adviser:  env.adviser,
		Tokens:   map[string]string{"tok-1": "t1", "tok-2": "t2"},
	}
	env.router = env.api.Router()
	return env
}

func (env *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthzIsOpen(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/incomes/", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/incomes/", "bogus", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/incomes/", "tok-1", "")
	if rec.Code != http.StatusOK {
		t.Errorf("good token: status = %d, want 200: %s", rec.Code, rec.Body)
	}
}

func TestCreateIncome(t *testing.T) {
	env := newTestEnv()
	body := `{"source":"acme","category":"salary","amount":"5000","tenantId":"spoofed"}`
	rec := env.do(t, http.MethodPost, "/api/incomes/", "tok-1", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}

	var got model.Income
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID == "" {
		t.Error("response should carry a generated id")
	}
	if got.TenantID != "t1" {
		t.Errorf("tenantId = %q, want t1 from the token, not the body", got.TenantID)
	}
	if got.Currency != "USD" {
		t.Errorf("currency = %q, want USD default", got.Currency)
	}
	if len(env.incomes.items) != 1 {
		t.Errorf("stored %d records, want 1", len(env.incomes.items))
	}
}

func TestCreateIncome_Validation(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/incomes/", "tok-1", `{"category":"lottery","amount":"5"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad category: status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/incomes/", "tok-1", `{"category":"salary","amount":"0"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero amount: status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/incomes/", "tok-1", `{broken`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", rec.Code)
	}
}

func TestGetIncome_TenantIsolation(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodPost, "/api/incomes/", "tok-1", `{"category":"salary","amount":"100"}`)
	var created model.Income
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = env.do(t, http.MethodGet, "/api/incomes/"+created.ID, "tok-1", "")
	if rec.Code != http.StatusOK {
		t.Errorf("owner get: status = %d, want 200", rec.Code)
	}

	// Another tenant cannot see the record.
	rec = env.do(t, http.MethodGet, "/api/incomes/"+created.ID, "tok-2", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-tenant get: status = %d, want 404", rec.Code)
	}
}

func TestListIncomes_EmptyIsArray(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/incomes/", "tok-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want empty array", body)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodPost, "/api/projects/", "tok-1", `{"name":"kitchen","budget":"1000"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d: %s", rec.Code, rec.Body)
	}
	var created model.Project
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = env.do(t, http.MethodPut, "/api/projects/"+created.ID, "tok-1",
		`{"name":"kitchen","budget":"1000","spent":"250","status":"active"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d: %s", rec.Code, rec.Body)
	}
	got, err := env.projects.Get(context.Background(), "t1", created.ID)
	if err != nil {
		t.Fatalf("stored project missing: %v", err)
	}
	if got.Status != "active" || !got.Spent.Equal(decimal.NewFromInt(250)) {
		t.Errorf("stored = %+v", got)
	}

	rec = env.do(t, http.MethodDelete, "/api/projects/"+created.ID, "tok-1", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/api/projects/"+created.ID, "tok-1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("double delete: status = %d, want 404", rec.Code)
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv()
	env.dash.summary = store.Summary{TotalIncome: decimal.NewFromInt(100)}

	rec := env.do(t, http.MethodGet, "/api/dashboard?from=2026-01-01&to=2026-06-30", "tok-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if env.dash.lastTenant != "t1" {
		t.Errorf("dashboard tenant = %q, want t1", env.dash.lastTenant)
	}
	if env.dash.lastQuery.From.IsZero() || env.dash.lastQuery.To.IsZero() {
		t.Errorf("query window not parsed: %+v", env.dash.lastQuery)
	}

	rec = env.do(t, http.MethodGet, "/api/dashboard?from=yesterday", "tok-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date: status = %d, want 400", rec.Code)
	}
}

func TestAdvice(t *testing.T) {
	env := newTestEnv()
	env.adviser.resp = advisor.Response{Advice: "diversify", UsedContext: []string{"market"}}

	rec := env.do(t, http.MethodPost, "/api/advice", "tok-1", `{"question":"what now?","focus":"investment"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if env.adviser.last.TenantID != "t1" {
		t.Errorf("adviser tenant = %q, want t1", env.adviser.last.TenantID)
	}
	if env.adviser.last.Focus != advisor.FocusInvestment {
		t.Errorf("focus = %q", env.adviser.last.Focus)
	}
	var resp advisor.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Advice != "diversify" {
		t.Errorf("advice = %q", resp.Advice)
	}

	rec = env.do(t, http.MethodPost, "/api/advice", "tok-1", `{"focus":"astrology"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad focus: status = %d, want 400", rec.Code)
	}
}

func TestTenantProfile(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/tenant", "tok-1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unset profile: status = %d, want 404", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/api/tenant", "tok-1", `{"name":"Alice","email":"a@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: status = %d: %s", rec.Code, rec.Body)
	}
	var got model.Tenant
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "t1" {
		t.Errorf("id = %q, want t1", got.ID)
	}
	if got.RiskTolerance != "moderate" {
		t.Errorf("riskTolerance = %q, want moderate default", got.RiskTolerance)
	}

	rec = env.do(t, http.MethodPut, "/api/tenant", "tok-1", `{"riskTolerance":"yolo"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad risk: status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/tenant", "tok-1", "")
	if rec.Code != http.StatusOK {
		t.Errorf("get after put: status = %d, want 200", rec.Code)
	}
}
