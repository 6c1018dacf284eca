package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pennywiseapp/pennywise/internal/model"
)

// document is the persisted representation of a model record. Conversion back
// to the model may fail on a corrupted decimal string.
type document[M any] interface {
	toModel() (M, error)
}

// Repo implements tenant-scoped CRUD for one record type. M is the model, D
// the persisted document shape.
type Repo[M any, D document[M]] struct {
	coll  *mongo.Collection
	toDoc func(M) D
}

func newRepo[M any, D document[M]](coll *mongo.Collection, toDoc func(M) D) *Repo[M, D] {
	return &Repo[M, D]{coll: coll, toDoc: toDoc}
}

// Query narrows List results.
type Query struct {
	From time.Time
	To   time.Time
	// Recurring filters to recurring records only when true.
	Recurring bool
}

func (r *Repo[M, D]) Insert(ctx context.Context, m M) error {
	if _, err := r.coll.InsertOne(ctx, r.toDoc(m)); err != nil {
		return fmt.Errorf("store: insert: %w", err)
	}
	return nil
}

func (r *Repo[M, D]) Get(ctx context.Context, tenantID, id string) (M, error) {
	var zero M
	var doc D
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("store: get %s: %w", id, err)
	}
	return doc.toModel()
}

// Update replaces the record; the id and tenant come from the filter so a
// tenant can never overwrite another tenant's document.
func (r *Repo[M, D]) Update(ctx context.Context, tenantID, id string, m M) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}, r.toDoc(m))
	if err != nil {
		return fmt.Errorf("store: update %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo[M, D]) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo[M, D]) List(ctx context.Context, tenantID string, q Query) ([]M, error) {
	filter := bson.M{"tenant_id": tenantID}
	dateRange := bson.M{}
	if !q.From.IsZero() {
		dateRange["$gte"] = q.From
	}
	if !q.To.IsZero() {
		dateRange["$lte"] = q.To
	}
	if len(dateRange) > 0 {
		filter["date"] = dateRange
	}
	if q.Recurring {
		filter["recurring"] = true
	}

	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: list decode: %w", err)
	}
	out := make([]M, 0, len(docs))
	for _, doc := range docs {
		m, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("store: corrupt %s %q: %w", field, raw, err)
	}
	return d, nil
}

type incomeDoc struct {
	ID        string    `bson:"_id"`
	TenantID  string    `bson:"tenant_id"`
	Source    string    `bson:"source"`
	Category  string    `bson:"category"`
	Amount    string    `bson:"amount"`
	Currency  string    `bson:"currency"`
	Date      time.Time `bson:"date"`
	Recurring bool      `bson:"recurring"`
	Note      string    `bson:"note,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func incomeToDoc(m model.Income) incomeDoc {
	return incomeDoc{
		ID: m.ID, TenantID: m.TenantID, Source: m.Source, Category: m.Category,
		Amount: m.Amount.String(), Currency: m.Currency, Date: m.Date,
		Recurring: m.Recurring, Note: m.Note, CreatedAt: m.CreatedAt,
	}
}

func (d incomeDoc) toModel() (model.Income, error) {
	amount, err := parseAmount(d.Amount, "income amount")
	if err != nil {
		return model.Income{}, err
	}
	return model.Income{
		ID: d.ID, TenantID: d.TenantID, Source: d.Source, Category: d.Category,
		Amount: amount, Currency: d.Currency, Date: d.Date,
		Recurring: d.Recurring, Note: d.Note, CreatedAt: d.CreatedAt,
	}, nil
}

type expenseDoc struct {
	ID        string    `bson:"_id"`
	TenantID  string    `bson:"tenant_id"`
	Merchant  string    `bson:"merchant"`
	Category  string    `bson:"category"`
	Amount    string    `bson:"amount"`
	Currency  string    `bson:"currency"`
	Date      time.Time `bson:"date"`
	Recurring bool      `bson:"recurring"`
	Note      string    `bson:"note,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func expenseToDoc(m model.Expense) expenseDoc {
	return expenseDoc{
		ID: m.ID, TenantID: m.TenantID, Merchant: m.Merchant, Category: m.Category,
		Amount: m.Amount.String(), Currency: m.Currency, Date: m.Date,
		Recurring: m.Recurring, Note: m.Note, CreatedAt: m.CreatedAt,
	}
}

func (d expenseDoc) toModel() (model.Expense, error) {
	amount, err := parseAmount(d.Amount, "expense amount")
	if err != nil {
		return model.Expense{}, err
	}
	return model.Expense{
		ID: d.ID, TenantID: d.TenantID, Merchant: d.Merchant, Category: d.Category,
		Amount: amount, Currency: d.Currency, Date: d.Date,
		Recurring: d.Recurring, Note: d.Note, CreatedAt: d.CreatedAt,
	}, nil
}

type taxDoc struct {
	ID        string    `bson:"_id"`
	TenantID  string    `bson:"tenant_id"`
	Year      int       `bson:"year"`
	Kind      string    `bson:"kind"`
	Amount    string    `bson:"amount"`
	Paid      bool      `bson:"paid"`
	DueDate   time.Time `bson:"due_date"`
	CreatedAt time.Time `bson:"created_at"`
}

func taxToDoc(m model.TaxRecord) taxDoc {
	return taxDoc{
		ID: m.ID, TenantID: m.TenantID, Year: m.Year, Kind: m.Kind,
		Amount: m.Amount.String(), Paid: m.Paid, DueDate: m.DueDate, CreatedAt: m.CreatedAt,
	}
}

func (d taxDoc) toModel() (model.TaxRecord, error) {
	amount, err := parseAmount(d.Amount, "tax amount")
	if err != nil {
		return model.TaxRecord{}, err
	}
	return model.TaxRecord{
		ID: d.ID, TenantID: d.TenantID, Year: d.Year, Kind: d.Kind,
		Amount: amount, Paid: d.Paid, DueDate: d.DueDate, CreatedAt: d.CreatedAt,
	}, nil
}

type investmentDoc struct {
	ID         string    `bson:"_id"`
	TenantID   string    `bson:"tenant_id"`
	Symbol     string    `bson:"symbol"`
	Kind       string    `bson:"kind"`
	Units      string    `bson:"units"`
	CostBasis  string    `bson:"cost_basis"`
	AcquiredAt time.Time `bson:"acquired_at"`
	CreatedAt  time.Time `bson:"created_at"`
}

func investmentToDoc(m model.Investment) investmentDoc {
	return investmentDoc{
		ID: m.ID, TenantID: m.TenantID, Symbol: m.Symbol, Kind: m.Kind,
		Units: m.Units.String(), CostBasis: m.CostBasis.String(),
		AcquiredAt: m.AcquiredAt, CreatedAt: m.CreatedAt,
	}
}

func (d investmentDoc) toModel() (model.Investment, error) {
	units, err := parseAmount(d.Units, "investment units")
	if err != nil {
		return model.Investment{}, err
	}
	cost, err := parseAmount(d.CostBasis, "investment cost basis")
	if err != nil {
		return model.Investment{}, err
	}
	return model.Investment{
		ID: d.ID, TenantID: d.TenantID, Symbol: d.Symbol, Kind: d.Kind,
		Units: units, CostBasis: cost, AcquiredAt: d.AcquiredAt, CreatedAt: d.CreatedAt,
	}, nil
}

type projectDoc struct {
	ID        string    `bson:"_id"`
	TenantID  string    `bson:"tenant_id"`
	Name      string    `bson:"name"`
	Budget    string    `bson:"budget"`
	Spent     string    `bson:"spent"`
	Status    string    `bson:"status"`
	Deadline  time.Time `bson:"deadline,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func projectToDoc(m model.Project) projectDoc {
	return projectDoc{
		ID: m.ID, TenantID: m.TenantID, Name: m.Name,
		Budget: m.Budget.String(), Spent: m.Spent.String(),
		Status: m.Status, Deadline: m.Deadline, CreatedAt: m.CreatedAt,
	}
}

func (d projectDoc) toModel() (model.Project, error) {
	budget, err := parseAmount(d.Budget, "project budget")
	if err != nil {
		return model.Project{}, err
	}
	spent, err := parseAmount(d.Spent, "project spent")
	if err != nil {
		return model.Project{}, err
	}
	return model.Project{
		ID: d.ID, TenantID: d.TenantID, Name: d.Name,
		Budget: budget, Spent: spent, Status: d.Status,
		Deadline: d.Deadline, CreatedAt: d.CreatedAt,
	}, nil
}

// TenantRepo manages tenant records; tenants are not tenant-scoped themselves
// so they get their own small repository.
type TenantRepo struct {
	coll *mongo.Collection
}

func (r *TenantRepo) Upsert(ctx context.Context, t model.Tenant) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": t.ID}, t, opts)
	if err != nil {
		return fmt.Errorf("store: upsert tenant %s: %w", t.ID, err)
	}
	return nil
}

func (r *TenantRepo) Get(ctx context.Context, id string) (model.Tenant, error) {
	var t model.Tenant
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Tenant{}, ErrNotFound
		}
		return model.Tenant{}, fmt.Errorf("store: get tenant %s: %w", id, err)
	}
	return t, nil
}

func (r *TenantRepo) List(ctx context.Context) ([]model.Tenant, error) {
	cursor, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("store: list tenants: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()
	var out []model.Tenant
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("store: list tenants decode: %w", err)
	}
	return out, nil
}
