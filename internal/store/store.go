// Package store persists finance records to MongoDB, one collection per
// record type, every document keyed by tenant. Monetary fields are stored as
// canonical decimal strings and converted at the boundary.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/pennywiseapp/pennywise/internal/model"
)

// ErrNotFound is returned when a record does not exist for the tenant.
var ErrNotFound = errors.New("store: not found")

const (
	defaultDatabase   = "pennywise"
	defaultOpTimeout  = 5 * time.Second
	collIncomes       = "incomes"
	collExpenses      = "expenses"
	collTaxes         = "taxes"
	collInvestments   = "investments"
	collProjects      = "projects"
	collTenants       = "tenants"
)

// Store bundles the per-type repositories over one database handle.
type Store struct {
	client *mongo.Client

	Incomes     *Repo[model.Income, incomeDoc]
	Expenses    *Repo[model.Expense, expenseDoc]
	Taxes       *Repo[model.TaxRecord, taxDoc]
	Investments *Repo[model.Investment, investmentDoc]
	Projects    *Repo[model.Project, projectDoc]
	Tenants     *TenantRepo
}

// Connect dials MongoDB and returns a ready Store. database may be empty to
// use the default.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("store: mongo uri is required")
	}
	if database == "" {
		database = defaultDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return New(client, database), nil
}

// New builds a Store over an already connected client.
func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:      client,
		Incomes:     newRepo(db.Collection(collIncomes), incomeToDoc),
		Expenses:    newRepo(db.Collection(collExpenses), expenseToDoc),
		Taxes:       newRepo(db.Collection(collTaxes), taxToDoc),
		Investments: newRepo(db.Collection(collInvestments), investmentToDoc),
		Projects:    newRepo(db.Collection(collProjects), projectToDoc),
		Tenants:     &TenantRepo{coll: db.Collection(collTenants)},
	}
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
