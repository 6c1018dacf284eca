// Package model defines the finance records stored per tenant. Monetary
// amounts use decimal arithmetic and serialize as strings.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense categories accepted at the API edge.
var ExpenseCategories = []string{
	"housing", "food", "transport", "utilities", "health",
	"entertainment", "education", "subscriptions", "other",
}

// Income categories accepted at the API edge.
var IncomeCategories = []string{
	"salary", "freelance", "investment", "rental", "other",
}

// Risk tolerance levels for investment advice.
var RiskLevels = []string{"conservative", "moderate", "aggressive"}

type Income struct {
	ID        string          `json:"id" bson:"_id"`
	TenantID  string          `json:"tenantId" bson:"tenant_id"`
	Source    string          `json:"source" bson:"source"`
	Category  string          `json:"category" bson:"category"`
	Amount    decimal.Decimal `json:"amount" bson:"amount"`
	Currency  string          `json:"currency" bson:"currency"`
	Date      time.Time       `json:"date" bson:"date"`
	Recurring bool            `json:"recurring" bson:"recurring"`
	Note      string          `json:"note,omitempty" bson:"note,omitempty"`
	CreatedAt time.Time       `json:"createdAt" bson:"created_at"`
}

type Expense struct {
	ID        string          `json:"id" bson:"_id"`
	TenantID  string          `json:"tenantId" bson:"tenant_id"`
	Merchant  string          `json:"merchant" bson:"merchant"`
	Category  string          `json:"category" bson:"category"`
	Amount    decimal.Decimal `json:"amount" bson:"amount"`
	Currency  string          `json:"currency" bson:"currency"`
	Date      time.Time       `json:"date" bson:"date"`
	Recurring bool            `json:"recurring" bson:"recurring"`
	Note      string          `json:"note,omitempty" bson:"note,omitempty"`
	CreatedAt time.Time       `json:"createdAt" bson:"created_at"`
}

type TaxRecord struct {
	ID        string          `json:"id" bson:"_id"`
	TenantID  string          `json:"tenantId" bson:"tenant_id"`
	Year      int             `json:"year" bson:"year"`
	Kind      string          `json:"kind" bson:"kind"` // income, property, capital-gains
	Amount    decimal.Decimal `json:"amount" bson:"amount"`
	Paid      bool            `json:"paid" bson:"paid"`
	DueDate   time.Time       `json:"dueDate" bson:"due_date"`
	CreatedAt time.Time       `json:"createdAt" bson:"created_at"`
}

type Investment struct {
	ID         string          `json:"id" bson:"_id"`
	TenantID   string          `json:"tenantId" bson:"tenant_id"`
	Symbol     string          `json:"symbol" bson:"symbol"`
	Kind       string          `json:"kind" bson:"kind"` // stock, etf, bond, crypto, cash
	Units      decimal.Decimal `json:"units" bson:"units"`
	CostBasis  decimal.Decimal `json:"costBasis" bson:"cost_basis"`
	AcquiredAt time.Time       `json:"acquiredAt" bson:"acquired_at"`
	CreatedAt  time.Time       `json:"createdAt" bson:"created_at"`
}

type Project struct {
	ID        string          `json:"id" bson:"_id"`
	TenantID  string          `json:"tenantId" bson:"tenant_id"`
	Name      string          `json:"name" bson:"name"`
	Budget    decimal.Decimal `json:"budget" bson:"budget"`
	Spent     decimal.Decimal `json:"spent" bson:"spent"`
	Status    string          `json:"status" bson:"status"` // planned, active, done
	Deadline  time.Time       `json:"deadline,omitempty" bson:"deadline,omitempty"`
	CreatedAt time.Time       `json:"createdAt" bson:"created_at"`
}

type Tenant struct {
	ID            string    `json:"id" bson:"_id"`
	Name          string    `json:"name" bson:"name"`
	Email         string    `json:"email" bson:"email"`
	RiskTolerance string    `json:"riskTolerance" bson:"risk_tolerance"`
	CreatedAt     time.Time `json:"createdAt" bson:"created_at"`
}

// ValidCategory reports whether category is one of allowed.
func ValidCategory(category string, allowed []string) bool {
	for _, c := range allowed {
		if c == category {
			return true
		}
	}
	return false
}
