package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/deepaktammali/litellm/internal/timeutil"
)

var (
	// ErrNotFound signals that a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey signals a uniqueness-constraint violation.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Customer is the billed end-user entity.
type Customer struct {
	UserID    string
	Alias     *string
	Blocked   bool
	BudgetID  *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CustomerUpdate carries the mutable fields of a customer; nil fields are
// left untouched (partial update).
type CustomerUpdate struct {
	Alias    *string
	Blocked  *bool
	BudgetID *uuid.UUID
}

// SpendLogEntry is one billed request record. The table is append-only;
// this service only ever reads it.
type SpendLogEntry struct {
	RequestID        uuid.UUID
	EndUser          string
	Model            string
	Spend            decimal.Decimal
	TotalTokens      int64
	PromptTokens     int64
	CompletionTokens int64
	CreatedAt        time.Time
}

// SpendTotals is the aggregate of a set of spend log rows.
type SpendTotals struct {
	Spend            decimal.Decimal
	Requests         int64
	TotalTokens      int64
	PromptTokens     int64
	CompletionTokens int64
}

// CustomerSpendRow is one grouped-aggregation row of the paginated report.
type CustomerSpendRow struct {
	EndUserID string
	Alias     *string
	Totals    SpendTotals
}

// ModelSpendRow is one per-model breakdown row for a single customer.
type ModelSpendRow struct {
	Model  string
	Totals SpendTotals
}

// CustomerStore exposes CRUD over the customer table.
type CustomerStore interface {
	GetCustomer(ctx context.Context, userID string) (Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	ListCustomersByID(ctx context.Context, userIDs []string) ([]Customer, error)
	CreateCustomer(ctx context.Context, customer Customer) (Customer, error)
	UpdateCustomer(ctx context.Context, userID string, update CustomerUpdate) (Customer, error)
	DeleteCustomers(ctx context.Context, userIDs []string) error
	SetCustomersBlocked(ctx context.Context, userIDs []string, blocked bool) ([]Customer, error)
}

// SpendStore exposes the aggregation queries over the spend log.
type SpendStore interface {
	CountSpendingCustomers(ctx context.Context, r timeutil.DateRange) (int64, error)
	CustomerSpendPage(ctx context.Context, r timeutil.DateRange, limit, offset int64) ([]CustomerSpendRow, error)
	CustomerSpendTotals(ctx context.Context, userID string, r timeutil.DateRange) (SpendTotals, error)
	CustomerSpendByModel(ctx context.Context, userID string, r timeutil.DateRange) ([]ModelSpendRow, error)
	ListSpendLogs(ctx context.Context, r timeutil.DateRange) ([]SpendLogEntry, error)
}

// APIKey is a stored authorization credential. Tokens are presented as
// "sk-<prefix>.<secret>"; only the argon2 hash of the secret is persisted.
type APIKey struct {
	Prefix     string
	SecretHash string
	UserID     string
	Role       string
	CreatedAt  time.Time
}

// APIKeyStore resolves presented API keys.
type APIKeyStore interface {
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (APIKey, error)
	CreateAPIKey(ctx context.Context, key APIKey) error
}
