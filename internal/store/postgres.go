package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/deepaktammali/litellm/internal/timeutil"
)

const uniqueViolationCode = "23505"

// Postgres implements the store contracts over a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const customerColumns = "user_id, alias, blocked, budget_id, created_at, updated_at"

func scanCustomer(row pgx.Row) (Customer, error) {
	var (
		c        Customer
		alias    pgtype.Text
		budgetID pgtype.UUID
	)
	if err := row.Scan(&c.UserID, &alias, &c.Blocked, &budgetID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Customer{}, err
	}
	if alias.Valid {
		c.Alias = &alias.String
	}
	if budgetID.Valid {
		id := uuid.UUID(budgetID.Bytes)
		c.BudgetID = &id
	}
	return c, nil
}

func (p *Postgres) GetCustomer(ctx context.Context, userID string) (Customer, error) {
	row := p.pool.QueryRow(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE user_id = $1", userID)
	customer, err := scanCustomer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return customer, nil
}

func (p *Postgres) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT "+customerColumns+" FROM customers ORDER BY created_at, user_id")
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()
	return collectCustomers(rows)
}

func (p *Postgres) ListCustomersByID(ctx context.Context, userIDs []string) ([]Customer, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE user_id = ANY($1) ORDER BY created_at, user_id", userIDs)
	if err != nil {
		return nil, fmt.Errorf("list customers by id: %w", err)
	}
	defer rows.Close()
	return collectCustomers(rows)
}

func (p *Postgres) CreateCustomer(ctx context.Context, customer Customer) (Customer, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO customers (user_id, alias, blocked, budget_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+customerColumns,
		customer.UserID, textOrNull(customer.Alias), customer.Blocked, uuidOrNull(customer.BudgetID))
	created, err := scanCustomer(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return Customer{}, ErrDuplicateKey
		}
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return created, nil
}

func (p *Postgres) UpdateCustomer(ctx context.Context, userID string, update CustomerUpdate) (Customer, error) {
	set := []string{"updated_at = now()"}
	args := []any{userID}
	if update.Alias != nil {
		args = append(args, *update.Alias)
		set = append(set, fmt.Sprintf("alias = $%d", len(args)))
	}
	if update.Blocked != nil {
		args = append(args, *update.Blocked)
		set = append(set, fmt.Sprintf("blocked = $%d", len(args)))
	}
	if update.BudgetID != nil {
		args = append(args, *update.BudgetID)
		set = append(set, fmt.Sprintf("budget_id = $%d", len(args)))
	}

	row := p.pool.QueryRow(ctx,
		"UPDATE customers SET "+strings.Join(set, ", ")+" WHERE user_id = $1 RETURNING "+customerColumns,
		args...)
	updated, err := scanCustomer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, fmt.Errorf("update customer: %w", err)
	}
	return updated, nil
}

func (p *Postgres) DeleteCustomers(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	if _, err := p.pool.Exec(ctx, "DELETE FROM customers WHERE user_id = ANY($1)", userIDs); err != nil {
		return fmt.Errorf("delete customers: %w", err)
	}
	return nil
}

func (p *Postgres) SetCustomersBlocked(ctx context.Context, userIDs []string, blocked bool) ([]Customer, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, `
		UPDATE customers SET blocked = $2, updated_at = now()
		WHERE user_id = ANY($1)
		RETURNING `+customerColumns, userIDs, blocked)
	if err != nil {
		return nil, fmt.Errorf("set customers blocked: %w", err)
	}
	defer rows.Close()
	return collectCustomers(rows)
}

func collectCustomers(rows pgx.Rows) ([]Customer, error) {
	var out []Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, customer)
	}
	return out, rows.Err()
}

// spendFilter appends created_at bounds for the optional date range and
// returns the WHERE fragment alongside the updated args.
func spendFilter(r timeutil.DateRange, conds []string, args []any) ([]string, []any) {
	if r.HasStart() {
		args = append(args, r.Start())
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if r.HasEnd() {
		args = append(args, r.EndExclusive())
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	return conds, args
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func (p *Postgres) CountSpendingCustomers(ctx context.Context, r timeutil.DateRange) (int64, error) {
	conds, args := spendFilter(r, nil, nil)
	var total int64
	err := p.pool.QueryRow(ctx,
		"SELECT COUNT(DISTINCT end_user) FROM spend_logs"+whereClause(conds), args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count spending customers: %w", err)
	}
	return total, nil
}

func (p *Postgres) CustomerSpendPage(ctx context.Context, r timeutil.DateRange, limit, offset int64) ([]CustomerSpendRow, error) {
	conds, args := spendFilter(r, nil, nil)
	query := fmt.Sprintf(`
		SELECT s.end_user, c.alias,
			COALESCE(SUM(s.spend), 0)::text,
			COUNT(*),
			COALESCE(SUM(s.total_tokens), 0),
			COALESCE(SUM(s.prompt_tokens), 0),
			COALESCE(SUM(s.completion_tokens), 0)
		FROM spend_logs s
		LEFT JOIN customers c ON c.user_id = s.end_user
		%s
		GROUP BY s.end_user, c.alias
		ORDER BY SUM(s.spend) DESC, s.end_user
		LIMIT $%d OFFSET $%d`,
		prefixedWhere(conds, "s."), len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("customer spend page: %w", err)
	}
	defer rows.Close()

	var out []CustomerSpendRow
	for rows.Next() {
		var (
			row      CustomerSpendRow
			alias    pgtype.Text
			spendRaw string
		)
		if err := rows.Scan(&row.EndUserID, &alias, &spendRaw, &row.Totals.Requests,
			&row.Totals.TotalTokens, &row.Totals.PromptTokens, &row.Totals.CompletionTokens); err != nil {
			return nil, err
		}
		if alias.Valid {
			row.Alias = &alias.String
		}
		if row.Totals.Spend, err = decimal.NewFromString(spendRaw); err != nil {
			return nil, fmt.Errorf("parse spend %q: %w", spendRaw, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (p *Postgres) CustomerSpendTotals(ctx context.Context, userID string, r timeutil.DateRange) (SpendTotals, error) {
	conds, args := spendFilter(r, []string{"end_user = $1"}, []any{userID})
	var (
		totals   SpendTotals
		spendRaw string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(spend), 0)::text,
			COUNT(*),
			COALESCE(SUM(total_tokens), 0),
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0)
		FROM spend_logs`+whereClause(conds), args...).
		Scan(&spendRaw, &totals.Requests, &totals.TotalTokens, &totals.PromptTokens, &totals.CompletionTokens)
	if err != nil {
		return SpendTotals{}, fmt.Errorf("customer spend totals: %w", err)
	}
	if totals.Spend, err = decimal.NewFromString(spendRaw); err != nil {
		return SpendTotals{}, fmt.Errorf("parse spend %q: %w", spendRaw, err)
	}
	return totals, nil
}

func (p *Postgres) CustomerSpendByModel(ctx context.Context, userID string, r timeutil.DateRange) ([]ModelSpendRow, error) {
	conds, args := spendFilter(r, []string{"end_user = $1"}, []any{userID})
	rows, err := p.pool.Query(ctx, `
		SELECT model,
			COALESCE(SUM(spend), 0)::text,
			COUNT(*),
			COALESCE(SUM(total_tokens), 0),
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0)
		FROM spend_logs`+whereClause(conds)+`
		GROUP BY model
		ORDER BY SUM(spend) DESC, model`, args...)
	if err != nil {
		return nil, fmt.Errorf("customer spend by model: %w", err)
	}
	defer rows.Close()

	var out []ModelSpendRow
	for rows.Next() {
		var (
			row      ModelSpendRow
			spendRaw string
		)
		if err := rows.Scan(&row.Model, &spendRaw, &row.Totals.Requests,
			&row.Totals.TotalTokens, &row.Totals.PromptTokens, &row.Totals.CompletionTokens); err != nil {
			return nil, err
		}
		if row.Totals.Spend, err = decimal.NewFromString(spendRaw); err != nil {
			return nil, fmt.Errorf("parse spend %q: %w", spendRaw, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSpendLogs(ctx context.Context, r timeutil.DateRange) ([]SpendLogEntry, error) {
	conds, args := spendFilter(r, nil, nil)
	rows, err := p.pool.Query(ctx, `
		SELECT request_id, end_user, model, spend::text,
			total_tokens, prompt_tokens, completion_tokens, created_at
		FROM spend_logs`+whereClause(conds)+" ORDER BY created_at", args...)
	if err != nil {
		return nil, fmt.Errorf("list spend logs: %w", err)
	}
	defer rows.Close()

	var out []SpendLogEntry
	for rows.Next() {
		var (
			entry    SpendLogEntry
			spendRaw string
		)
		if err := rows.Scan(&entry.RequestID, &entry.EndUser, &entry.Model, &spendRaw,
			&entry.TotalTokens, &entry.PromptTokens, &entry.CompletionTokens, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if entry.Spend, err = decimal.NewFromString(spendRaw); err != nil {
			return nil, fmt.Errorf("parse spend %q: %w", spendRaw, err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (p *Postgres) GetAPIKeyByPrefix(ctx context.Context, prefix string) (APIKey, error) {
	var key APIKey
	err := p.pool.QueryRow(ctx, `
		SELECT prefix, secret_hash, user_id, role, created_at
		FROM api_keys WHERE prefix = $1`, prefix).
		Scan(&key.Prefix, &key.SecretHash, &key.UserID, &key.Role, &key.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return APIKey{}, ErrNotFound
	}
	if err != nil {
		return APIKey{}, fmt.Errorf("get api key: %w", err)
	}
	return key, nil
}

func (p *Postgres) CreateAPIKey(ctx context.Context, key APIKey) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO api_keys (prefix, secret_hash, user_id, role)
		VALUES ($1, $2, $3, $4)`,
		key.Prefix, key.SecretHash, key.UserID, key.Role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func prefixedWhere(conds []string, prefix string) string {
	if len(conds) == 0 {
		return ""
	}
	qualified := make([]string, 0, len(conds))
	for _, cond := range conds {
		qualified = append(qualified, prefix+cond)
	}
	return "WHERE " + strings.Join(qualified, " AND ")
}

func textOrNull(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func uuidOrNull(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}
