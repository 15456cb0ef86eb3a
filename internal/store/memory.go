package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deepaktammali/litellm/internal/timeutil"
)

// Memory is an in-process implementation of the store contracts used by
// tests. It mirrors the observable behavior of the Postgres store, including
// grouped-aggregation ordering.
type Memory struct {
	mu        sync.Mutex
	customers map[string]Customer
	order     []string
	spendLogs []SpendLogEntry
	apiKeys   map[string]APIKey
	now       time.Time
}

func NewMemory() *Memory {
	return &Memory{
		customers: make(map[string]Customer),
		apiKeys:   make(map[string]APIKey),
		now:       time.Now().UTC(),
	}
}

// AddSpendLog seeds one spend log row. Zero RequestID/CreatedAt fields are
// filled in.
func (m *Memory) AddSpendLog(entry SpendLogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.RequestID == uuid.Nil {
		entry.RequestID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.now
	}
	m.spendLogs = append(m.spendLogs, entry)
}

// AddAPIKey seeds an authorization credential.
func (m *Memory) AddAPIKey(key APIKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key.CreatedAt.IsZero() {
		key.CreatedAt = m.now
	}
	m.apiKeys[key.Prefix] = key
}

func (m *Memory) GetCustomer(_ context.Context, userID string) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	customer, ok := m.customers[userID]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return customer, nil
}

func (m *Memory) ListCustomers(_ context.Context) ([]Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Customer, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.customers[id])
	}
	return out, nil
}

func (m *Memory) ListCustomersByID(_ context.Context, userIDs []string) ([]Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	requested := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		requested[id] = true
	}
	var out []Customer
	for _, id := range m.order {
		if requested[id] {
			out = append(out, m.customers[id])
		}
	}
	return out, nil
}

func (m *Memory) CreateCustomer(_ context.Context, customer Customer) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.customers[customer.UserID]; exists {
		return Customer{}, ErrDuplicateKey
	}
	customer.CreatedAt = m.now
	customer.UpdatedAt = m.now
	m.customers[customer.UserID] = customer
	m.order = append(m.order, customer.UserID)
	return customer, nil
}

func (m *Memory) UpdateCustomer(_ context.Context, userID string, update CustomerUpdate) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	customer, ok := m.customers[userID]
	if !ok {
		return Customer{}, ErrNotFound
	}
	if update.Alias != nil {
		alias := *update.Alias
		customer.Alias = &alias
	}
	if update.Blocked != nil {
		customer.Blocked = *update.Blocked
	}
	if update.BudgetID != nil {
		id := *update.BudgetID
		customer.BudgetID = &id
	}
	customer.UpdatedAt = time.Now().UTC()
	m.customers[userID] = customer
	return customer, nil
}

func (m *Memory) DeleteCustomers(_ context.Context, userIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doomed := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		doomed[id] = true
		delete(m.customers, id)
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if !doomed[id] {
			kept = append(kept, id)
		}
	}
	m.order = kept
	return nil
}

func (m *Memory) SetCustomersBlocked(_ context.Context, userIDs []string, blocked bool) ([]Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Customer
	for _, id := range userIDs {
		customer, ok := m.customers[id]
		if !ok {
			continue
		}
		customer.Blocked = blocked
		customer.UpdatedAt = time.Now().UTC()
		m.customers[id] = customer
		out = append(out, customer)
	}
	return out, nil
}

func (m *Memory) CountSpendingCustomers(_ context.Context, r timeutil.DateRange) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	for _, entry := range m.spendLogs {
		if r.Contains(entry.CreatedAt) {
			seen[entry.EndUser] = true
		}
	}
	return int64(len(seen)), nil
}

func (m *Memory) CustomerSpendPage(_ context.Context, r timeutil.DateRange, limit, offset int64) ([]CustomerSpendRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	grouped := make(map[string]*CustomerSpendRow)
	var keys []string
	for _, entry := range m.spendLogs {
		if !r.Contains(entry.CreatedAt) {
			continue
		}
		row, ok := grouped[entry.EndUser]
		if !ok {
			row = &CustomerSpendRow{EndUserID: entry.EndUser}
			if customer, exists := m.customers[entry.EndUser]; exists {
				row.Alias = customer.Alias
			}
			grouped[entry.EndUser] = row
			keys = append(keys, entry.EndUser)
		}
		accumulate(&row.Totals, entry)
	}

	sort.SliceStable(keys, func(i, j int) bool {
		cmp := grouped[keys[i]].Totals.Spend.Cmp(grouped[keys[j]].Totals.Spend)
		if cmp != 0 {
			return cmp > 0
		}
		return keys[i] < keys[j]
	})

	var out []CustomerSpendRow
	for i, key := range keys {
		if int64(i) < offset {
			continue
		}
		if int64(len(out)) >= limit {
			break
		}
		out = append(out, *grouped[key])
	}
	return out, nil
}

func (m *Memory) CustomerSpendTotals(_ context.Context, userID string, r timeutil.DateRange) (SpendTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var totals SpendTotals
	for _, entry := range m.spendLogs {
		if entry.EndUser == userID && r.Contains(entry.CreatedAt) {
			accumulate(&totals, entry)
		}
	}
	return totals, nil
}

func (m *Memory) CustomerSpendByModel(_ context.Context, userID string, r timeutil.DateRange) ([]ModelSpendRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	grouped := make(map[string]*ModelSpendRow)
	var models []string
	for _, entry := range m.spendLogs {
		if entry.EndUser != userID || !r.Contains(entry.CreatedAt) {
			continue
		}
		row, ok := grouped[entry.Model]
		if !ok {
			row = &ModelSpendRow{Model: entry.Model}
			grouped[entry.Model] = row
			models = append(models, entry.Model)
		}
		accumulate(&row.Totals, entry)
	}

	sort.SliceStable(models, func(i, j int) bool {
		cmp := grouped[models[i]].Totals.Spend.Cmp(grouped[models[j]].Totals.Spend)
		if cmp != 0 {
			return cmp > 0
		}
		return models[i] < models[j]
	})

	out := make([]ModelSpendRow, 0, len(models))
	for _, model := range models {
		out = append(out, *grouped[model])
	}
	return out, nil
}

func (m *Memory) ListSpendLogs(_ context.Context, r timeutil.DateRange) ([]SpendLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SpendLogEntry
	for _, entry := range m.spendLogs {
		if r.Contains(entry.CreatedAt) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *Memory) GetAPIKeyByPrefix(_ context.Context, prefix string) (APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.apiKeys[prefix]
	if !ok {
		return APIKey{}, ErrNotFound
	}
	return key, nil
}

func (m *Memory) CreateAPIKey(_ context.Context, key APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.apiKeys[key.Prefix]; exists {
		return ErrDuplicateKey
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = m.now
	}
	m.apiKeys[key.Prefix] = key
	return nil
}

func accumulate(totals *SpendTotals, entry SpendLogEntry) {
	totals.Spend = totals.Spend.Add(entry.Spend)
	totals.Requests++
	totals.TotalTokens += entry.TotalTokens
	totals.PromptTokens += entry.PromptTokens
	totals.CompletionTokens += entry.CompletionTokens
}
