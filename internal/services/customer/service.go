package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/deepaktammali/litellm/internal/cache"
	"github.com/deepaktammali/litellm/internal/store"
)

// ErrAlreadyExists reports a create against a taken user id.
var ErrAlreadyExists = errors.New("customer already exists")

// NotFoundError reports one or more unknown customer ids. Error() renders
// the consumer-facing message, so handlers can pass it straight through.
type NotFoundError struct {
	IDs []string
}

func (e *NotFoundError) Error() string {
	if len(e.IDs) == 1 {
		return fmt.Sprintf("End User Id=%s does not exist in db", e.IDs[0])
	}
	return fmt.Sprintf("End User Ids=%s do not exist in db", strings.Join(e.IDs, ", "))
}

// CacheMetrics receives cache lookup outcomes. Satisfied by
// *observability.Provider.
type CacheMetrics interface {
	RecordCacheLookup(hit bool)
}

// Service owns customer CRUD. All storage access goes through the injected
// store; the cache only ever fronts single-record reads.
type Service struct {
	store   store.CustomerStore
	cache   *cache.CustomerCache
	metrics CacheMetrics
}

func NewService(st store.CustomerStore, customerCache *cache.CustomerCache, metrics CacheMetrics) *Service {
	return &Service{store: st, cache: customerCache, metrics: metrics}
}

// CreateParams carries the fields accepted on customer creation.
type CreateParams struct {
	UserID   string
	Alias    *string
	Blocked  bool
	BudgetID *uuid.UUID
}

// Get returns a single customer, consulting the cache first.
func (s *Service) Get(ctx context.Context, userID string) (store.Customer, error) {
	if customer, ok := s.cache.Get(ctx, userID); ok {
		s.recordCacheLookup(true)
		return customer, nil
	}
	if s.cache.Enabled() {
		s.recordCacheLookup(false)
	}
	customer, err := s.store.GetCustomer(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Customer{}, &NotFoundError{IDs: []string{userID}}
	}
	if err != nil {
		return store.Customer{}, err
	}
	s.cache.Set(ctx, customer)
	return customer, nil
}

// List returns every customer record.
func (s *Service) List(ctx context.Context) ([]store.Customer, error) {
	return s.store.ListCustomers(ctx)
}

// Create inserts a new customer. A storage uniqueness violation surfaces as
// ErrAlreadyExists; the raw storage error never reaches the caller.
func (s *Service) Create(ctx context.Context, params CreateParams) (store.Customer, error) {
	if strings.TrimSpace(params.UserID) == "" {
		return store.Customer{}, errors.New("user_id required")
	}
	created, err := s.store.CreateCustomer(ctx, store.Customer{
		UserID:   params.UserID,
		Alias:    params.Alias,
		Blocked:  params.Blocked,
		BudgetID: params.BudgetID,
	})
	if errors.Is(err, store.ErrDuplicateKey) {
		return store.Customer{}, ErrAlreadyExists
	}
	if err != nil {
		return store.Customer{}, err
	}
	return created, nil
}

// Update applies only the provided fields after confirming the customer exists.
func (s *Service) Update(ctx context.Context, userID string, update store.CustomerUpdate) (store.Customer, error) {
	if _, err := s.require(ctx, []string{userID}); err != nil {
		return store.Customer{}, err
	}
	updated, err := s.store.UpdateCustomer(ctx, userID, update)
	if errors.Is(err, store.ErrNotFound) {
		return store.Customer{}, &NotFoundError{IDs: []string{userID}}
	}
	if err != nil {
		return store.Customer{}, err
	}
	s.cache.Invalidate(ctx, userID)
	return updated, nil
}

// Delete removes the requested customers, failing up front if any id is
// unknown. Returns the deleted identifiers.
func (s *Service) Delete(ctx context.Context, userIDs []string) ([]string, error) {
	if _, err := s.require(ctx, userIDs); err != nil {
		return nil, err
	}
	if err := s.store.DeleteCustomers(ctx, userIDs); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, userIDs...)
	return userIDs, nil
}

// SetBlocked flips the blocked flag on the requested customers.
func (s *Service) SetBlocked(ctx context.Context, userIDs []string, blocked bool) ([]store.Customer, error) {
	if _, err := s.require(ctx, userIDs); err != nil {
		return nil, err
	}
	updated, err := s.store.SetCustomersBlocked(ctx, userIDs, blocked)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, userIDs...)
	return updated, nil
}

func (s *Service) recordCacheLookup(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(hit)
	}
}

// require fetches the requested ids and fails with every missing one
// collected, not just the first.
func (s *Service) require(ctx context.Context, userIDs []string) ([]store.Customer, error) {
	if len(userIDs) == 0 {
		return nil, errors.New("user_ids required")
	}
	found, err := s.store.ListCustomersByID(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	if len(found) != len(userIDs) {
		present := make(map[string]bool, len(found))
		for _, customer := range found {
			present[customer.UserID] = true
		}
		var missing []string
		for _, id := range userIDs {
			if !present[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return nil, &NotFoundError{IDs: missing}
		}
	}
	return found, nil
}
