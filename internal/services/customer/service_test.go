package customer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/deepaktammali/litellm/internal/cache"
	"github.com/deepaktammali/litellm/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return NewService(mem, nil, nil), mem
}

func strPtr(s string) *string { return &s }

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateParams{UserID: "user-1", Alias: strPtr("Alice")})
	require.NoError(t, err)
	require.Equal(t, "user-1", created.UserID)
	require.NotNil(t, created.Alias)

	got, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "Alice", *got.Alias)
}

func TestCreateDuplicate(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateParams{UserID: "user-1"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateParams{UserID: "user-1"})
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestGetNotFoundMessage(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), "non-existent-user")

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "End User Id=non-existent-user does not exist in db", notFound.Error())
}

func TestUpdatePartial(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateParams{UserID: "user-1", Alias: strPtr("Alice")})
	require.NoError(t, err)

	blocked := true
	updated, err := svc.Update(ctx, "user-1", store.CustomerUpdate{Blocked: &blocked})
	require.NoError(t, err)
	require.True(t, updated.Blocked)
	// Alias untouched by partial update.
	require.NotNil(t, updated.Alias)
	require.Equal(t, "Alice", *updated.Alias)

	updated, err = svc.Update(ctx, "user-1", store.CustomerUpdate{Alias: strPtr("Alicia")})
	require.NoError(t, err)
	require.Equal(t, "Alicia", *updated.Alias)
	require.True(t, updated.Blocked)
}

func TestUpdateMissingCustomer(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	_, err := svc.Update(context.Background(), "ghost", store.CustomerUpdate{Alias: strPtr("x")})

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, []string{"ghost"}, notFound.IDs)
}

func TestDeleteCollectsAllMissingIDs(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateParams{UserID: "user-1"})
	require.NoError(t, err)

	_, err = svc.Delete(ctx, []string{"user-1", "ghost-1", "ghost-2"})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, []string{"ghost-1", "ghost-2"}, notFound.IDs)
	require.Contains(t, notFound.Error(), "ghost-1")
	require.Contains(t, notFound.Error(), "ghost-2")

	// Nothing deleted on partial failure.
	_, err = svc.Get(ctx, "user-1")
	require.NoError(t, err)
}

func TestDeleteReturnsIdentifiers(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"user-1", "user-2"} {
		_, err := svc.Create(ctx, CreateParams{UserID: id})
		require.NoError(t, err)
	}

	deleted, err := svc.Delete(ctx, []string{"user-1", "user-2"})
	require.NoError(t, err)
	require.Equal(t, []string{"user-1", "user-2"}, deleted)

	_, err = svc.Get(ctx, "user-1")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestSetBlocked(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"user-1", "user-2"} {
		_, err := svc.Create(ctx, CreateParams{UserID: id})
		require.NoError(t, err)
	}

	updated, err := svc.SetBlocked(ctx, []string{"user-1", "user-2"}, true)
	require.NoError(t, err)
	require.Len(t, updated, 2)
	for _, customer := range updated {
		require.True(t, customer.Blocked)
	}

	updated, err = svc.SetBlocked(ctx, []string{"user-1"}, false)
	require.NoError(t, err)
	require.False(t, updated[0].Blocked)
}

type lookupRecorder struct {
	hits   int
	misses int
}

func (r *lookupRecorder) RecordCacheLookup(hit bool) {
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func TestGetReportsCacheLookupOutcomes(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	recorder := &lookupRecorder{}
	mem := store.NewMemory()
	svc := NewService(mem, cache.NewCustomerCache(client, time.Minute), recorder)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateParams{UserID: "user-1"})
	require.NoError(t, err)

	// First read misses and primes the cache, second read hits.
	_, err = svc.Get(ctx, "user-1")
	require.NoError(t, err)
	_, err = svc.Get(ctx, "user-1")
	require.NoError(t, err)

	require.Equal(t, 1, recorder.misses)
	require.Equal(t, 1, recorder.hits)
}

func TestGetSkipsLookupMetricWithoutCache(t *testing.T) {
	t.Parallel()

	recorder := &lookupRecorder{}
	mem := store.NewMemory()
	svc := NewService(mem, nil, recorder)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateParams{UserID: "user-1"})
	require.NoError(t, err)
	_, err = svc.Get(ctx, "user-1")
	require.NoError(t, err)

	require.Zero(t, recorder.hits)
	require.Zero(t, recorder.misses)
}

func TestGetUsesCacheAndMutationsInvalidate(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	customerCache := cache.NewCustomerCache(client, time.Minute)

	mem := store.NewMemory()
	svc := NewService(mem, customerCache, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateParams{UserID: "user-1", Alias: strPtr("Alice")})
	require.NoError(t, err)

	// Prime the cache, then serve the second read from it.
	_, err = svc.Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, mr.Exists("customer:user-1"))

	_, err = svc.Update(ctx, "user-1", store.CustomerUpdate{Alias: strPtr("Alicia")})
	require.NoError(t, err)
	require.False(t, mr.Exists("customer:user-1"))

	got, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "Alicia", *got.Alias)
}
