package businesses

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
)

type memoryRepo struct {
	mu         sync.Mutex
	items      map[uuid.UUID]Business
	referenced map[uuid.UUID]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[uuid.UUID]Business), referenced: make(map[uuid.UUID]bool)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Business
	for _, b := range r.items {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id uuid.UUID) (*Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &b, nil
}

func (r *memoryRepo) Create(ctx context.Context, b Business) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[b.ID] = b
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return httpx.ErrNotFound
	}
	for col, v := range updates {
		s := v.(string)
		switch col {
		case "name":
			b.Name = s
		case "email":
			b.Email = s
		case "phone":
			b.Phone = s
		case "address":
			b.Address = s
		case "website":
			b.Website = s
		case "logo":
			b.Logo = s
		case "tax_id":
			b.TaxID = s
		}
	}
	b.UpdatedAt = time.Now().UTC()
	r.items[id] = b
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return httpx.ErrNotFound
	}
	if r.referenced[id] {
		return httpx.ErrConflict
	}
	delete(r.items, id)
	return nil
}

type countingCache struct {
	mu     sync.Mutex
	bumped []uuid.UUID
}

func (c *countingCache) Bump(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bumped = append(c.bumped, id)
	return nil
}

func validRequest() CreateBusinessRequest {
	return CreateBusinessRequest{
		Name:    "Acme Studio",
		Email:   "billing@acme.test",
		Phone:   "+91 98765 43210",
		Address: "12 MG Road, Bengaluru",
	}
}

func TestCreateRequiresContactFields(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	_, err := svc.Create(context.Background(), uuid.New(), CreateBusinessRequest{Name: "Acme"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrValidation))

	req := validRequest()
	req.Website = "not a url"
	_, err = svc.Create(context.Background(), uuid.New(), req)
	assert.True(t, errors.Is(err, httpx.ErrValidation))
}

func TestCreateAndListNewestFirst(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	owner := uuid.New()
	ctx := context.Background()

	first, err := svc.Create(ctx, owner, validRequest())
	require.NoError(t, err)
	second := validRequest()
	second.Name = "Acme Labs"
	created, err := svc.Create(ctx, owner, second)
	require.NoError(t, err)
	// Force a stable ordering independent of clock resolution.
	b := repo.items[created.ID]
	b.CreatedAt = first.CreatedAt.Add(time.Second)
	repo.items[created.ID] = b

	_, err = svc.Create(ctx, uuid.New(), validRequest())
	require.NoError(t, err)

	list, err := svc.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Acme Labs", list[0].Name)

	latest, err := svc.Latest(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, created.ID, latest.ID)

	_, err = svc.Latest(ctx, uuid.New())
	assert.True(t, errors.Is(err, httpx.ErrNotFound))
}

func TestGetHidesOtherOwners(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	owner := uuid.New()
	b, err := svc.Create(context.Background(), owner, validRequest())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New(), b.ID)
	assert.True(t, errors.Is(err, httpx.ErrNotFound))

	owned, err := svc.OwnedBy(context.Background(), owner, b.ID)
	require.NoError(t, err)
	assert.True(t, owned)
	owned, err = svc.OwnedBy(context.Background(), uuid.New(), b.ID)
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestUpdateIsPartialAndBumpsCache(t *testing.T) {
	cache := &countingCache{}
	svc := NewService(newMemoryRepo(), cache, nil)
	owner := uuid.New()
	b, err := svc.Create(context.Background(), owner, validRequest())
	require.NoError(t, err)

	taxID := "29ABCDE1234F1Z5"
	updated, err := svc.Update(context.Background(), owner, b.ID, UpdateBusinessRequest{TaxID: &taxID})
	require.NoError(t, err)
	assert.Equal(t, taxID, updated.TaxID)
	assert.Equal(t, "Acme Studio", updated.Name)
	assert.Equal(t, []uuid.UUID{b.ID}, cache.bumped)

	empty := ""
	_, err = svc.Update(context.Background(), owner, b.ID, UpdateBusinessRequest{Name: &empty})
	assert.True(t, errors.Is(err, httpx.ErrValidation))

	_, err = svc.Update(context.Background(), uuid.New(), b.ID, UpdateBusinessRequest{TaxID: &taxID})
	assert.True(t, errors.Is(err, httpx.ErrNotFound))
}

func TestDeleteRejectsReferencedBusiness(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	owner := uuid.New()
	b, err := svc.Create(context.Background(), owner, validRequest())
	require.NoError(t, err)
	repo.referenced[b.ID] = true

	err = svc.Delete(context.Background(), owner, b.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrConflict))
	assert.Contains(t, repo.items, b.ID)

	repo.referenced[b.ID] = false
	require.NoError(t, svc.Delete(context.Background(), owner, b.ID))
	assert.NotContains(t, repo.items, b.ID)
}

func TestActivateBumpsCache(t *testing.T) {
	cache := &countingCache{}
	svc := NewService(newMemoryRepo(), cache, nil)
	owner := uuid.New()
	b, err := svc.Create(context.Background(), owner, validRequest())
	require.NoError(t, err)

	_, err = svc.Activate(context.Background(), owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID}, cache.bumped)

	_, err = svc.Activate(context.Background(), uuid.New(), b.ID)
	assert.True(t, errors.Is(err, httpx.ErrNotFound))
	assert.Len(t, cache.bumped, 1)
}
