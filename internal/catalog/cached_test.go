package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotileipomo/faq-engine/internal/cache"
	"github.com/kotileipomo/faq-engine/internal/kb"
	"github.com/kotileipomo/faq-engine/internal/observability"
)

type fakeProvider struct {
	mu         sync.Mutex
	products   []Product
	categories []Category
	shipping   []ShippingOption
	err        error
	calls      map[string]int
}

func (f *fakeProvider) count(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
}

func (f *fakeProvider) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeProvider) Products(ctx context.Context, limit int, category *int64) ([]Product, error) {
	f.count("products")
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func (f *fakeProvider) Categories(ctx context.Context, limit int) ([]Category, error) {
	f.count("categories")
	if f.err != nil {
		return nil, f.err
	}
	return f.categories, nil
}

func (f *fakeProvider) ShippingOptions(ctx context.Context) ([]ShippingOption, error) {
	f.count("shipping")
	if f.err != nil {
		return nil, f.err
	}
	return f.shipping, nil
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestCachedProvider_FreshThenCachedThenExpired(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 10, 16, 9, 0, 0, 0, time.UTC)}
	fp := &fakeProvider{products: []Product{{ID: 1, Name: "Karjalanpiirakka", Enabled: true}}}
	metrics := observability.NewMetrics("test")
	p := NewCachedProvider(fp, cache.NewMemoryClient(100, cache.WithClock(clk.Now)), nil, WithMetrics(metrics))

	got, status := p.Products(ctx, 100, nil)
	assert.Equal(t, StatusFresh, status)
	require.Len(t, got, 1)

	clk.now = clk.now.Add(119 * time.Second)
	got, status = p.Products(ctx, 100, nil)
	assert.Equal(t, StatusCached, status)
	assert.Equal(t, "Karjalanpiirakka", got[0].Name)
	assert.Equal(t, 1, fp.Calls("products"))

	clk.now = clk.now.Add(2 * time.Second)
	_, status = p.Products(ctx, 100, nil)
	assert.Equal(t, StatusFresh, status)
	assert.Equal(t, 2, fp.Calls("products"))
}

func TestCachedProvider_KeysSeparateArguments(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{}
	p := NewCachedProvider(fp, cache.NewMemoryClient(100), nil)

	cat := int64(7)
	p.Products(ctx, 100, nil)
	p.Products(ctx, 100, &cat)
	p.Products(ctx, 8, nil)
	p.Products(ctx, 100, &cat)
	assert.Equal(t, 3, fp.Calls("products"))

	p.Categories(ctx, 200)
	p.Categories(ctx, 200)
	assert.Equal(t, 1, fp.Calls("categories"))
}

func TestCachedProvider_ReadersGetIndependentCopies(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{categories: []Category{{ID: 1, Name: "Uunituoreet"}}}
	p := NewCachedProvider(fp, cache.NewMemoryClient(100), nil)

	p.Categories(ctx, 200)
	first, _ := p.Categories(ctx, 200)
	first[0].Name = "mutated"

	second, status := p.Categories(ctx, 200)
	assert.Equal(t, StatusCached, status)
	assert.Equal(t, "Uunituoreet", second[0].Name)
}

func TestCachedProvider_FailureDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{err: errors.New("connection refused")}
	p := NewCachedProvider(fp, cache.NewMemoryClient(100), nil)

	got, status := p.Products(ctx, 100, nil)
	assert.Empty(t, got)
	assert.Equal(t, StatusUnavailable, status)

	// the failure is cached for the TTL
	got, status = p.Products(ctx, 100, nil)
	assert.Empty(t, got)
	assert.Equal(t, StatusUnavailable, status)
	assert.Equal(t, 1, fp.Calls("products"))

	require.NoError(t, p.Invalidate(ctx))
	fp.err = nil
	fp.products = []Product{{ID: 3, Name: "Kanasamosa"}}
	got, status = p.Products(ctx, 100, nil)
	assert.Equal(t, StatusFresh, status)
	assert.Len(t, got, 1)
}

func TestCachedProvider_NotConfigured(t *testing.T) {
	p := NewCachedProvider(nil, cache.NewMemoryClient(10), nil)
	got, status := p.Categories(context.Background(), 200)
	assert.Empty(t, got)
	assert.Equal(t, StatusUnavailable, status)
}

func TestCachedProvider_CancelledCallerDoesNotPoisonCache(t *testing.T) {
	fp := &fakeProvider{err: context.Canceled}
	p := NewCachedProvider(fp, cache.NewMemoryClient(10), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, status := p.Categories(ctx, 200)
	assert.Equal(t, StatusUnavailable, status)

	fp.err = nil
	fp.categories = []Category{{ID: 1, Name: "Pakasteet"}}
	got, status := p.Categories(context.Background(), 200)
	assert.Equal(t, StatusFresh, status)
	assert.Len(t, got, 1)
}

func TestCachedProvider_Timeout(t *testing.T) {
	slow := &slowProvider{delay: time.Second}
	p := NewCachedProvider(slow, cache.NewMemoryClient(10), nil, WithFetchTimeout(20*time.Millisecond))

	start := time.Now()
	_, status := p.Products(context.Background(), 10, nil)
	assert.Equal(t, StatusUnavailable, status)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

type slowProvider struct {
	Unavailable
	delay time.Duration
}

func (s *slowProvider) Products(ctx context.Context, limit int, category *int64) ([]Product, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
		return []Product{{ID: 1}}, nil
	}
}

func TestCachedProvider_Blackouts(t *testing.T) {
	fp := &fakeProvider{shipping: []ShippingOption{
		{ID: "pickup", Enabled: true, BlackoutDates: []kb.BlackoutRange{
			{From: "12-24", To: "12-26", RepeatedAnnually: true},
			{From: "", To: "2025-01-01"},
		}},
		{ID: "old", Enabled: false, BlackoutDates: []kb.BlackoutRange{{From: "2025-07-01", To: "2025-07-31"}}},
	}}
	p := NewCachedProvider(fp, cache.NewMemoryClient(10), nil)

	ranges, status := p.Blackouts(context.Background())
	assert.Equal(t, StatusFresh, status)
	require.Len(t, ranges, 1)
	assert.True(t, ranges[0].RepeatedAnnually)
}
