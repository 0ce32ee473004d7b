package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotileipomo/faq-engine/internal/intent"
	"github.com/kotileipomo/faq-engine/internal/kb"
	"github.com/kotileipomo/faq-engine/internal/resolvers"
	"github.com/kotileipomo/faq-engine/internal/retrieval"
)

func testEntries() kb.StaticSource {
	return kb.StaticSource{
		{ID: "wifi", Question: "Do you have wifi?", Answer: "Sorry, no wi-fi for customers.", Source: "faq.json", Enabled: true},
		{ID: "parking", Question: "Is there parking nearby?", Answer: "Street parking on Kumpulantie.", Source: "faq.json", Enabled: true},
		{ID: "park", Question: "Is there a park nearby for a picnic?", Answer: "Kumpula park is two blocks away.", Source: "faq.json", Enabled: true},
	}
}

func testData() kb.Data {
	return kb.Data{
		Hours: kb.WeeklyHours{Hours: map[int][]kb.Span{
			3: {{Start: "11:00", End: "17:00"}},
		}},
		Aliases:   kb.ProductAliases{Items: []kb.ProductAlias{{Name: "Karjalanpiirakka", Aliases: []string{"karelian pie"}}}},
		Blackouts: []kb.BlackoutRange{{From: "2025-12-25", To: "2025-12-25"}},
	}
}

func newTestEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	store := retrieval.NewStore(nil, testEntries(), nil, nil)
	_, err := store.Reload(context.Background())
	require.NoError(t, err)
	return New(store, resolvers.New(nil, testData(), nil, nil), nil, cfg, nil, opts...)
}

func TestEngine_Answer(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()

	tests := []struct {
		name       string
		query      string
		wantIntent intent.Intent
		wantText   string
	}{
		{"hours", "What are your opening hours?", intent.Hours, "Opening hours:\nThursday: 11:00–17:00"},
		{"blackout without catalog", "closed on 2025-12-24?", intent.Blackout, "2025-12-24: likely available, please check the online store."},
		{"menu without catalog", "menu please", intent.Menu, "I can help with products and prices. See products in the online store."},
		{"diet without catalog", "vegan options?", intent.Diet, "I couldn't find vegan or dairy-free items right now. Please check the menu."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := e.Answer(ctx, tt.query, "en")
			require.NoError(t, err)
			assert.Equal(t, tt.wantIntent, rep.Intent)
			assert.Equal(t, tt.wantText, rep.Text)
		})
	}
}

func TestEngine_Answer_ProductDetailFallsBackToAllergens(t *testing.T) {
	e := newTestEngine(t, Config{})

	rep, err := e.Answer(context.Background(), "karjalanpiirakka allergens", "en")
	require.NoError(t, err)
	assert.Equal(t, intent.Allergens, rep.Intent)
	assert.Equal(t, "Karjalanpiirakka: We handle cereals and dairy in the bakery; cross-contamination cannot be fully excluded. Please ask staff for precise allergen information.", rep.Text)
}

func TestEngine_Answer_Sentinel(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()

	_, err := e.Answer(ctx, "Do you have wifi?", "en")
	assert.ErrorIs(t, err, ErrNoDeterministicMatch)

	// faq intent, but no FAQ table and no fixed topic
	_, err = e.Answer(ctx, "How do I contact you?", "en")
	assert.ErrorIs(t, err, ErrNoDeterministicMatch)

	_, err = e.Answer(ctx, "", "en")
	assert.ErrorIs(t, err, ErrNoDeterministicMatch)
}

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.calls++
	return c.err
}

func TestEngine_Reload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aliases.json"),
		[]byte(`{"items":[{"name":"Mustikkakukko","aliases":["blueberry pie"]}]}`), 0o644))

	inv := &countingInvalidator{err: errors.New("redis down")}
	e := newTestEngine(t, Config{DataDir: dir}, WithCatalogCache(inv))
	assert.Equal(t, intent.None, e.Classifier().Detect("blueberry pie please"))

	res, err := e.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Entries)
	assert.Equal(t, 1, res.Aliases)
	assert.Equal(t, 0, res.FAQ)
	assert.Equal(t, uint64(2), res.Version)
	assert.Equal(t, 1, inv.calls)

	assert.Equal(t, intent.ProductSuggest, e.Classifier().Detect("blueberry pie please"))
	assert.Equal(t, "Mustikkakukko", e.Resolver().Data().Aliases.Items[0].Name)
}

func TestEngine_Reload_IndexFailureKeepsData(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aliases.yaml"),
		[]byte("items:\n  - name: Mustikkakukko\n"), 0o644))

	store := retrieval.NewStore(nil, nil, nil, nil)
	e := New(store, resolvers.New(nil, kb.Data{}, nil, nil), nil, Config{DataDir: dir}, nil)

	_, err := e.Reload(context.Background())
	require.Error(t, err)
	assert.Len(t, e.Resolver().Data().Aliases.Items, 1)
	assert.Equal(t, intent.ProductSuggest, e.Classifier().Detect("mustikkakukko"))
}

func TestEngine_CheckPickup(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()

	tests := []struct {
		iso  string
		want error
	}{
		{"2025-12-18T12:00", nil},
		{"2025-12-18 16:59", nil},
		{"2025-12-18T18:00", kb.ErrPickupOutside},
		{"2025-12-19T12:00", kb.ErrPickupClosed},
		{"2025-12-25T12:00", kb.ErrPickupClosed},
		{"tomorrow", kb.ErrPickupFormat},
	}
	for _, tt := range tests {
		t.Run(tt.iso, func(t *testing.T) {
			err := e.CheckPickup(ctx, tt.iso)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
