package resolvers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotileipomo/faq-engine/internal/catalog"
	"github.com/kotileipomo/faq-engine/internal/intent"
	"github.com/kotileipomo/faq-engine/internal/kb"
)

func int64p(v int64) *int64 { return &v }

func bakeryCatalog() *fakeCatalog {
	return &fakeCatalog{
		categories: []catalog.Category{
			{ID: 1, Name: "Uunituoreet"},
			{ID: 2, Name: "Pakasteet"},
			{ID: 3, Name: "Piirakat", ParentID: int64p(1)},
		},
		byCategory: map[int64][]catalog.Product{
			1: {
				product(11, "Mustikkakukko", 3.5),
				product(12, "Kanelisolmupulla", 3),
			},
			3: {
				product(31, "Karjalanpiirakka, paistettu, 10 kpl", 12),
				product(32, "Gobi-samosa (laktoositon)", 2.9),
				product(33, "Juustosämpylä", 4.5),
				product(11, "Mustikkakukko", 3.5),
			},
			2: {
				product(21, "Karjalanpiirakka raakapakaste, 20 kpl", 19.9),
				product(22, "Perunapiirakka raakapakaste, 10 kpl", 10.9),
				product(23, "Gobi-samosa raakapakaste, 10 kpl", 24),
				product(24, "Mustikkakukko raakapakaste", 9),
			},
		},
	}
}

func bakeryData() kb.Data {
	return kb.Data{InstorePrices: map[string]float64{"mustikkakukko": 3.5, "juustosämpylä": 4.5}}
}

func TestMenu_FreshView(t *testing.T) {
	r := New(bakeryCatalog(), bakeryData(), nil, nil)

	rep := r.Menu(context.Background(), "en", "what's on the menu")
	assert.Equal(t, intent.Menu, rep.Intent)
	require.NotNil(t, rep.Menu)
	assert.False(t, rep.Menu.Frozen)
	assert.Equal(t, "Oven-fresh", rep.Menu.Group)
	assert.Equal(t, "All our products are lactose-free.", rep.Menu.Note)

	want := []MenuColumn{
		{
			Heading: "Savory",
			Entries: []MenuEntry{
				{Label: "Karelian pies", Prices: []string{"1.40€ /each", "12€ /10 pcs"}, Items: []MenuEntry{{Label: "Karelian pie"}}},
				{Label: "Indian snacks 🌶️", Prices: []string{"2.90€ /each", "10€ /4 pcs"}, Items: []MenuEntry{{Label: "Gobi (cauliflower) samosa"}}},
				{Label: "Juustosämpylä", Prices: []string{"4.50€ /each"}},
			},
		},
		{
			Heading: "Sweet",
			Entries: []MenuEntry{
				{Label: "Blueberry pie", Prices: []string{"3.50€ /each"}},
				{Label: "Cinnamon bun", Prices: []string{"3.00 €"}},
			},
		},
	}
	assert.Equal(t, want, rep.Menu.Columns)
	assert.Equal(t, []Button{{Label: "Frozen goodies", Suggest: "Frozen goodies"}}, rep.Buttons)

	assert.Contains(t, rep.Text, "• Karelian pies (1.40€ /each, 12€ /10 pcs)\n  - Karelian pie")
	assert.Contains(t, rep.Text, "Sweet:\n• Blueberry pie (3.50€ /each)")
}

func TestMenu_FreshViewFinnish(t *testing.T) {
	r := New(bakeryCatalog(), bakeryData(), nil, nil)

	rep := r.Menu(context.Background(), "fi", "mitä teillä on")
	require.NotNil(t, rep.Menu)
	assert.Equal(t, "Uunituoreet", rep.Menu.Group)
	assert.Equal(t, "Kaikki tuotteemme ovat laktoosittomia.", rep.Menu.Note)

	savory := rep.Menu.Columns[0]
	assert.Equal(t, "Suolaiset", savory.Heading)
	require.Len(t, savory.Entries, 3)
	assert.Equal(t, "Piirakat", savory.Entries[0].Label)
	assert.Equal(t, []string{"1,40€ /kpl", "12€ /10 kpl"}, savory.Entries[0].Prices)
	assert.Equal(t, []MenuEntry{{Label: "Karjalanpiirakka"}}, savory.Entries[0].Items)
	assert.Equal(t, []MenuEntry{{Label: "Gobi (kukkakaali)-samosa"}}, savory.Entries[1].Items)
	assert.Equal(t, []Button{{Label: "Pakaste tuotteet", Suggest: "Pakaste tuotteet"}}, rep.Buttons)
}

func TestMenu_FrozenView(t *testing.T) {
	r := New(bakeryCatalog(), bakeryData(), nil, nil)

	rep := r.Menu(context.Background(), "en", "Show me frozen goodies")
	require.NotNil(t, rep.Menu)
	assert.True(t, rep.Menu.Frozen)
	assert.Equal(t, "Frozen", rep.Menu.Group)
	assert.Empty(t, rep.Buttons)

	want := []MenuColumn{
		{
			Heading: "Savory",
			Entries: []MenuEntry{
				{Label: "Karelian pie raw-frozen", Prices: []string{"19.90€ /20 pcs"}},
				{Label: "Raw-frozen 10 pies", Prices: []string{"10.90€ /10 pcs"}, Items: []MenuEntry{{Label: "Potato pie"}}},
				{Label: "Gobi (cauliflower) samosa 🌶️ raw-frozen", Prices: []string{"24€ /10 pcs"}},
			},
		},
		{
			Heading: "Sweet",
			Entries: []MenuEntry{{Label: "Blueberry pie raw-frozen", Prices: []string{"9.00 €"}}},
		},
	}
	assert.Equal(t, want, rep.Menu.Columns)
}

func TestMenu_FrozenGroupNameFinnish(t *testing.T) {
	r := New(bakeryCatalog(), bakeryData(), nil, nil)

	rep := r.Menu(context.Background(), "fi", "pakasteet")
	require.NotNil(t, rep.Menu)
	assert.Equal(t, "Pakasteet", rep.Menu.Group)
	assert.Equal(t, "Karjalanpiirakka raakapakaste", rep.Menu.Columns[0].Entries[0].Label)
}

func TestMenu_Fallbacks(t *testing.T) {
	ctx := context.Background()

	t.Run("no catalog", func(t *testing.T) {
		rep := New(nil, kb.Data{}, nil, nil).Menu(ctx, "en", "menu")
		assert.Nil(t, rep.Menu)
		assert.Equal(t, "I can help with products and prices. See products in the online store.", rep.Text)
	})

	t.Run("flat list without grouped categories", func(t *testing.T) {
		hidden := product(2, "Lahjakortti", 20)
		hidden.Enabled = false
		cat := &fakeCatalog{
			categories: []catalog.Category{{ID: 5, Name: "Lahjat"}},
			all:        []catalog.Product{product(1, "Ruisleipä", 12), hidden},
		}
		rep := New(cat, kb.Data{}, nil, nil).Menu(ctx, "en", "menu")
		assert.Nil(t, rep.Menu)
		assert.Equal(t, "Products and prices:\n• Ruisleipä — 12.00 €", rep.Text)
	})

	t.Run("product fetches unavailable", func(t *testing.T) {
		cat := bakeryCatalog()
		cat.productsDown = true
		rep := New(cat, kb.Data{}, nil, nil).Menu(ctx, "sv", "meny")
		assert.Nil(t, rep.Menu)
		assert.Equal(t, "Jag kan hjälpa till med produkter och priser. Produktlistan är inte tillgänglig just nu. Se webbutiken.", rep.Text)
	})

	t.Run("empty catalog", func(t *testing.T) {
		rep := New(&fakeCatalog{}, kb.Data{}, nil, nil).Menu(ctx, "sv", "meny")
		assert.Equal(t, "Jag kan hjälpa till med produkter och priser. Produktlistan är inte tillgänglig just nu. Se webbutiken.", rep.Text)
	})
}

func TestCleanLabel(t *testing.T) {
	tests := []struct {
		in        string
		wantLabel string
		wantCount string
	}{
		{"Karjalanpiirakka, paistettu, 10 kpl", "Karjalanpiirakka", "10"},
		{"Gobi-samosa (laktoositon), 4 kpl", "Gobi-samosa", "4"},
		{"Vegaanipiirakka (vegaaninen)", "Vegaanipiirakka (vegaaninen)", ""},
		{"Perunapiirakka raakapakaste, 10kpl", "Perunapiirakka raakapakaste", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			label, count := cleanLabel(tt.in)
			assert.Equal(t, tt.wantLabel, label)
			assert.Equal(t, tt.wantCount, count)
		})
	}
}

func TestFormatEUR(t *testing.T) {
	tests := []struct {
		v    float64
		lang string
		want string
	}{
		{1.4, LangFI, "1,40€"},
		{12, LangEN, "12€"},
		{10.9, LangSV, "10,90€"},
		{2.9, LangEN, "2.90€"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatEUR(tt.v, tt.lang))
		})
	}
}

func TestPartitionCategories(t *testing.T) {
	cats := []catalog.Category{
		{ID: 1, Name: "Uunituoreet"},
		{ID: 2, Name: "Pakasteet"},
		{ID: 3, Name: "Piirakat", ParentID: int64p(1)},
		{ID: 4, Name: "Isot", ParentID: int64p(3)},
		{ID: 5, Name: "Lahjakortit"},
	}
	fresh, frozen := partitionCategories(cats, "uunituoreet", "pakaste")
	assert.Equal(t, []int64{1, 3, 4}, fresh)
	assert.Equal(t, []int64{2}, frozen)
}

func TestInstorePrice_LongestKeyWins(t *testing.T) {
	r := New(nil, kb.Data{InstorePrices: map[string]float64{"pulla": 2, "kanelipulla": 3.2}}, nil, nil)

	v, ok := r.instorePrice("iso kanelipulla")
	require.True(t, ok)
	assert.Equal(t, 3.2, v)

	_, ok = r.instorePrice("ruisleipä")
	assert.False(t, ok)
}
