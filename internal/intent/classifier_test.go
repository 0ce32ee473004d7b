package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAliases = []string{"Karjalanpiirakka", "karelian pie", "Mustikkakukko", "Gobi-samosa"}

func TestDetect_Scenarios(t *testing.T) {
	c := NewClassifier(DefaultTables(), testAliases)

	assert.Equal(t, Hours, c.Detect("What are your opening hours?"))
	assert.Equal(t, Diet, c.Detect("Do you have vegan options?"))
	assert.Equal(t, ProductDetail, c.Detect("What's in the Karelian pie?"))
}

func TestDetect(t *testing.T) {
	c := NewClassifier(DefaultTables(), testAliases)

	tests := []struct {
		name  string
		query string
		want  Intent
	}{
		{"finnish hours", "Milloin olette auki?", Hours},
		{"swedish hours", "När har ni öppet?", Hours},
		{"blackout", "Are you closed on Christmas?", Blackout},
		{"finnish blackout", "Oletteko kiinni juhannuksena?", Blackout},
		{"menu", "What do you sell?", Menu},
		{"frozen menu", "Do you have frozen pies", Menu},
		{"swedish menu", "Vilka produkter har ni?", Menu},
		{"allergens generic", "Do you have nut allergy info?", Allergens},
		{"allergens with product", "Does karjalanpiirakka contain milk?", ProductDetail},
		{"product spelled apart", "Karjalan piirakka ainesosat", ProductDetail},
		{"curly apostrophe", "What’s in the mustikkakukko?", ProductDetail},
		{"diet finnish", "Onko teillä laktoositonta?", Diet},
		{"diet swedish", "Har ni veganska alternativ?", Diet},
		{"dairy wording hits allergens first", "Har ni mjölkfria alternativ?", Allergens},
		{"faq order", "How do I place an order?", FAQ},
		{"faq address", "Where are you located?", FAQ},
		{"faq swedish", "Var ligger butiken?", FAQ},
		{"product mention only", "gobi samosa!", ProductSuggest},
		{"none", "Tell me a joke", None},
		{"empty", "", None},
		{"punctuation", "?!?", None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Detect(tt.query))
		})
	}
}

func TestDetect_PriorityOrder(t *testing.T) {
	c := NewClassifier(DefaultTables(), testAliases)

	tests := []struct {
		name  string
		query string
		want  Intent
	}{
		// both hours and blackout phrases present
		{"hours before blackout", "opening hours on holiday", Hours},
		// both menu and allergen phrases present
		{"menu before allergens", "bread ingredients", Menu},
		// menu and faq phrases present
		{"menu before faq", "order a cake", Menu},
		{"allergens before diet", "vegan gluten", Allergens},
		{"diet before faq", "vegan order", Diet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Detect(tt.query))
		})
	}
}

func TestDetect_WithoutAliases(t *testing.T) {
	c := NewClassifier(DefaultTables(), nil)
	assert.Equal(t, Allergens, c.Detect("What's in the Karelian pie?"))
	assert.Equal(t, None, c.Detect("karjalanpiirakka"))

	withAliases := c.WithAliases(testAliases)
	assert.Equal(t, ProductDetail, withAliases.Detect("What's in the Karelian pie?"))
	assert.Equal(t, ProductSuggest, withAliases.Detect("karjalanpiirakka"))
	assert.Equal(t, Allergens, c.Detect("What's in the Karelian pie?"), "original unchanged")
}

func TestParseTables(t *testing.T) {
	tables, err := ParseTables([]byte(`
languages:
  de:
    hours: [öffnungszeiten]
    diet: [vegan]
`))
	require.NoError(t, err)
	c := NewClassifier(tables, nil)
	assert.Equal(t, Hours, c.Detect("Was sind die Öffnungszeiten?"))
	assert.Equal(t, Diet, c.Detect("Vegan?"))
	assert.Equal(t, None, c.Detect("What are your opening hours?"))

	p, ok := c.MatchedPhrase(Hours, "Öffnungszeiten bitte")
	assert.True(t, ok)
	assert.Equal(t, "öffnungszeiten", p)
}

func TestParseTables_Errors(t *testing.T) {
	_, err := ParseTables([]byte(`languages: [not, a, map]`))
	assert.Error(t, err)

	_, err = ParseTables([]byte("languages:\n  en:\n    weather: [rain]\n"))
	assert.ErrorContains(t, err, "unknown intent")

	_, err = ParseTables([]byte("languages:\n  en:\n    product_detail: [x]\n"))
	assert.Error(t, err)
}

func TestLoadTables_Default(t *testing.T) {
	tables, err := LoadTables("")
	require.NoError(t, err)
	assert.Contains(t, tables.Languages, "fi")
	assert.Contains(t, tables.Languages, "sv")
	assert.Contains(t, tables.Languages, "en")
}
