package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"What are your opening hours?", "what are your opening hours"},
		{"  Wi-Fi   password!! ", "wi-fi password"},
		{"What's in the Karelian pie?", "what s in the karelian pie"},
		{"Öppet idag?", "öppet idag"},
		{"snake_case stays", "snake_case stays"},
		{"?!...", ""},
		{"", ""},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"What are your opening hours?",
		"Karjalanpiirakka — 1,40 € / kpl",
		"\tmixed\nWHITE   space\r\n",
		"pysäköinti? -- ok",
		"émoji 🥐 croissant",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestCompact(t *testing.T) {
	assert.Equal(t, "karjalanpiirakka", Compact("Karjalan-piirakka!"))
	assert.Equal(t, "pysakointi", Compact("Pysäköinti"))
	assert.Equal(t, "oppet", Compact("öppet"))
	assert.Equal(t, "gobisamosa", Compact("Gobi samosa"))
	assert.Equal(t, "", Compact("—"))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "Raka smor", Fold("Råka smör"))
}

func TestDefaultLexicon_Tokens(t *testing.T) {
	lex := DefaultLexicon()

	assert.Empty(t, lex.Tokens(""))
	assert.Empty(t, lex.Tokens("?!"))
	assert.Empty(t, lex.Tokens("what is the"))

	assert.Equal(t, []string{"opening", "hours"}, lex.Tokens("What are your opening hours?"))
	// synonyms apply once and are not chained
	assert.Equal(t, []string{"wi-fi"}, lex.Tokens("wifi"))
	assert.Equal(t, []string{"parking"}, lex.Tokens("pysäköinti"))
	// "do" is a stop-word even though it also has a synonym
	assert.Empty(t, lex.Tokens("do"))
}

func TestLexicon_BoostTokens(t *testing.T) {
	lex := DefaultLexicon()

	assert.Equal(t, []string{"parking", "car", "car park", "garage", "pysäköinti"},
		lex.BoostTokens(Normalize("Where can I park?")))
	assert.Empty(t, lex.BoostTokens(Normalize("Is there a park nearby")))
}

func TestParseLexicon_InvalidPattern(t *testing.T) {
	_, err := ParseLexicon([]byte("boosts:\n  - name: broken\n    pattern: '(unclosed'\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestParseLexicon_Custom(t *testing.T) {
	lex, err := ParseLexicon([]byte(`
stop_words:
  sv: [och]
synonyms:
  bulle: pulla
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"kaffe", "pulla"}, lex.Tokens("kaffe och bulle"))
	assert.True(t, lex.IsStopWord("och"))
	syn, ok := lex.Synonym("bulle")
	assert.True(t, ok)
	assert.Equal(t, "pulla", syn)
}
