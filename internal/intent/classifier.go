// Package intent routes a query to one of a fixed set of intents by matching
// declarative keyword tables in a fixed priority order.
package intent

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kotileipomo/faq-engine/internal/textnorm"
)

//go:embed default_intents.yaml
var defaultTablesYAML []byte

// Intent is what kind of structured answer a query calls for.
type Intent string

// Known intents.
const (
	Hours          Intent = "hours"
	Blackout       Intent = "blackout"
	Menu           Intent = "menu"
	Allergens      Intent = "allergens"
	ProductDetail  Intent = "product_detail"
	Diet           Intent = "diet"
	FAQ            Intent = "faq"
	ProductSuggest Intent = "product_suggest"
	None           Intent = "none"
)

// Priority is the order keyword tables are tried in. The first table with a matching
// phrase wins.
var Priority = []Intent{Hours, Blackout, Menu, Allergens, Diet, FAQ}

// minSuggestLen is the shortest compact query that may trigger a product suggestion.
const minSuggestLen = 3

// Tables maps language -> intent -> phrases.
type Tables struct {
	Languages map[string]map[Intent][]string `yaml:"languages"`
}

// DefaultTables returns the embedded fi/sv/en tables.
func DefaultTables() Tables {
	t, err := ParseTables(defaultTablesYAML)
	if err != nil {
		panic(fmt.Sprintf("intent: embedded tables: %v", err))
	}
	return t
}

// ParseTables parses intent tables from YAML.
func ParseTables(data []byte) (Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tables{}, fmt.Errorf("parse intent tables: %w", err)
	}
	for lang, intents := range t.Languages {
		for in := range intents {
			if !routable(in) {
				return Tables{}, fmt.Errorf("parse intent tables: %s: unknown intent %q", lang, in)
			}
		}
	}
	return t, nil
}

// LoadTables reads tables from path. An empty path yields the default tables.
func LoadTables(path string) (Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read intent tables: %w", err)
	}
	return ParseTables(data)
}

func routable(in Intent) bool {
	for _, p := range Priority {
		if p == in {
			return true
		}
	}
	return false
}

// Classifier is an immutable, table-driven intent detector.
type Classifier struct {
	phrases map[Intent][]string
	aliases []string // compact product aliases
}

// NewClassifier merges the phrases of all languages and compiles the product alias list.
func NewClassifier(t Tables, aliases []string) *Classifier {
	c := &Classifier{phrases: make(map[Intent][]string)}
	langs := make([]string, 0, len(t.Languages))
	for lang := range t.Languages {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		for in, phrases := range t.Languages[lang] {
			for _, p := range phrases {
				if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
					c.phrases[in] = append(c.phrases[in], p)
				}
			}
		}
	}
	for _, a := range aliases {
		if k := textnorm.Compact(a); k != "" {
			c.aliases = append(c.aliases, k)
		}
	}
	return c
}

// WithAliases returns a copy of c using a new product alias list.
func (c *Classifier) WithAliases(aliases []string) *Classifier {
	out := &Classifier{phrases: c.phrases}
	for _, a := range aliases {
		if k := textnorm.Compact(a); k != "" {
			out.aliases = append(out.aliases, k)
		}
	}
	return out
}

// Detect returns the intent of text, or None.
func (c *Classifier) Detect(text string) Intent {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return None
	}
	normalized := textnorm.Normalize(lower)

	for _, in := range Priority {
		if !c.matches(in, lower, normalized) {
			continue
		}
		if in == Allergens && c.mentionsProduct(lower) {
			return ProductDetail
		}
		return in
	}

	if c.mentionsProduct(lower) && len(textnorm.Compact(lower)) >= minSuggestLen {
		return ProductSuggest
	}
	return None
}

// MatchedPhrase returns the first phrase of intent in found in text, for diagnostics.
func (c *Classifier) MatchedPhrase(in Intent, text string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	normalized := textnorm.Normalize(lower)
	for _, p := range c.phrases[in] {
		if strings.Contains(lower, p) || strings.Contains(normalized, p) {
			return p, true
		}
	}
	return "", false
}

func (c *Classifier) matches(in Intent, lower, normalized string) bool {
	for _, p := range c.phrases[in] {
		if strings.Contains(lower, p) || strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}

func (c *Classifier) mentionsProduct(lower string) bool {
	cq := textnorm.Compact(lower)
	for _, a := range c.aliases {
		if strings.Contains(cq, a) {
			return true
		}
	}
	return false
}
