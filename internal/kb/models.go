// Package kb loads the knowledge base: FAQ entries for retrieval and the data tables
// (hours, allergens, product aliases, FAQ topics, shop settings, blackout dates) the
// intent resolvers answer from.
package kb

import (
	"errors"
	"strings"
)

// Common errors.
var (
	ErrNotFound   = errors.New("record not found")
	ErrEmptyEntry = errors.New("entry has no question or answer")
)

// Entry is one question/answer pair of the retrieval corpus.
type Entry struct {
	ID       string   `json:"id" yaml:"id"`
	Question string   `json:"question" yaml:"question" validate:"required"`
	Answer   string   `json:"answer" yaml:"answer" validate:"required"`
	Title    string   `json:"title,omitempty" yaml:"title,omitempty"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Source   string   `json:"source,omitempty" yaml:"source,omitempty"`
	Enabled  bool     `json:"enabled" yaml:"enabled"`
}

// FaqItem is a localized FAQ answer used by the faq resolver.
type FaqItem struct {
	Q    map[string]string `json:"q" yaml:"q" validate:"required,min=1"`
	A    map[string]string `json:"a" yaml:"a" validate:"required,min=1"`
	Tags []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Question returns the question in lang, falling back to Finnish and then any language.
func (f FaqItem) Question(lang string) string { return pick(f.Q, lang) }

// Answer returns the answer in lang, falling back to Finnish and then any language.
func (f FaqItem) Answer(lang string) string { return pick(f.A, lang) }

func pick(m map[string]string, lang string) string {
	if s := m[lang]; s != "" {
		return s
	}
	if s := m["fi"]; s != "" {
		return s
	}
	for _, k := range []string{"en", "sv"} {
		if s := m[k]; s != "" {
			return s
		}
	}
	for _, s := range m {
		if s != "" {
			return s
		}
	}
	return ""
}

// AllergenInfo describes one canonical allergen and how users refer to it.
type AllergenInfo struct {
	Canonical  string            `json:"canonical" yaml:"canonical" validate:"required"`
	Synonyms   []string          `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
	Disclaimer map[string]string `json:"disclaimer,omitempty" yaml:"disclaimer,omitempty"`
}

// AllergenMap maps user wording to canonical allergen keys. Canonical keys are unique.
type AllergenMap struct {
	Items []AllergenInfo `json:"items" yaml:"items"`
}

// Lookup returns the first canonical key whose name or synonym occurs in text.
func (m AllergenMap) Lookup(text string) (string, bool) {
	t := strings.ToLower(text)
	for _, it := range m.Items {
		if it.Canonical != "" && strings.Contains(t, strings.ToLower(it.Canonical)) {
			return it.Canonical, true
		}
		for _, s := range it.Synonyms {
			if s != "" && strings.Contains(t, strings.ToLower(s)) {
				return it.Canonical, true
			}
		}
	}
	return "", false
}

// Disclaimer returns the disclaimer of key in lang, falling back to Finnish.
func (m AllergenMap) Disclaimer(key, lang string) string {
	for _, it := range m.Items {
		if it.Canonical == key {
			if s := it.Disclaimer[lang]; s != "" {
				return s
			}
			return it.Disclaimer["fi"]
		}
	}
	return ""
}

// ProductAlias lists alternative names of a catalog product.
type ProductAlias struct {
	Name    string   `json:"name" yaml:"name" validate:"required"`
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// ProductAliases is the alias table.
type ProductAliases struct {
	Items []ProductAlias `json:"items" yaml:"items"`
}

// AllTerms returns every name and alias, de-duplicated case-insensitively in table order.
func (p ProductAliases) AllTerms() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		k := strings.ToLower(strings.TrimSpace(s))
		if k == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	for _, it := range p.Items {
		add(it.Name)
		for _, a := range it.Aliases {
			add(a)
		}
	}
	return out
}

// Canonical returns the canonical product name owning term.
func (p ProductAliases) Canonical(term string) (string, bool) {
	k := strings.ToLower(strings.TrimSpace(term))
	for _, it := range p.Items {
		if strings.ToLower(it.Name) == k {
			return it.Name, true
		}
		for _, a := range it.Aliases {
			if strings.ToLower(strings.TrimSpace(a)) == k {
				return it.Name, true
			}
		}
	}
	return "", false
}

// Settings holds shop facts used in templated answers.
type Settings struct {
	ShopName     string            `json:"shop_name,omitempty" yaml:"shop_name,omitempty"`
	AddressLine  string            `json:"address_line,omitempty" yaml:"address_line,omitempty"`
	PostalCode   string            `json:"postal_code,omitempty" yaml:"postal_code,omitempty"`
	City         string            `json:"city,omitempty" yaml:"city,omitempty"`
	District     string            `json:"district,omitempty" yaml:"district,omitempty"`
	StoreURL     string            `json:"store_url,omitempty" yaml:"store_url,omitempty" validate:"omitempty,url"`
	ParkingNote  map[string]string `json:"parking_note,omitempty" yaml:"parking_note,omitempty"`
	NearestStops map[string]string `json:"nearest_stops,omitempty" yaml:"nearest_stops,omitempty"`
}

// Data bundles the resolver tables loaded from a data directory.
type Data struct {
	Hours         WeeklyHours
	FAQ           []FaqItem
	Allergens     AllergenMap
	Aliases       ProductAliases
	Settings      Settings
	Blackouts     []BlackoutRange
	InstorePrices map[string]float64
}
