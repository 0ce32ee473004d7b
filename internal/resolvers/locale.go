package resolvers

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_locale.yaml
var defaultLocaleYAML []byte

// Supported reply languages.
const (
	LangFI = "fi"
	LangSV = "sv"
	LangEN = "en"
)

// Lang maps a language code onto a supported reply language. Unknown codes get English.
func Lang(code string) string {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case LangFI:
		return LangFI
	case LangSV:
		return LangSV
	default:
		return LangEN
	}
}

// Translation is a Finnish key with its rendering per language.
type Translation struct {
	Key  string            `yaml:"key"`
	Text map[string]string `yaml:",inline"`
}

// PackPrice is a multi-buy price such as 12€ for 10 pieces.
type PackPrice struct {
	Price float64 `yaml:"price"`
	Count int     `yaml:"count"`
}

// PriceGroup clusters savory products sharing one price list under a single label.
type PriceGroup struct {
	Label     map[string]string `yaml:"label"`
	Keys      []string          `yaml:"keys"`
	Each      float64           `yaml:"each,omitempty"`
	Pack      *PackPrice        `yaml:"pack,omitempty"`
	BulkCount int               `yaml:"bulk_count,omitempty"`
	TopKey    string            `yaml:"top_key,omitempty"`
}

// Matches reports whether the lowercased product name contains one of the group keys.
func (g PriceGroup) Matches(lowerName string) bool {
	return containsAny(lowerName, g.Keys)
}

// MenuConfig drives the fresh/frozen menu layout.
type MenuConfig struct {
	FreshPattern  string       `yaml:"fresh_pattern"`
	FrozenPattern string       `yaml:"frozen_pattern"`
	FrozenQuery   []string     `yaml:"frozen_query"`
	SweetKeywords []string     `yaml:"sweet_keywords"`
	ChilliKeys    []string     `yaml:"chilli_keys"`
	EachOnlyKeys  []string     `yaml:"each_only_keys"`
	FreshGroups   []PriceGroup `yaml:"fresh_groups"`
	FrozenGroup   PriceGroup   `yaml:"frozen_group"`
}

// DietConfig lists products known to be dairy-free without saying so in their name.
type DietConfig struct {
	DairyFreeAllowlist []string `yaml:"dairy_free_allowlist"`
}

// FAQConfig holds the topic keywords of the faq resolver.
type FAQConfig struct {
	LocationKeywords []string                     `yaml:"location_keywords"`
	OrderKeywords    []string                     `yaml:"order_keywords"`
	LeadTimePhrases  []string                     `yaml:"lead_time_phrases"`
	VeganTags        []string                     `yaml:"vegan_tags"`
	CityNames        map[string]map[string]string `yaml:"city_names"`
}

// Locale is the resolver string and lookup table set.
type Locale struct {
	Messages          map[string]map[string]string `yaml:"messages"`
	Weekdays          map[string][]string          `yaml:"weekdays"`
	Menu              MenuConfig                   `yaml:"menu"`
	Diet              DietConfig                   `yaml:"diet"`
	FAQ               FAQConfig                    `yaml:"faq"`
	ProductNames      []Translation                `yaml:"product_names"`
	IngredientPhrases []Translation                `yaml:"ingredient_phrases"`
	Ingredients       []Translation                `yaml:"ingredients"`

	ingredients map[string]map[string]string
	phrases     map[string]map[string]string
}

// DefaultLocale returns the embedded locale.
func DefaultLocale() *Locale {
	l, err := ParseLocale(defaultLocaleYAML)
	if err != nil {
		panic(fmt.Sprintf("resolvers: embedded locale: %v", err))
	}
	return l
}

// ParseLocale parses a locale from YAML.
func ParseLocale(data []byte) (*Locale, error) {
	var l Locale
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse locale: %w", err)
	}
	for _, lang := range []string{LangFI, LangSV, LangEN} {
		if n := len(l.Weekdays[lang]); n != 0 && n != 7 {
			return nil, fmt.Errorf("locale: %s weekdays: want 7 names, got %d", lang, n)
		}
	}
	l.ingredients = indexTranslations(l.Ingredients)
	l.phrases = indexTranslations(l.IngredientPhrases)
	return &l, nil
}

// LoadLocale reads a locale file.
func LoadLocale(path string) (*Locale, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locale: %w", err)
	}
	return ParseLocale(data)
}

func indexTranslations(ts []Translation) map[string]map[string]string {
	out := make(map[string]map[string]string, len(ts))
	for _, t := range ts {
		if k := strings.ToLower(strings.TrimSpace(t.Key)); k != "" {
			out[k] = t.Text
		}
	}
	return out
}

// Text returns message key in lang with {name} placeholders replaced from kv pairs.
// Missing translations fall back to English, then to the key itself.
func (l *Locale) Text(key, lang string, kv ...string) string {
	m := l.Messages[key]
	s, ok := m[lang]
	if !ok {
		s, ok = m[LangEN]
	}
	if !ok {
		return key
	}
	if len(kv) == 0 {
		return s
	}
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// Weekday returns the name of day (0=Monday) in lang.
func (l *Locale) Weekday(lang string, day int) string {
	names := l.Weekdays[lang]
	if len(names) != 7 {
		names = l.Weekdays[LangEN]
	}
	if day < 0 || day >= len(names) {
		return fmt.Sprintf("day %d", day)
	}
	return names[day]
}

// ProductName returns the localized name of the first table key contained in name.
func (l *Locale) ProductName(name, lang string) (string, bool) {
	low := strings.ToLower(name)
	for _, t := range l.ProductNames {
		if t.Key == "" || !strings.Contains(low, t.Key) {
			continue
		}
		if s := t.Text[lang]; s != "" {
			return s, true
		}
	}
	return "", false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
