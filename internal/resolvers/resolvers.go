// Package resolvers builds deterministic answers for classified intents: opening hours,
// the menu, product details, allergens, diet options, blackout dates, FAQ topics and
// product suggestions. Resolvers never fail; missing data yields a localized "not
// available" reply.
package resolvers

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/kotileipomo/faq-engine/internal/catalog"
	"github.com/kotileipomo/faq-engine/internal/intent"
	"github.com/kotileipomo/faq-engine/internal/kb"
	"github.com/kotileipomo/faq-engine/internal/observability"
)

// Catalog is the read side of the product catalog. catalog.CachedProvider implements it.
type Catalog interface {
	Products(ctx context.Context, limit int, category *int64) ([]catalog.Product, catalog.Status)
	Categories(ctx context.Context, limit int) ([]catalog.Category, catalog.Status)
	Blackouts(ctx context.Context) ([]kb.BlackoutRange, catalog.Status)
}

// Catalog fetch sizes.
const (
	categoryLimit    = 200
	menuProductLimit = 200
	dietProductLimit = 200
	lookupLimit      = 100
	flatMenuLimit    = 50
	flatMenuShown    = 8
)

// Reply is a resolver answer. Text is always set; the structured parts let a UI render
// richer layouts.
type Reply struct {
	Intent   intent.Intent `json:"intent"`
	Text     string        `json:"text"`
	Sections []Section     `json:"sections,omitempty"`
	Buttons  []Button      `json:"buttons,omitempty"`
	Menu     *MenuView     `json:"menu,omitempty"`
}

// Section is a labeled block of lines.
type Section struct {
	Heading string   `json:"heading"`
	Items   []string `json:"items"`
}

// Button is a follow-up action. Suggest is a query to send; Action names a client action.
type Button struct {
	Label   string `json:"label"`
	Suggest string `json:"suggest,omitempty"`
	Action  string `json:"action,omitempty"`
}

// Resolver answers intents from the data tables and the catalog.
type Resolver struct {
	catalog Catalog
	locale  *Locale
	logger  *observability.Logger
	data    atomic.Pointer[kb.Data]
}

// New creates a Resolver. cat may be nil when no catalog is configured; locale nil means
// the embedded default.
func New(cat Catalog, data kb.Data, locale *Locale, logger *observability.Logger) *Resolver {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if locale == nil {
		locale = DefaultLocale()
	}
	r := &Resolver{
		catalog: cat,
		locale:  locale,
		logger:  logger.WithComponent("resolvers"),
	}
	r.data.Store(&data)
	return r
}

// SetData replaces the data tables. Requests in flight keep the tables they started with.
func (r *Resolver) SetData(d kb.Data) {
	r.data.Store(&d)
}

// Data returns the current data tables.
func (r *Resolver) Data() *kb.Data {
	return r.data.Load()
}

// Locale returns the resolver strings.
func (r *Resolver) Locale() *Locale {
	return r.locale
}

func (r *Resolver) text(key, lang string, kv ...string) string {
	return r.locale.Text(key, lang, kv...)
}

func renderSections(head string, sections []Section) string {
	var b strings.Builder
	b.WriteString(head)
	for _, s := range sections {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s.Heading)
		for _, it := range s.Items {
			b.WriteString("\n• ")
			b.WriteString(it)
		}
	}
	return b.String()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
