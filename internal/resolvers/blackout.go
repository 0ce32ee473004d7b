package resolvers

import (
	"context"
	"regexp"
	"time"

	"github.com/kotileipomo/faq-engine/internal/intent"
	"github.com/kotileipomo/faq-engine/internal/kb"
)

var isoDateRe = regexp.MustCompile(`(20\d{2}-\d{2}-\d{2})`)

// Blackout answers whether pickups are possible on the ISO date in the query, or whether
// any blackout dates exist when the query has no date. Ranges come from the data tables
// and the catalog's shipping options.
func (r *Resolver) Blackout(ctx context.Context, query, lang string) Reply {
	lang = Lang(lang)
	rep := Reply{Intent: intent.Blackout}

	ranges := r.BlackoutRanges(ctx)
	if r.catalog == nil && len(ranges) == 0 {
		rep.Text = r.text("blackout.unknown", lang)
		return rep
	}

	m := isoDateRe.FindString(query)
	if m == "" {
		if len(ranges) == 0 {
			rep.Text = r.text("blackout.none", lang)
		} else {
			rep.Text = r.text("blackout.prompt", lang)
		}
		return rep
	}

	day, err := time.Parse(time.DateOnly, m)
	switch {
	case err != nil:
		rep.Text = r.text("blackout.bad_date", lang)
	case kb.IsBlackout(day, ranges):
		rep.Text = r.text("blackout.closed", lang, "date", m)
	default:
		rep.Text = r.text("blackout.open", lang, "date", m)
	}
	return rep
}

// BlackoutRanges returns the data table ranges followed by the catalog's shipping
// blackouts.
func (r *Resolver) BlackoutRanges(ctx context.Context) []kb.BlackoutRange {
	ranges := append([]kb.BlackoutRange(nil), r.Data().Blackouts...)
	if r.catalog != nil {
		fromCatalog, _ := r.catalog.Blackouts(ctx)
		ranges = append(ranges, fromCatalog...)
	}
	return ranges
}
