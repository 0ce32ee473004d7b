package resolvers

import (
	"context"
	"regexp"
	"strings"

	"github.com/kotileipomo/faq-engine/internal/intent"
)

// defaultAllergenKey is the allergen table entry holding the general disclaimer.
const defaultAllergenKey = "allergens"

var (
	veganMarkerRe     = regexp.MustCompile(`(?i)vegaani|vegaaninen|vegan|vegansk`)
	dairyFreeMarkerRe = regexp.MustCompile(`(?i)\b(maidoton|mjölkfri|mjolkfri|dairy\s*-?free)\b`)
)

// Allergens returns the disclaimer for the allergen the query mentions, prefixed with a
// product name when one is mentioned too.
func (r *Resolver) Allergens(query, lang string) Reply {
	lang = Lang(lang)
	data := r.Data()

	key, ok := data.Allergens.Lookup(query)
	if !ok {
		key = defaultAllergenKey
	}
	disclaimer := data.Allergens.Disclaimer(key, lang)
	if disclaimer == "" {
		disclaimer = r.text("allergens.default", lang)
	}

	rep := Reply{Intent: intent.Allergens, Text: disclaimer}
	lower := strings.ToLower(query)
	for _, term := range data.Aliases.AllTerms() {
		if strings.Contains(lower, strings.ToLower(term)) {
			rep.Text = r.text("allergens.mention", lang, "product", term, "disclaimer", disclaimer)
			break
		}
	}
	return rep
}

// DietOptions lists vegan products and dairy-free products that are not vegan, whatever
// diet the query names. Vegan markers count anywhere in the name, including inside
// compound words.
func (r *Resolver) DietOptions(ctx context.Context, query, lang string) Reply {
	lang = Lang(lang)
	rep := Reply{Intent: intent.Diet}

	var vegan, dairyFree []string
	if r.catalog != nil {
		products, _ := r.catalog.Products(ctx, dietProductLimit, nil)
		for _, p := range products {
			if !p.Enabled {
				continue
			}
			name := strings.TrimSpace(p.Name)
			low := strings.ToLower(name)
			switch {
			case veganMarkerRe.MatchString(low):
				vegan = append(vegan, name)
			case dairyFreeMarkerRe.MatchString(low), containsAny(low, r.locale.Diet.DairyFreeAllowlist):
				dairyFree = append(dairyFree, name)
			}
		}
	}

	if len(vegan) == 0 && len(dairyFree) == 0 {
		rep.Text = r.text("diet.none", lang)
		return rep
	}
	if len(vegan) > 0 {
		rep.Sections = append(rep.Sections, Section{Heading: r.text("diet.vegan", lang), Items: vegan})
	}
	if len(dairyFree) > 0 {
		rep.Sections = append(rep.Sections, Section{Heading: r.text("diet.dairy_free", lang), Items: dairyFree})
	}
	rep.Text = renderSections("", rep.Sections)
	return rep
}
