package resolvers

import (
	"context"
	"regexp"
	"strings"

	"github.com/kotileipomo/faq-engine/internal/catalog"
	"github.com/kotileipomo/faq-engine/internal/intent"
	"github.com/kotileipomo/faq-engine/internal/kb"
	"github.com/kotileipomo/faq-engine/internal/retrieval"
	"github.com/kotileipomo/faq-engine/internal/textnorm"
)

// minNameRatio is the similarity a product name needs to bind a query that mentions no
// known alias.
const minNameRatio = 0.5

// canonicalBoost outweighs any similarity difference once the product name contains
// the alias-bound canonical name.
const canonicalBoost = 2.0

var (
	priceDashRe = regexp.MustCompile(`\s+[–—]-?\s+`)
	nameCountRe = regexp.MustCompile(`(?i),?\s*\b\d+\s*(kpl|pcs)\b`)
	veganNameRe = regexp.MustCompile(`(?i)vegaani|vegan`)
)

// ActionStartOrder asks the client to open the order flow.
const ActionStartOrder = "start-order"

// FindProduct binds query to a catalog product. An alias hit (the normalized term in
// the normalized query, or the compact term in the compact query) fixes the canonical
// name and the best product is the one containing it, ties broken by similarity to the
// query. Without an alias hit the most similar name wins if it reaches minNameRatio.
func FindProduct(query string, products []catalog.Product, aliases kb.ProductAliases) (catalog.Product, bool) {
	if len(products) == 0 {
		return catalog.Product{}, false
	}
	q := lowerSpaced(query)
	cq := textnorm.Compact(query)

	canonical := ""
	for _, it := range aliases.Items {
		for _, term := range append([]string{it.Name}, it.Aliases...) {
			nt, ct := lowerSpaced(term), textnorm.Compact(term)
			if (nt != "" && strings.Contains(q, nt)) || (ct != "" && strings.Contains(cq, ct)) {
				canonical = lowerSpaced(it.Name)
				break
			}
		}
		if canonical != "" {
			break
		}
	}

	best, bestScore := -1, 0.0
	for i, p := range products {
		name := lowerSpaced(p.Name)
		score := retrieval.Ratio(name, q)
		if canonical != "" && strings.Contains(name, canonical) {
			score += canonicalBoost
		}
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	if canonical == "" && bestScore < minNameRatio {
		return catalog.Product{}, false
	}
	return products[best], true
}

func lowerSpaced(s string) string {
	return collapseSpaces(strings.ToLower(s))
}

// cleanProductName drops trailing "— 19.90 €" price dashes and piece counts.
func cleanProductName(n string) string {
	if loc := priceDashRe.FindStringIndex(n); loc != nil {
		n = n[:loc[0]]
	}
	n = nameCountRe.ReplaceAllString(n, "")
	return strings.Trim(collapseSpaces(n), ", ")
}

// ProductDetail describes ingredients and allergens of the product the query names. It
// reports false when no product binds.
func (r *Resolver) ProductDetail(ctx context.Context, query, lang string) (Reply, bool) {
	lang = Lang(lang)
	if r.catalog == nil {
		return Reply{}, false
	}
	data := r.Data()
	products, _ := r.catalog.Products(ctx, lookupLimit, nil)
	p, ok := FindProduct(query, products, data.Aliases)
	if !ok {
		return Reply{}, false
	}

	rep := Reply{Intent: intent.ProductDetail}
	name := cleanProductName(p.Name)
	if name == "" {
		name = "Product"
	}

	ingredients := attributeText(p, ingredientAttrKeys)
	if ingredients == "" {
		ingredients = ExtractIngredients(p.Description)
	}
	if ingredients != "" {
		rep.Sections = append(rep.Sections, Section{
			Heading: r.text("detail.ingredients", lang),
			Items:   []string{r.locale.TranslateIngredients(ingredients, lang)},
		})
	}

	if allergens := attributeText(p, allergenAttrKeys); allergens != "" {
		rep.Sections = append(rep.Sections, Section{
			Heading: r.text("detail.allergens", lang),
			Items:   []string{allergens},
		})
	} else if labels := r.inferredAllergens(p, ingredients, lang); len(labels) > 0 {
		rep.Sections = append(rep.Sections, Section{
			Heading: r.text("detail.allergens", lang),
			Items:   []string{strings.Join(labels, ", ")},
		})
	}

	lines := []string{name}
	for _, s := range rep.Sections {
		lines = append(lines, s.Heading+" "+strings.Join(s.Items, ", "))
	}
	if disclaimer := data.Allergens.Disclaimer("allergens", lang); disclaimer != "" {
		lines = append(lines, disclaimer)
	}
	rep.Text = strings.Join(lines, "\n")
	return rep, true
}

func (r *Resolver) inferredAllergens(p catalog.Product, ingredients, lang string) []string {
	found := DetectAllergens(p.Description + "\n" + ingredients)
	vegan := veganNameRe.MatchString(p.Name + " " + p.Description)
	var labels []string
	for _, k := range found {
		if vegan && (k == AllergenMilk || k == AllergenEgg) {
			continue
		}
		labels = append(labels, r.text("allergen."+k, lang))
	}
	return labels
}

// ProductSuggest offers details or ordering for the product the query names. With no
// catalog match the query itself is used as the product name.
func (r *Resolver) ProductSuggest(ctx context.Context, query, lang string) Reply {
	lang = Lang(lang)
	name := strings.TrimSpace(query)
	if r.catalog != nil {
		products, _ := r.catalog.Products(ctx, lookupLimit, nil)
		if p, ok := FindProduct(query, products, r.Data().Aliases); ok && p.Name != "" {
			name = p.Name
		}
	}
	return Reply{
		Intent: intent.ProductSuggest,
		Text:   name,
		Buttons: []Button{
			{Label: r.text("suggest.details", lang), Suggest: r.text("suggest.details_query", lang, "name", name)},
			{Label: r.text("suggest.order", lang, "name", name), Action: ActionStartOrder},
		},
	}
}
