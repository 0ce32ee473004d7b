package resolvers

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kotileipomo/faq-engine/internal/catalog"
	"github.com/kotileipomo/faq-engine/internal/intent"
)

// MenuView is the two-column menu of one product group.
type MenuView struct {
	Title   string       `json:"title"`
	Note    string       `json:"note"`
	Group   string       `json:"group"`
	Frozen  bool         `json:"frozen"`
	Columns []MenuColumn `json:"columns"`
}

// MenuColumn is one column of the menu (savory or sweet).
type MenuColumn struct {
	Heading string      `json:"heading"`
	Entries []MenuEntry `json:"entries"`
}

// MenuEntry is a product line or, when Items is set, a price group of products.
type MenuEntry struct {
	Label  string      `json:"label"`
	Prices []string    `json:"prices,omitempty"`
	Items  []MenuEntry `json:"items,omitempty"`
}

// maxCategoryFetches bounds concurrent per-category product requests.
const maxCategoryFetches = 4

var (
	pieceCountRe   = regexp.MustCompile(`(?i)(,\s*)?(\d+)\s*kpl\b`)
	bakedRe        = regexp.MustCompile(`(?i),\s*paistettu\b`)
	lactoseParenRe = regexp.MustCompile(`(?i)\([^)]*lakto[^)]*\)`)
	veganMarkRe    = regexp.MustCompile(`(?i)\(\s*vega`)
	frozenMarkRe   = regexp.MustCompile(`(?i)\b(raakapakaste|råfryst|raw[\- ]?frozen)\b`)
)

// Menu lists products of the oven-fresh group, or the frozen group when the query asks
// for frozen goods. Without fresh/frozen categories it falls back to a short flat list.
func (r *Resolver) Menu(ctx context.Context, lang, query string) Reply {
	lang = Lang(lang)
	rep := Reply{Intent: intent.Menu}
	if r.catalog == nil {
		rep.Text = r.text("menu.not_configured", lang)
		return rep
	}

	cfg := r.locale.Menu
	cats, _ := r.catalog.Categories(ctx, categoryLimit)
	freshIDs, frozenIDs := partitionCategories(cats, cfg.FreshPattern, cfg.FrozenPattern)
	if len(freshIDs) == 0 && len(frozenIDs) == 0 {
		return r.flatMenu(ctx, lang)
	}

	var (
		fresh, frozen         []catalog.Product
		freshDown, frozenDown bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fresh, freshDown = r.productsIn(gctx, freshIDs)
		return nil
	})
	g.Go(func() error {
		frozen, frozenDown = r.productsIn(gctx, frozenIDs)
		return nil
	})
	_ = g.Wait()
	if len(fresh) == 0 && len(frozen) == 0 && (freshDown || frozenDown) {
		rep.Text = r.text("menu.unavailable", lang)
		return rep
	}

	wantFrozen := containsAny(strings.ToLower(query), cfg.FrozenQuery)
	view := &MenuView{
		Title:  r.text("menu.title", lang),
		Note:   r.text("menu.lactose_note", lang),
		Frozen: wantFrozen,
	}
	if wantFrozen {
		view.Group = r.text("menu.frozen", lang)
		if lang == LangFI {
			view.Group = firstCategoryName(cats, frozenIDs, view.Group)
		}
		view.Columns = r.frozenColumns(frozen, lang)
	} else {
		view.Group = r.text("menu.fresh", lang)
		if lang == LangFI {
			view.Group = firstCategoryName(cats, freshIDs, view.Group)
		}
		view.Columns = r.freshColumns(fresh, lang)
		if len(frozen) > 0 {
			label := r.text("menu.frozen_button", lang)
			rep.Buttons = append(rep.Buttons, Button{Label: label, Suggest: label})
		}
	}

	rep.Menu = view
	rep.Text = renderMenu(view)
	return rep
}

// productsIn fetches the enabled products of each category concurrently, keeping category
// order and dropping products already listed under an earlier category. down reports
// whether any fetch came back unavailable.
func (r *Resolver) productsIn(ctx context.Context, ids []int64) (out []catalog.Product, down bool) {
	if len(ids) == 0 {
		return nil, false
	}
	results := make([][]catalog.Product, len(ids))
	statuses := make([]catalog.Status, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxCategoryFetches)
	for i, id := range ids {
		g.Go(func() error {
			results[i], statuses[i] = r.catalog.Products(gctx, menuProductLimit, &id)
			return nil
		})
	}
	_ = g.Wait()
	for _, st := range statuses {
		if st == catalog.StatusUnavailable {
			down = true
		}
	}

	seen := make(map[int64]struct{})
	for _, items := range results {
		for _, p := range items {
			if !p.Enabled {
				continue
			}
			if _, dup := seen[p.ID]; dup && p.ID != 0 {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	return out, down
}

func (r *Resolver) freshColumns(products []catalog.Product, lang string) []MenuColumn {
	cfg := r.locale.Menu
	groups := make([]MenuEntry, len(cfg.FreshGroups))
	var others, sweet []MenuEntry
	for _, p := range products {
		low := strings.ToLower(p.Name)
		if r.isSweet(low) {
			sweet = append(sweet, r.menuItem(p, lang, itemOptions{instore: true}))
			continue
		}
		grouped := false
		for i, grp := range cfg.FreshGroups {
			if grp.Matches(low) {
				groups[i].Items = append(groups[i].Items, r.menuItem(p, lang, itemOptions{noPrice: true}))
				grouped = true
				break
			}
		}
		if !grouped {
			others = append(others, r.menuItem(p, lang, itemOptions{instore: true}))
		}
	}

	var savory []MenuEntry
	for i, grp := range cfg.FreshGroups {
		if len(groups[i].Items) == 0 {
			continue
		}
		groups[i].Label = grp.Label[lang]
		groups[i].Prices = r.groupPrices(grp, lang)
		savory = append(savory, groups[i])
	}
	savory = append(savory, others...)
	return r.columns(savory, sweet, lang)
}

func (r *Resolver) frozenColumns(products []catalog.Product, lang string) []MenuColumn {
	grp := r.locale.Menu.FrozenGroup
	var bulk *regexp.Regexp
	if grp.BulkCount > 0 {
		bulk = regexp.MustCompile(fmt.Sprintf(`\b%d\s*kpl\b`, grp.BulkCount))
	}

	var top, others, sweet []MenuEntry
	group := MenuEntry{Label: grp.Label[lang]}
	for _, p := range products {
		low := strings.ToLower(p.Name)
		if r.isSweet(low) {
			sweet = append(sweet, r.menuItem(p, lang, itemOptions{frozen: true}))
			continue
		}
		switch {
		case !grp.Matches(low):
			others = append(others, r.menuItem(p, lang, itemOptions{frozen: true}))
		case bulk != nil && bulk.MatchString(low) && grp.TopKey != "" && strings.Contains(low, grp.TopKey):
			top = append(top, r.menuItem(p, lang, itemOptions{frozen: true}))
		case bulk != nil && bulk.MatchString(low):
			others = append(others, r.menuItem(p, lang, itemOptions{frozen: true}))
		default:
			group.Items = append(group.Items, r.menuItem(p, lang, itemOptions{frozen: true, noMarker: true, noPrice: true}))
		}
	}

	savory := top
	if len(group.Items) > 0 {
		group.Prices = r.groupPrices(grp, lang)
		savory = append(savory, group)
	}
	savory = append(savory, others...)
	return r.columns(savory, sweet, lang)
}

func (r *Resolver) columns(savory, sweet []MenuEntry, lang string) []MenuColumn {
	return []MenuColumn{
		{Heading: r.text("menu.savory", lang), Entries: savory},
		{Heading: r.text("menu.sweet", lang), Entries: sweet},
	}
}

func (r *Resolver) isSweet(lowerName string) bool {
	return containsAny(lowerName, r.locale.Menu.SweetKeywords)
}

type itemOptions struct {
	instore  bool // show the in-store per-piece price
	frozen   bool // frozen view: marker suffix, no commas
	noMarker bool // frozen group members carry the marker in the group label
	noPrice  bool // grouped items share the group's price lines
}

// menuItem renders one product label with its price lines.
func (r *Resolver) menuItem(p catalog.Product, lang string, opt itemOptions) MenuEntry {
	cfg := r.locale.Menu
	base, count := cleanLabel(p.Name)
	lowBase := strings.ToLower(base)

	label := base
	if tr, ok := r.locale.ProductName(base, lang); ok {
		label = tr
		if veganMarkRe.MatchString(base) {
			label += " " + r.text("menu.vegan", lang)
		}
	}
	if opt.frozen && containsAny(lowBase, cfg.ChilliKeys) {
		label += " 🌶️"
	}
	if opt.frozen {
		label = strings.Trim(collapseSpaces(frozenMarkRe.ReplaceAllString(label, "")), ", ")
		if !opt.noMarker {
			label = strings.TrimSpace(label + " " + r.text("menu.raw_frozen", lang))
		}
	}
	if !opt.instore {
		label = collapseSpaces(strings.ReplaceAll(label, ",", " "))
	}

	entry := MenuEntry{Label: label}
	if opt.noPrice {
		return entry
	}

	each, hasEach := r.instorePrice(lowBase)
	switch {
	case opt.instore && containsAny(lowBase, cfg.EachOnlyKeys):
		if hasEach {
			entry.Prices = append(entry.Prices, formatEUR(each, lang)+" "+r.text("unit.each", lang))
		}
	default:
		if opt.instore && hasEach {
			entry.Prices = append(entry.Prices, formatEUR(each, lang)+" "+r.text("unit.each", lang))
		}
		if p.Price != nil && count != "" {
			entry.Prices = append(entry.Prices, fmt.Sprintf("%s /%s %s", formatEUR(*p.Price, lang), count, r.text("unit.pack", lang)))
		}
	}
	if len(entry.Prices) == 0 && p.Price != nil {
		entry.Prices = []string{priceString(*p.Price)}
	}
	return entry
}

// instorePrice returns the per-piece shop price of the longest table key contained in the
// lowercased product name.
func (r *Resolver) instorePrice(lowerName string) (float64, bool) {
	prices := r.Data().InstorePrices
	if len(prices) == 0 {
		return 0, false
	}
	keys := make([]string, 0, len(prices))
	for k := range prices {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if k != "" && strings.Contains(lowerName, strings.ToLower(k)) {
			return prices[k], true
		}
	}
	return 0, false
}

func (r *Resolver) groupPrices(g PriceGroup, lang string) []string {
	var out []string
	if g.Each > 0 {
		out = append(out, formatEUR(g.Each, lang)+" "+r.text("unit.each", lang))
	}
	if g.Pack != nil && g.Pack.Price > 0 {
		out = append(out, fmt.Sprintf("%s /%d %s", formatEUR(g.Pack.Price, lang), g.Pack.Count, r.text("unit.pack", lang)))
	}
	return out
}

// cleanLabel strips the piece count (returned separately), ", paistettu" and lactose
// remarks from a catalog product name.
func cleanLabel(name string) (label, count string) {
	raw := name
	if m := pieceCountRe.FindStringSubmatchIndex(raw); m != nil {
		count = raw[m[4]:m[5]]
		raw = strings.TrimSpace(raw[:m[0]] + raw[m[1]:])
	}
	raw = bakedRe.ReplaceAllString(raw, "")
	raw = lactoseParenRe.ReplaceAllString(raw, "")
	return strings.Trim(collapseSpaces(raw), ", "), count
}

// formatEUR renders a euro amount with a trailing sign and no space. Whole amounts drop
// the decimals; Finnish and Swedish use a decimal comma.
func formatEUR(v float64, lang string) string {
	var s string
	if math.Abs(v-math.Round(v)) < 1e-9 {
		s = fmt.Sprintf("%d", int64(math.Round(v)))
	} else {
		s = fmt.Sprintf("%.2f", v)
	}
	if lang == LangFI || lang == LangSV {
		s = strings.ReplaceAll(s, ".", ",")
	}
	return s + "€"
}

func priceString(v float64) string {
	return fmt.Sprintf("%.2f €", v)
}

// partitionCategories returns the ids of categories whose name contains the fresh or
// frozen pattern, each extended with all descendant categories.
func partitionCategories(cats []catalog.Category, freshPattern, frozenPattern string) (fresh, frozen []int64) {
	children := make(map[int64][]int64)
	for _, c := range cats {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}
	for _, c := range cats {
		name := collapseSpaces(strings.ToLower(c.Name))
		switch {
		case freshPattern != "" && strings.Contains(name, freshPattern):
			fresh = append(fresh, c.ID)
		case frozenPattern != "" && strings.Contains(name, frozenPattern):
			frozen = append(frozen, c.ID)
		}
	}
	return withDescendants(fresh, children), withDescendants(frozen, children)
}

func withDescendants(roots []int64, children map[int64][]int64) []int64 {
	if len(roots) == 0 {
		return nil
	}
	seen := make(map[int64]struct{})
	var out []int64
	stack := append([]int64(nil), roots...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		for _, ch := range children[id] {
			if _, ok := seen[ch]; !ok {
				stack = append(stack, ch)
			}
		}
	}
	return out
}

func firstCategoryName(cats []catalog.Category, ids []int64, fallback string) string {
	if len(ids) == 0 {
		return fallback
	}
	for _, c := range cats {
		if c.ID == ids[0] && c.Name != "" {
			return c.Name
		}
	}
	return fallback
}

// flatMenu lists the first enabled products when the catalog has no fresh/frozen
// categories.
func (r *Resolver) flatMenu(ctx context.Context, lang string) Reply {
	rep := Reply{Intent: intent.Menu}
	items, _ := r.catalog.Products(ctx, flatMenuLimit, nil)
	if len(items) == 0 {
		rep.Text = r.text("menu.unavailable", lang)
		return rep
	}
	section := Section{Heading: r.text("menu.title_flat", lang)}
	for _, p := range items {
		if !p.Enabled {
			continue
		}
		line := p.Name
		if p.Price != nil {
			line += " — " + priceString(*p.Price)
		}
		section.Items = append(section.Items, line)
		if len(section.Items) >= flatMenuShown {
			break
		}
	}
	rep.Sections = []Section{section}
	rep.Text = renderSections("", rep.Sections)
	return rep
}

func renderMenu(v *MenuView) string {
	var b strings.Builder
	b.WriteString(v.Title)
	b.WriteString("\n" + v.Note)
	b.WriteString("\n" + v.Group)
	for _, col := range v.Columns {
		b.WriteString("\n\n" + col.Heading + ":")
		if len(col.Entries) == 0 {
			b.WriteString("\n—")
			continue
		}
		for _, e := range col.Entries {
			b.WriteString("\n• " + e.Label)
			if len(e.Prices) > 0 {
				b.WriteString(" (" + strings.Join(e.Prices, ", ") + ")")
			}
			for _, it := range e.Items {
				b.WriteString("\n  - " + it.Label)
			}
		}
	}
	return b.String()
}
