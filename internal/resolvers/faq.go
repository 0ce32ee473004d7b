package resolvers

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kotileipomo/faq-engine/internal/intent"
	"github.com/kotileipomo/faq-engine/internal/kb"
)

// FAQ scoring weights.
const (
	faqTagWeight      = 3
	faqLeadTimeWeight = 2
	faqMinTokenLen    = 3
)

var faqSplitRe = regexp.MustCompile(`[^a-zåäöA-ZÅÄÖ0-9]+`)

// FAQ answers fixed topics (shop location, ordering) and otherwise the FAQ item that
// best matches the query by tags and shared words. It reports false when there are no
// FAQ items and no topic matched.
func (r *Resolver) FAQ(query, lang string) (Reply, bool) {
	lang = Lang(lang)
	data := r.Data()
	cfg := r.locale.FAQ
	t := strings.ToLower(query)
	rep := Reply{Intent: intent.FAQ}

	if containsAny(t, cfg.LocationKeywords) && data.Settings.AddressLine != "" {
		rep.Text = r.locationAnswer(data.Settings, lang)
		return rep, true
	}

	if item, ok := bestFAQ(t, data.FAQ, cfg); ok {
		rep.Text = item.Answer(lang)
		if hasAnyTag(item.Tags, cfg.VeganTags) {
			rep.Buttons = []Button{{
				Label:   r.text("faq.vegan_button", lang),
				Suggest: r.text("faq.vegan_trigger", lang),
			}}
		}
		return rep, true
	}

	if containsAny(t, cfg.OrderKeywords) {
		rep.Text = strings.TrimSpace(r.text("faq.order", lang, "url", data.Settings.StoreURL))
		return rep, true
	}

	if len(data.FAQ) > 0 {
		rep.Text = data.FAQ[0].Answer(lang)
		return rep, true
	}
	return Reply{}, false
}

func (r *Resolver) locationAnswer(s kb.Settings, lang string) string {
	city := s.City
	if alt := r.locale.FAQ.CityNames[lang][strings.ToLower(strings.TrimSpace(city))]; alt != "" {
		city = alt
	}
	address := s.AddressLine
	if tail := strings.TrimSpace(s.PostalCode + " " + city); tail != "" {
		address += ", " + tail
	}

	head := r.text("faq.location_plain", lang, "address", address)
	if s.District != "" {
		head = r.text("faq.location", lang, "district", s.District, "address", address)
	}
	if lang == LangFI {
		return head
	}
	parts := []string{head, r.text("faq.location_street", lang)}
	if stops := localized(s.NearestStops, lang); stops != "" {
		parts = append(parts, stops)
	}
	parts = append(parts, r.text("faq.location_order", lang))
	return strings.Join(parts, " ")
}

func localized(m map[string]string, lang string) string {
	if s := strings.TrimSpace(m[lang]); s != "" {
		return s
	}
	return strings.TrimSpace(m[LangFI])
}

// bestFAQ scores items by +3 per tag in the query, +1 per shared word of three or more
// letters and +2 when the query asks about lead time. The first highest positive score
// wins.
func bestFAQ(query string, items []kb.FaqItem, cfg FAQConfig) (kb.FaqItem, bool) {
	if len(items) == 0 {
		return kb.FaqItem{}, false
	}
	qtoks := faqTokens(query)
	leadTime := containsAny(query, cfg.LeadTimePhrases)

	best, bestScore := -1, 0
	for i, it := range items {
		var all []string
		for _, q := range it.Q {
			all = append(all, strings.ToLower(q))
		}
		score := 0
		for _, tag := range it.Tags {
			if tag != "" && strings.Contains(query, strings.ToLower(tag)) {
				score += faqTagWeight
			}
		}
		for w := range faqTokens(strings.Join(all, " ")) {
			if _, ok := qtoks[w]; ok {
				score++
			}
		}
		if leadTime {
			score += faqLeadTimeWeight
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return kb.FaqItem{}, false
	}
	return items[best], true
}

func faqTokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range faqSplitRe.Split(strings.ToLower(s), -1) {
		if utf8.RuneCountInString(w) >= faqMinTokenLen {
			out[w] = struct{}{}
		}
	}
	return out
}

func hasAnyTag(tags, want []string) bool {
	for _, t := range tags {
		for _, w := range want {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}
