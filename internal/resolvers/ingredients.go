package resolvers

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kotileipomo/faq-engine/internal/catalog"
)

// maxIngredientsLen caps an ingredient list lifted from free text.
const maxIngredientsLen = 600

// Attribute name fragments for structured product data.
var (
	ingredientAttrKeys = []string{"ingredients", "aines", "ainesosat"}
	allergenAttrKeys   = []string{"allergens", "aller", "allerg"}
)

var (
	ingredientLabelRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ainesosat\s*[:\-]?\s*(.+)`),
		regexp.MustCompile(`(?i)ingredients\s*[:\-]?\s*(.+)`),
		regexp.MustCompile(`(?i)ingredienser\s*[:\-]?\s*(.+)`),
	}
	ingredientStopRe = regexp.MustCompile(`(?i)ravintosisältö|nutrition|ingredients|ainesosat|storage|säilytys|aller|\n|\r`)
)

var (
	htmlTagRe   = regexp.MustCompile(`<[^>]+>`)
	boldRe      = regexp.MustCompile(`(?is)<(?:b|strong)\b[^>]*>(.*?)</(?:b|strong)>`)
	wordRe      = regexp.MustCompile(`[a-zåäöA-ZÅÄÖ]+`)
	listSplitRe = regexp.MustCompile(`,\s*`)
	tokenPartRe = regexp.MustCompile(`^([^A-Za-zÅÄÖåäö]*)([A-Za-zÅÄÖåäö]+)([^A-Za-zÅÄÖåäö]*)$`)

	compoundFixes = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(?i)\btäys\s*maito\s*juoma\b`), "täysmaitojuoma"},
		{regexp.MustCompile(`(?i)\bruis\s*jauho\b`), "ruisjauho"},
		{regexp.MustCompile(`(?i)\bvehnä\s*jauho\b`), "vehnäjauho"},
		{regexp.MustCompile(`(?i)\brypsi\s*öljy\b`), "rypsiöljy"},
	}
)

// Canonical allergen keys produced by DetectAllergens.
const (
	AllergenMilk   = "milk"
	AllergenGluten = "gluten"
	AllergenEgg    = "egg"
)

type allergenTerms struct {
	key   string
	terms []string
	bold  []string

	// Words starting with notPrefixes or ending in notSuffixes never count, so
	// "kauramaito" and "mjölkfri" are not milk.
	notPrefixes []string
	notSuffixes []string
}

var (
	plantMilkFI = []string{"kaura", "soija", "manteli", "riisi", "kookos"}
	plantMilkSV = []string{"havre", "soja", "mandel", "ris", "kokos"}
	negationsFI = []string{"ton", "tön"}
	negationsSV = []string{"fri", "fritt", "fria"}
)

// Keyword sets per language. Bold fragments are matched as substrings of the words
// inside <b>/<strong> segments of the description, where shops usually mark allergens.
var allergenRules = map[string][]allergenTerms{
	LangFI: {
		{AllergenMilk, []string{"maito", "voi", "kerma", "piima", "piimä", "täysmaitojuoma"}, []string{"maito", "voi", "kerma"}, plantMilkFI, negationsFI},
		{AllergenGluten, []string{"vehnä", "vehnäjauho", "ruis", "ohra"}, []string{"vehn", "ruis", "ohra"}, nil, negationsFI},
		{AllergenEgg, []string{"muna", "kananmuna", "kananmunia"}, []string{"muna", "kananmuna"}, nil, negationsFI},
	},
	LangSV: {
		{AllergenMilk, []string{"mjölk", "mjolk", "grädde", "gradde", "smör", "smor", "yoghurt", "yogurt"}, []string{"mjölk", "mjolk", "grädde", "gradde", "smör", "smor"}, plantMilkSV, negationsSV},
		{AllergenGluten, []string{"vete", "vetemjöl", "vetemjol", "råg", "rag", "korn"}, []string{"vete", "vetemjöl", "vetemjol", "råg", "rag", "korn"}, nil, negationsSV},
		{AllergenEgg, []string{"ägg", "agg"}, []string{"ägg", "agg"}, nil, negationsSV},
	},
}

// exactOnly terms are too short or ambiguous to match inside compound words
// ("voi" is also the verb "may", "muna" starts "munakoiso").
var exactOnly = map[string]bool{"voi": true, "muna": true, "rag": true, "agg": true, "korn": true, "vete": true}

// excludes reports whether w is a plant-based or negated form of the rule's terms.
func (r allergenTerms) excludes(w string) bool {
	for _, p := range r.notPrefixes {
		if strings.HasPrefix(w, p) {
			return true
		}
	}
	for _, suf := range r.notSuffixes {
		if strings.HasSuffix(w, suf) {
			return true
		}
	}
	return false
}

func attributeText(p catalog.Product, keys []string) string {
	for _, a := range p.Attributes {
		name := strings.ToLower(a.Name)
		val := strings.TrimSpace(a.Value)
		if val != "" && containsAny(name, keys) {
			return val
		}
	}
	return ""
}

func stripHTML(s string) string {
	return htmlTagRe.ReplaceAllString(s, " ")
}

// ExtractIngredients finds the ingredient list in an HTML product description: the text
// after an "ingredients:" style label up to the next known section label or line end.
func ExtractIngredients(descHTML string) string {
	if strings.TrimSpace(descHTML) == "" {
		return ""
	}
	text := stripHTML(descHTML)
	for _, re := range ingredientLabelRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		tail := strings.TrimSpace(m[1])
		if loc := ingredientStopRe.FindStringIndex(tail); loc != nil {
			tail = tail[:loc[0]]
		}
		tail = truncateRunes(strings.TrimSpace(tail), maxIngredientsLen)
		tail = strings.Trim(tail, " .;:,\n\r")
		if tail != "" {
			return tail
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// DetectAllergens infers canonical allergen keys from Finnish and Swedish ingredient
// words. Compound words match by prefix or suffix, so "vehnäjauhoa" and "kananmunaa"
// count; plant milks and "-free" words never do.
func DetectAllergens(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	words := wordRe.FindAllString(strings.ToLower(stripHTML(text)), -1)
	bold := boldRe.FindAllStringSubmatch(text, -1)

	var out []string
	add := func(k string) {
		for _, have := range out {
			if have == k {
				return
			}
		}
		out = append(out, k)
	}

	for _, lang := range []string{LangFI, LangSV} {
		for _, rule := range allergenRules[lang] {
			if rule.matchesWord(words) {
				add(rule.key)
			}
		}
		for _, m := range bold {
			segWords := wordRe.FindAllString(strings.ToLower(stripHTML(m[1])), -1)
			for _, rule := range allergenRules[lang] {
				if rule.matchesBold(segWords) {
					add(rule.key)
				}
			}
		}
	}
	return out
}

func (r allergenTerms) matchesWord(words []string) bool {
	for _, w := range words {
		for _, t := range r.terms {
			if w == t {
				return true
			}
			if exactOnly[t] || utf8.RuneCountInString(t) < 4 || r.excludes(w) {
				continue
			}
			if strings.HasPrefix(w, t) || strings.HasSuffix(w, t) {
				return true
			}
		}
	}
	return false
}

func (r allergenTerms) matchesBold(words []string) bool {
	for _, w := range words {
		if !r.excludes(w) && containsAny(w, r.bold) {
			return true
		}
	}
	return false
}

// TranslateIngredients renders a Finnish ingredient list in lang word by word. Unknown
// words are kept; the case of each leading letter is preserved.
func (l *Locale) TranslateIngredients(list, lang string) string {
	base := collapseSpaces(list)
	for _, fix := range compoundFixes {
		base = fix.re.ReplaceAllString(base, fix.repl)
	}
	if lang == LangFI || base == "" {
		return base
	}

	var out []string
	for _, part := range listSplitRe.Split(base, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		low := strings.ToLower(part)
		if tr := l.phrases[low][lang]; tr != "" {
			out = append(out, matchLeadingCase(part, tr))
			continue
		}
		if tr := l.ingredients[low][lang]; tr != "" {
			out = append(out, matchLeadingCase(part, tr))
			continue
		}
		words := strings.Fields(part)
		for i, w := range words {
			words[i] = l.translateWord(w, lang)
		}
		out = append(out, strings.Join(words, " "))
	}
	return strings.Join(out, ", ")
}

func (l *Locale) translateWord(w, lang string) string {
	m := tokenPartRe.FindStringSubmatch(w)
	if m == nil {
		return w
	}
	core := m[2]
	if tr := l.ingredients[strings.ToLower(core)][lang]; tr != "" {
		core = matchLeadingCase(m[2], tr)
	}
	return m[1] + core + m[3]
}

// matchLeadingCase gives dst's first letter the case of src's first letter.
func matchLeadingCase(src, dst string) string {
	upper, found := false, false
	for _, r := range src {
		if unicode.IsLetter(r) {
			upper, found = unicode.IsUpper(r), true
			break
		}
	}
	if !found {
		return dst
	}
	rs := []rune(dst)
	for i, r := range rs {
		if unicode.IsLetter(r) {
			if upper {
				rs[i] = unicode.ToUpper(r)
			} else {
				rs[i] = unicode.ToLower(r)
			}
			break
		}
	}
	return string(rs)
}
