package retrieval

import (
	"github.com/kotileipomo/faq-engine/internal/textnorm"
)

// Expand returns the query tokens followed by the one-hop synonym of each token and the
// tokens of any matching boost rule, de-duplicated in first-seen order.
func Expand(lex *textnorm.Lexicon, query string) []string {
	base := lex.Tokens(query)
	out := make([]string, 0, len(base)*2)
	seen := make(map[string]struct{}, len(base)*2)
	add := func(t string) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, t := range base {
		add(t)
	}
	for _, t := range base {
		if syn, ok := lex.Synonym(t); ok {
			add(syn)
		}
	}
	for _, t := range lex.BoostTokens(textnorm.Normalize(query)) {
		add(t)
	}
	return out
}
