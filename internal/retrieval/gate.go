package retrieval

import (
	"strings"
	"unicode/utf8"

	"github.com/kotileipomo/faq-engine/internal/textnorm"
)

// GateConfig holds the acceptance thresholds. A candidate passes when any rule holds.
type GateConfig struct {
	MinBlend   float64 `yaml:"min_blend" json:"minBlend"`
	MinBM25    float64 `yaml:"min_bm25" json:"minBm25"`
	MinJaccard float64 `yaml:"min_jaccard" json:"minJaccard"`
	// MinFuzzyWithOverlap applies when BM25 or Jaccard is non-zero.
	MinFuzzyWithOverlap float64 `yaml:"min_fuzzy_with_overlap" json:"minFuzzyWithOverlap"`
	// Short queries may pass on fuzzy similarity alone.
	ShortQueryTokens    int     `yaml:"short_query_tokens" json:"shortQueryTokens"`
	MinFuzzyShortTokens float64 `yaml:"min_fuzzy_short_tokens" json:"minFuzzyShortTokens"`
	ShortQueryChars     int     `yaml:"short_query_chars" json:"shortQueryChars"`
	MinFuzzyShortChars  float64 `yaml:"min_fuzzy_short_chars" json:"minFuzzyShortChars"`
}

// DefaultGateConfig returns the production thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinBlend:            1.20,
		MinBM25:             0.10,
		MinJaccard:          0.05,
		MinFuzzyWithOverlap: 0.55,
		ShortQueryTokens:    2,
		MinFuzzyShortTokens: 0.72,
		ShortQueryChars:     14,
		MinFuzzyShortChars:  0.74,
	}
}

// Accept decides whether c is confident enough to answer with. tokenCount is the number
// of query tokens after stop-word removal, charLen the rune length of the trimmed query.
func (g GateConfig) Accept(c Candidate, tokenCount, charLen int) bool {
	switch {
	case c.Blend >= g.MinBlend:
		return true
	case c.BM25 >= g.MinBM25:
		return true
	case c.Jaccard >= g.MinJaccard:
		return true
	case c.Fuzzy >= g.MinFuzzyWithOverlap && (c.BM25 > 0 || c.Jaccard > 0):
		return true
	case tokenCount <= g.ShortQueryTokens && c.Fuzzy >= g.MinFuzzyShortTokens:
		return true
	case charLen <= g.ShortQueryChars && c.Fuzzy >= g.MinFuzzyShortChars:
		return true
	}
	return false
}

// QueryShape returns the token count and trimmed rune length the gate needs.
func QueryShape(lex *textnorm.Lexicon, query string) (tokenCount, charLen int) {
	return len(lex.Tokens(query)), utf8.RuneCountInString(strings.TrimSpace(query))
}

// AcceptQuery runs the gate for c against the raw query.
func (g GateConfig) AcceptQuery(lex *textnorm.Lexicon, query string, c Candidate) bool {
	tokens, chars := QueryShape(lex, query)
	return g.Accept(c, tokens, chars)
}

// Filter keeps the accepted candidates, preserving order.
func (g GateConfig) Filter(lex *textnorm.Lexicon, query string, cands []Candidate) []Candidate {
	tokens, chars := QueryShape(lex, query)
	var out []Candidate
	for _, c := range cands {
		if g.Accept(c, tokens, chars) {
			out = append(out, c)
		}
	}
	return out
}
