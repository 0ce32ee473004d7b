// Package retrieval ranks knowledge-base entries against a free-text query using a blend
// of BM25, fuzzy string similarity and token overlap, and decides whether the best match
// is confident enough to answer with.
package retrieval

import (
	"math"

	"github.com/kotileipomo/faq-engine/internal/kb"
	"github.com/kotileipomo/faq-engine/internal/textnorm"
)

// BM25 parameters.
const (
	K1 = 1.4
	B  = 0.75
)

// Document is the indexed form of one KB entry.
type Document struct {
	EntryIndex int
	Tokens     []string
	TF         map[string]int
	Len        int
}

// IndexStats holds corpus-wide statistics. DF[t] <= N for every t.
type IndexStats struct {
	DF     map[string]int
	N      int
	AvgLen float64
}

// BuildIndex tokenizes question + answer of every entry. Document frequency counts a
// document once per distinct token.
func BuildIndex(lex *textnorm.Lexicon, entries []kb.Entry) ([]Document, IndexStats) {
	docs := make([]Document, 0, len(entries))
	stats := IndexStats{DF: make(map[string]int)}

	total := 0
	for i, e := range entries {
		toks := lex.Tokens(e.Question + " " + e.Answer)
		tf := make(map[string]int, len(toks))
		for _, t := range toks {
			tf[t]++
		}
		for t := range tf {
			stats.DF[t]++
		}
		docs = append(docs, Document{EntryIndex: i, Tokens: toks, TF: tf, Len: len(toks)})
		total += len(toks)
	}

	stats.N = len(docs)
	if stats.N > 0 {
		stats.AvgLen = float64(total) / float64(stats.N)
	}
	return docs, stats
}

// IDF returns ln(1 + (N - df + 0.5) / (df + 0.5)).
func (s IndexStats) IDF(token string) float64 {
	df := s.DF[token]
	return math.Log(1 + (float64(s.N)-float64(df)+0.5)/(float64(df)+0.5))
}

// Score computes the Okapi BM25 score of doc for the query tokens. Tokens unknown to the
// corpus contribute nothing.
func (s IndexStats) Score(query []string, doc Document) float64 {
	if doc.Len == 0 || len(query) == 0 {
		return 0
	}
	avg := s.AvgLen
	if avg == 0 {
		avg = 1
	}
	norm := K1 * (1 - B + B*float64(doc.Len)/avg)

	score := 0.0
	for _, t := range query {
		if s.DF[t] == 0 {
			continue
		}
		f := float64(doc.TF[t])
		if f == 0 {
			continue
		}
		score += s.IDF(t) * f * (K1 + 1) / (f + norm)
	}
	return score
}

// Overlaps reports whether any token occurs in the corpus.
func (s IndexStats) Overlaps(tokens []string) bool {
	for _, t := range tokens {
		if s.DF[t] > 0 {
			return true
		}
	}
	return false
}
