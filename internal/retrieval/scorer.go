package retrieval

import (
	"sort"
	"strings"

	"github.com/kotileipomo/faq-engine/internal/kb"
	"github.com/kotileipomo/faq-engine/internal/textnorm"
)

// Blend weights.
const (
	WeightBM25    = 0.62
	WeightFuzzy   = 0.28
	WeightJaccard = 0.10
)

// DefaultTopK is used when FindBestMatches is called with topK <= 0.
const DefaultTopK = 3

// exact question matches carry these synthetic scores
const (
	exactBlend   = 10.0
	exactBM25    = 10.0
	exactFuzzy   = 1.0
	exactJaccard = 1.0
)

// Candidate is a scored KB entry.
type Candidate struct {
	Blend   float64  `json:"blend"`
	BM25    float64  `json:"bm25"`
	Fuzzy   float64  `json:"fuzzy"`
	Jaccard float64  `json:"jaccard"`
	Entry   kb.Entry `json:"entry"`
}

// Snapshot is an immutable index over a KB. It is safe for concurrent use.
type Snapshot struct {
	Version uint64

	lex       *textnorm.Lexicon
	entries   []kb.Entry
	docs      []Document
	stats     IndexStats
	questions []string              // normalized questions
	qtokens   []map[string]struct{} // question token sets
	answers   []string              // normalized answers
}

// NewSnapshot indexes entries. Entries are expected to be well-formed; blank ones are
// dropped.
func NewSnapshot(lex *textnorm.Lexicon, entries []kb.Entry) *Snapshot {
	kept := make([]kb.Entry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Question) == "" || strings.TrimSpace(e.Answer) == "" {
			continue
		}
		kept = append(kept, e)
	}

	s := &Snapshot{lex: lex, entries: kept}
	s.docs, s.stats = BuildIndex(lex, kept)
	s.questions = make([]string, len(kept))
	s.qtokens = make([]map[string]struct{}, len(kept))
	s.answers = make([]string, len(kept))
	for i, e := range kept {
		s.questions[i] = textnorm.Normalize(e.Question)
		s.qtokens[i] = lex.TokenSet(e.Question)
		s.answers[i] = textnorm.Normalize(e.Answer)
	}
	return s
}

// Entries returns the indexed entries. Callers must not modify the slice.
func (s *Snapshot) Entries() []kb.Entry { return s.entries }

// Stats returns the corpus statistics.
func (s *Snapshot) Stats() IndexStats { return s.stats }

// Documents returns the indexed documents.
func (s *Snapshot) Documents() []Document { return s.docs }

// Lexicon returns the lexicon the snapshot was built with.
func (s *Snapshot) Lexicon() *textnorm.Lexicon { return s.lex }

// Len returns the number of indexed entries.
func (s *Snapshot) Len() int { return len(s.entries) }

// Score rates entry i against the query.
func (s *Snapshot) Score(query string, i int) Candidate {
	return s.score(Expand(s.lex, query), textnorm.Normalize(query), s.lex.TokenSet(query), i)
}

func (s *Snapshot) score(expanded []string, normQuery string, qset map[string]struct{}, i int) Candidate {
	bm := s.stats.Score(expanded, s.docs[i])
	fz := Ratio(normQuery, s.questions[i])
	jc := Jaccard(qset, s.qtokens[i])
	return Candidate{
		Blend:   WeightBM25*bm + WeightFuzzy*fz + WeightJaccard*jc,
		BM25:    bm,
		Fuzzy:   fz,
		Jaccard: jc,
		Entry:   s.entries[i],
	}
}

// FindBestMatches returns up to topK candidates with a positive blend, best first, no two
// sharing a normalized answer. A query whose normalized form equals an entry's normalized
// question returns only that entry with maximal scores.
func (s *Snapshot) FindBestMatches(query string, topK int) []Candidate {
	if topK <= 0 {
		topK = DefaultTopK
	}
	normQuery := textnorm.Normalize(query)
	for i, q := range s.questions {
		if q != "" && q == normQuery {
			return []Candidate{{
				Blend:   exactBlend,
				BM25:    exactBM25,
				Fuzzy:   exactFuzzy,
				Jaccard: exactJaccard,
				Entry:   s.entries[i],
			}}
		}
	}

	expanded := Expand(s.lex, query)
	qset := s.lex.TokenSet(query)
	scored := make([]Candidate, 0, len(s.entries))
	answers := make([]string, 0, len(s.entries))
	for i := range s.entries {
		c := s.score(expanded, normQuery, qset, i)
		if c.Blend <= 0 {
			continue
		}
		scored = append(scored, c)
		answers = append(answers, s.answers[i])
	}

	order := make([]int, len(scored))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scored[order[a]].Blend > scored[order[b]].Blend
	})

	out := make([]Candidate, 0, topK)
	seen := make(map[string]struct{}, topK)
	for _, idx := range order {
		if _, dup := seen[answers[idx]]; dup {
			continue
		}
		seen[answers[idx]] = struct{}{}
		out = append(out, scored[idx])
		if len(out) == topK {
			break
		}
	}
	return out
}
