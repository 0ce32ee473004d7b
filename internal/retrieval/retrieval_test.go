package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotileipomo/faq-engine/internal/kb"
	"github.com/kotileipomo/faq-engine/internal/textnorm"
)

func sampleEntries() []kb.Entry {
	return []kb.Entry{
		{ID: "hours", Question: "What are your opening hours?", Answer: "Thu-Fri 11-17, Sat 11-15"},
		{ID: "parking", Question: "Is there parking nearby?", Answer: "Free parking in the yard behind the bakery."},
		{ID: "parking-dup", Question: "Where can I leave my car?", Answer: "Free parking in the yard behind the bakery!"},
		{ID: "wifi", Question: "Do you have wifi?", Answer: "Sorry, no wi-fi for customers."},
		{ID: "pies", Question: "Karjalanpiirakka ingredients?", Answer: "Rye flour, water, rice porridge, milk, salt."},
		{ID: "gluten", Question: "Do you sell gluten free bread?", Answer: "Not at the moment."},
	}
}

func TestBuildIndex(t *testing.T) {
	lex := textnorm.DefaultLexicon()
	entries := sampleEntries()
	docs, stats := BuildIndex(lex, entries)

	require.Len(t, docs, len(entries))
	assert.Equal(t, len(entries), stats.N)

	total := 0
	for i, d := range docs {
		assert.Equal(t, i, d.EntryIndex)
		assert.GreaterOrEqual(t, d.Len, 0)
		assert.Equal(t, len(d.Tokens), d.Len)
		total += d.Len
	}
	assert.InDelta(t, float64(total)/float64(len(entries)), stats.AvgLen, 1e-9)

	for tok, df := range stats.DF {
		assert.LessOrEqual(t, df, stats.N, tok)
		assert.Positive(t, df, tok)
	}
	// the parking entry mentions parking twice but counts once
	assert.Equal(t, 2, stats.DF["car park"])
}

func TestBuildIndex_Empty(t *testing.T) {
	docs, stats := BuildIndex(textnorm.DefaultLexicon(), nil)
	assert.Empty(t, docs)
	assert.Equal(t, 0, stats.N)
	assert.Zero(t, stats.AvgLen)
	assert.Zero(t, stats.Score([]string{"x"}, Document{}))
}

func TestScore_KnownValue(t *testing.T) {
	stats := IndexStats{DF: map[string]int{"bread": 1}, N: 2, AvgLen: 2}
	doc := Document{TF: map[string]int{"bread": 1, "rye": 1}, Len: 2}

	// idf = ln(1 + 1.5/1.5) = ln 2; tf part = 1*2.4 / (1 + 1.4) = 1
	assert.InDelta(t, 0.6931471805599453, stats.Score([]string{"bread"}, doc), 1e-12)
	assert.Zero(t, stats.Score([]string{"unknown"}, doc))
}

func TestScore_ZeroAvgLen(t *testing.T) {
	stats := IndexStats{DF: map[string]int{"a": 1}, N: 1}
	doc := Document{TF: map[string]int{"a": 1}, Len: 1}
	got := stats.Score([]string{"a"}, doc)
	assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
	assert.Positive(t, stats.Score([]string{"a"}, doc))
}

func TestScore_MonotonicInTermFrequency(t *testing.T) {
	stats := IndexStats{DF: map[string]int{"pie": 2, "rye": 1}, N: 5, AvgLen: 6}
	prev := -1.0
	for f := 0; f <= 10; f++ {
		doc := Document{TF: map[string]int{"pie": f, "rye": 1}, Len: 6}
		got := stats.Score([]string{"pie", "rye"}, doc)
		assert.GreaterOrEqual(t, got, prev, "tf=%d", f)
		prev = got
	}
}

func TestExpand(t *testing.T) {
	lex := textnorm.DefaultLexicon()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"synonym one hop", "wifi password", []string{"wi-fi", "password", "wifi"}},
		{"no synonyms", "rye bread", []string{"rye", "bread"}},
		{"park verb boost", "Where can I park?", []string{"park", "parking", "car", "car park", "garage", "pysäköinti"}},
		{"empty", "?!", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(lex, tt.query))
		})
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("", ""))
	assert.Equal(t, 1.0, Ratio("pulla", "pulla"))
	assert.Equal(t, 0.0, Ratio("abc", ""))
	assert.InDelta(t, 0.75, Ratio("abcd", "abce"), 1e-9)
}

func TestJaccard(t *testing.T) {
	set := func(ws ...string) map[string]struct{} {
		m := make(map[string]struct{})
		for _, w := range ws {
			m[w] = struct{}{}
		}
		return m
	}
	assert.Zero(t, Jaccard(set(), set("a")))
	assert.Equal(t, 1.0, Jaccard(set("a", "b"), set("b", "a")))
	assert.InDelta(t, 1.0/3.0, Jaccard(set("a", "b"), set("b", "c")), 1e-12)
}

func TestFindBestMatches_ExactMatch(t *testing.T) {
	snap := NewSnapshot(textnorm.DefaultLexicon(), sampleEntries())
	for _, e := range snap.Entries() {
		t.Run(e.ID, func(t *testing.T) {
			got := snap.FindBestMatches(e.Question, 3)
			require.Len(t, got, 1)
			assert.Equal(t, e.ID, got[0].Entry.ID)
			assert.Equal(t, 10.0, got[0].Blend)
			assert.Equal(t, 10.0, got[0].BM25)
			assert.Equal(t, 1.0, got[0].Fuzzy)
			assert.Equal(t, 1.0, got[0].Jaccard)
		})
	}
}

func TestFindBestMatches_ScenarioA(t *testing.T) {
	snap := NewSnapshot(textnorm.DefaultLexicon(), []kb.Entry{
		{Question: "What are your opening hours?", Answer: "Thu-Fri 11-17, Sat 11-15"},
	})
	got := snap.FindBestMatches("what are your OPENING hours", 0)
	require.Len(t, got, 1)
	assert.Equal(t, 10.0, got[0].Blend)
	assert.Equal(t, "Thu-Fri 11-17, Sat 11-15", got[0].Entry.Answer)
}

func TestFindBestMatches_RankingAndDedupe(t *testing.T) {
	snap := NewSnapshot(textnorm.DefaultLexicon(), sampleEntries())

	got := snap.FindBestMatches("parking for my car", 5)
	require.NotEmpty(t, got)
	assert.Contains(t, []string{"parking", "parking-dup"}, got[0].Entry.ID)

	answers := make(map[string]bool)
	for i, c := range got {
		key := textnorm.Normalize(c.Entry.Answer)
		assert.False(t, answers[key], "duplicate answer %q", key)
		answers[key] = true
		assert.Positive(t, c.Blend)
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Blend, c.Blend)
		}
	}
	assert.LessOrEqual(t, len(got), 5)
}

func TestFindBestMatches_TopKDefault(t *testing.T) {
	var entries []kb.Entry
	for i := 0; i < 10; i++ {
		entries = append(entries, kb.Entry{
			Question: fmt.Sprintf("bread question %d", i),
			Answer:   fmt.Sprintf("bread answer %d", i),
		})
	}
	snap := NewSnapshot(textnorm.DefaultLexicon(), entries)
	assert.Len(t, snap.FindBestMatches("bread", 0), DefaultTopK)
	assert.Len(t, snap.FindBestMatches("bread", 7), 7)
}

func TestFindBestMatches_EmptyQuery(t *testing.T) {
	snap := NewSnapshot(textnorm.DefaultLexicon(), sampleEntries())
	assert.Empty(t, snap.FindBestMatches("", 3))
	assert.Empty(t, NewSnapshot(textnorm.DefaultLexicon(), nil).FindBestMatches("bread", 3))
}

func TestGate_Boundaries(t *testing.T) {
	g := DefaultGateConfig()

	tests := []struct {
		name   string
		c      Candidate
		tokens int
		chars  int
		want   bool
	}{
		{"blend at threshold", Candidate{Blend: 1.20}, 5, 40, true},
		{"blend just below, weak signals", Candidate{Blend: 1.1999, BM25: 0.09, Jaccard: 0.04, Fuzzy: 0.54}, 5, 40, false},
		{"bm25 alone", Candidate{BM25: 0.10}, 5, 40, true},
		{"jaccard alone", Candidate{Jaccard: 0.05}, 5, 40, true},
		{"fuzzy with overlap", Candidate{Fuzzy: 0.55, BM25: 0.01}, 5, 40, true},
		{"fuzzy without overlap", Candidate{Fuzzy: 0.70}, 5, 40, false},
		{"two tokens fuzzy", Candidate{Fuzzy: 0.72}, 2, 40, true},
		{"three tokens fuzzy", Candidate{Fuzzy: 0.72}, 3, 40, false},
		{"fourteen chars", Candidate{Fuzzy: 0.74}, 3, 14, true},
		{"fifteen chars", Candidate{Fuzzy: 0.74}, 3, 15, false},
		{"zero candidate", Candidate{}, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Accept(tt.c, tt.tokens, tt.chars))
		})
	}
}

func TestGate_ScenarioB(t *testing.T) {
	lex := textnorm.DefaultLexicon()
	query := "karjalanpiirakk"

	tokens, chars := QueryShape(lex, query)
	assert.Equal(t, 1, tokens)
	assert.Equal(t, 15, chars)

	c := Candidate{
		Blend: 0.28 * 0.72,
		Fuzzy: 0.72,
		Entry: kb.Entry{Question: "Karjalanpiirakka ingredients?"},
	}
	assert.True(t, DefaultGateConfig().Accept(c, tokens, chars))
}

func TestGate_Filter(t *testing.T) {
	lex := textnorm.DefaultLexicon()
	g := DefaultGateConfig()
	cands := []Candidate{
		{Blend: 2, BM25: 1, Entry: kb.Entry{ID: "a"}},
		{Blend: 0.1, Fuzzy: 0.3, Entry: kb.Entry{ID: "b"}},
		{Blend: 0.3, Jaccard: 0.2, Entry: kb.Entry{ID: "c"}},
	}
	got := g.Filter(lex, "a rather long question about many things", cands)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Entry.ID)
	assert.Equal(t, "c", got[1].Entry.ID)
	assert.True(t, g.AcceptQuery(lex, "x", cands[0]))
}

type failingSource struct{}

func (failingSource) Load(context.Context) ([]kb.Entry, error) {
	return nil, errors.New("disk on fire")
}

func TestStore_Reload(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, kb.StaticSource(sampleEntries()), nil, nil)
	require.NotNil(t, store.Current())
	assert.Equal(t, 0, store.Current().Len())

	snap, err := store.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(sampleEntries()), snap.Len())
	assert.Same(t, snap, store.Current())
	assert.Equal(t, uint64(1), snap.Version)

	held := store.Current()
	store.Swap([]kb.Entry{{Question: "Only one?", Answer: "Yes"}})
	assert.Equal(t, len(sampleEntries()), held.Len(), "held snapshot must not change")
	assert.Equal(t, 1, store.Current().Len())
	assert.Equal(t, uint64(2), store.Current().Version)
}

func TestStore_ReloadFailureKeepsSnapshot(t *testing.T) {
	store := NewStore(nil, failingSource{}, nil, nil)
	store.Swap(sampleEntries())
	before := store.Current()

	_, err := store.Reload(context.Background())
	assert.Error(t, err)
	assert.Same(t, before, store.Current())

	_, err = NewStore(nil, nil, nil, nil).Reload(context.Background())
	assert.Error(t, err)
}

func TestStore_ConcurrentReadersDuringSwap(t *testing.T) {
	store := NewStore(nil, kb.StaticSource(sampleEntries()), nil, nil)
	_, err := store.Reload(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				snap := store.Current()
				got := snap.FindBestMatches("What are your opening hours?", 3)
				if snap.Len() > 0 {
					assert.NotEmpty(t, got)
				}
			}
		}()
	}
	for i := 0; i < 20; i++ {
		store.Swap(sampleEntries())
	}
	wg.Wait()
}
