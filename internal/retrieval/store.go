package retrieval

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kotileipomo/faq-engine/internal/kb"
	"github.com/kotileipomo/faq-engine/internal/observability"
	"github.com/kotileipomo/faq-engine/internal/textnorm"
)

// Store holds the current snapshot. Reload builds a new snapshot off to the side and swaps
// it in, so a reader keeps a consistent index for as long as it holds the pointer.
type Store struct {
	lex     *textnorm.Lexicon
	src     kb.Source
	logger  *observability.Logger
	metrics *observability.Metrics

	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	reload  sync.Mutex
}

// NewStore creates a store with an empty snapshot.
func NewStore(lex *textnorm.Lexicon, src kb.Source, logger *observability.Logger, metrics *observability.Metrics) *Store {
	if lex == nil {
		lex = textnorm.DefaultLexicon()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	s := &Store{
		lex:     lex,
		src:     src,
		logger:  logger.WithComponent("retrieval"),
		metrics: metrics,
	}
	s.current.Store(NewSnapshot(lex, nil))
	return s
}

// Current returns the snapshot in effect. It is never nil.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Lexicon returns the store's lexicon.
func (s *Store) Lexicon() *textnorm.Lexicon { return s.lex }

// Reload loads the source and swaps in a new snapshot. On error the current snapshot stays.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	if s.src == nil {
		return s.Current(), fmt.Errorf("reload: no knowledge base source configured")
	}
	s.reload.Lock()
	defer s.reload.Unlock()

	start := time.Now()
	entries, err := s.src.Load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Knowledge base reload failed, keeping previous index")
		return s.Current(), fmt.Errorf("load knowledge base: %w", err)
	}
	snap := s.Swap(entries)
	s.logger.Info().
		Int("entries", snap.Len()).
		Int("vocabulary", len(snap.stats.DF)).
		Int64("version", int64(snap.Version)).
		Dur("took", time.Since(start)).
		Msg("Index rebuilt")
	return snap, nil
}

// Swap indexes entries and installs the result.
func (s *Store) Swap(entries []kb.Entry) *Snapshot {
	snap := NewSnapshot(s.lex, entries)
	snap.Version = s.version.Add(1)
	s.current.Store(snap)
	s.metrics.SetSnapshotSize(snap.Len())
	return snap
}
