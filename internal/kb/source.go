package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/kotileipomo/faq-engine/internal/observability"
	"github.com/kotileipomo/faq-engine/internal/textnorm"
)

// Source provides the retrieval corpus. Implementations return only well-formed,
// enabled, de-duplicated entries.
type Source interface {
	Load(ctx context.Context) ([]Entry, error)
}

// entryNamespace seeds deterministic IDs for entries that have none.
var entryNamespace = uuid.MustParse("6f1c9a4e-3b0d-4c55-9a57-8d2f0e8b7a11")

// rawEntry mirrors Entry with optional fields so absent keys can be told apart.
type rawEntry struct {
	ID       string   `json:"id" yaml:"id"`
	Question string   `json:"question" yaml:"question"`
	Answer   string   `json:"answer" yaml:"answer"`
	Title    string   `json:"title" yaml:"title"`
	Tags     []string `json:"tags" yaml:"tags"`
	Enabled  *bool    `json:"enabled" yaml:"enabled"`
}

func (r rawEntry) toEntry(source string) (Entry, error) {
	e := Entry{
		ID:       strings.TrimSpace(r.ID),
		Question: strings.TrimSpace(r.Question),
		Answer:   strings.TrimSpace(r.Answer),
		Title:    strings.TrimSpace(r.Title),
		Tags:     r.Tags,
		Source:   source,
		Enabled:  r.Enabled == nil || *r.Enabled,
	}
	if err := Validate(e); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrEmptyEntry, err)
	}
	if e.ID == "" {
		e.ID = uuid.NewSHA1(entryNamespace, []byte(source+"\x00"+e.Question)).String()
	}
	return e, nil
}

// FileSource loads entries from every *.json, *.yaml and *.yml file in Dir. Each file holds
// a list of {id?, question, answer, title?, tags?, enabled?} rows.
type FileSource struct {
	Dir    string
	Logger *observability.Logger
}

// NewFileSource creates a FileSource over dir.
func NewFileSource(dir string, logger *observability.Logger) *FileSource {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &FileSource{Dir: dir, Logger: logger.WithComponent("kb")}
}

// Load reads all KB files. Unreadable files and malformed rows are skipped and logged.
func (s *FileSource) Load(ctx context.Context) ([]Entry, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}

	dedup := NewDeduper()
	var out []Entry
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := filepath.Base(path)
		rows, err := readRows(path)
		if err != nil {
			s.Logger.Warn().Err(err).Str("file", name).Msg("Skipping KB file")
			continue
		}
		kept := 0
		for i, row := range rows {
			e, err := row.toEntry(name)
			if err != nil {
				s.Logger.Debug().Str("file", name).Int("row", i).Msg("Skipping malformed KB row")
				continue
			}
			if !e.Enabled || !dedup.Add(e) {
				continue
			}
			out = append(out, e)
			kept++
		}
		s.Logger.Debug().Str("file", name).Int("entries", kept).Msg("Loaded KB file")
	}

	s.Logger.Info().Int("entries", len(out)).Int("files", len(files)).Msg("Knowledge base loaded")
	return out, nil
}

func (s *FileSource) files() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read kb dir: %w", err)
	}
	var out []string
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(de.Name())) {
		case ".json", ".yaml", ".yml":
			out = append(out, filepath.Join(s.Dir, de.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// readRows decodes a list of rows, skipping list elements that are not objects.
func readRows(path string) ([]rawEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows []rawEntry
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("kb file is not a JSON list: %w", err)
		}
		for _, item := range items {
			var r rawEntry
			if json.Unmarshal(item, &r) == nil {
				rows = append(rows, r)
			}
		}
		return rows, nil
	}

	var nodes []yaml.Node
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("kb file is not a YAML list: %w", err)
	}
	for i := range nodes {
		var r rawEntry
		if nodes[i].Decode(&r) == nil {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// Deduper drops entries whose normalized (question, answer) pair was already seen.
type Deduper struct {
	seen map[[2]string]struct{}
}

// NewDeduper creates an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[[2]string]struct{})}
}

// Add records e and reports whether it was new.
func (d *Deduper) Add(e Entry) bool {
	key := [2]string{textnorm.Normalize(e.Question), textnorm.Normalize(e.Answer)}
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// StaticSource serves a fixed slice of entries. Useful for embedding and tests.
type StaticSource []Entry

// Load returns the well-formed, de-duplicated entries.
func (s StaticSource) Load(ctx context.Context) ([]Entry, error) {
	dedup := NewDeduper()
	out := make([]Entry, 0, len(s))
	for _, e := range s {
		if strings.TrimSpace(e.Question) == "" || strings.TrimSpace(e.Answer) == "" {
			continue
		}
		if !dedup.Add(e) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
