package kb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/kotileipomo/faq-engine/internal/observability"
)

// DB represents a database connection. *sql.DB and *sql.Tx satisfy it.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const defaultTable = "kb_entries"

// SQLSource stores KB entries in a kb_entries table. It works with sqlite3 (mattn/go-sqlite3)
// and postgres (lib/pq); only the placeholder format differs.
type SQLSource struct {
	db     DB
	table  string
	sb     sq.StatementBuilderType
	logger *observability.Logger
}

// NewSQLSource creates a SQL-backed source. driver selects the placeholder style.
func NewSQLSource(db DB, driver string, logger *observability.Logger) *SQLSource {
	if logger == nil {
		logger = observability.NopLogger()
	}
	var format sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		format = sq.Dollar
	}
	return &SQLSource{
		db:     db,
		table:  defaultTable,
		sb:     sq.StatementBuilder.PlaceholderFormat(format),
		logger: logger.WithComponent("kb-sql"),
	}
}

// EnsureSchema creates the entries table if needed.
func (s *SQLSource) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + s.table + ` (
			id       TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			answer   TEXT NOT NULL,
			title    TEXT NOT NULL DEFAULT '',
			tags     TEXT NOT NULL DEFAULT '',
			source   TEXT NOT NULL DEFAULT '',
			enabled  BOOLEAN NOT NULL DEFAULT TRUE
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Load returns all enabled rows in id order, skipping malformed rows and duplicates.
func (s *SQLSource) Load(ctx context.Context) ([]Entry, error) {
	query, args, err := s.sb.
		Select("id", "question", "answer", "title", "tags", "source").
		From(s.table).
		Where(sq.Eq{"enabled": true}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build kb query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query kb entries: %w", err)
	}
	defer rows.Close()

	dedup := NewDeduper()
	var out []Entry
	skipped := 0
	for rows.Next() {
		var e Entry
		var tags string
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &e.Title, &tags, &e.Source); err != nil {
			return nil, fmt.Errorf("scan kb entry: %w", err)
		}
		e.Question = strings.TrimSpace(e.Question)
		e.Answer = strings.TrimSpace(e.Answer)
		e.Tags = splitTags(tags)
		e.Enabled = true
		if Validate(e) != nil || !dedup.Add(e) {
			skipped++
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kb entries: %w", err)
	}

	s.logger.Info().Int("entries", len(out)).Int("skipped", skipped).Msg("Knowledge base loaded from database")
	return out, nil
}

// Get returns a single entry by id.
func (s *SQLSource) Get(ctx context.Context, id string) (*Entry, error) {
	query, args, err := s.sb.
		Select("id", "question", "answer", "title", "tags", "source", "enabled").
		From(s.table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build kb query: %w", err)
	}
	var e Entry
	var tags string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&e.ID, &e.Question, &e.Answer, &e.Title, &tags, &e.Source, &e.Enabled,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get kb entry: %w", err)
	}
	e.Tags = splitTags(tags)
	return &e, nil
}

// Upsert inserts or replaces entries. Entries without an ID get a random one.
func (s *SQLSource) Upsert(ctx context.Context, entries ...Entry) error {
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		query, args, err := s.sb.
			Insert(s.table).
			Columns("id", "question", "answer", "title", "tags", "source", "enabled").
			Values(e.ID, e.Question, e.Answer, e.Title, strings.Join(e.Tags, ","), e.Source, e.Enabled).
			Suffix(`ON CONFLICT (id) DO UPDATE SET
				question = excluded.question,
				answer = excluded.answer,
				title = excluded.title,
				tags = excluded.tags,
				source = excluded.source,
				enabled = excluded.enabled`).
			ToSql()
		if err != nil {
			return fmt.Errorf("build upsert: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert kb entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// Delete removes an entry by id.
func (s *SQLSource) Delete(ctx context.Context, id string) error {
	query, args, err := s.sb.Delete(s.table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete kb entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
