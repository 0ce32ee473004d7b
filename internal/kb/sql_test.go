package kb

import (
	"context"
	"database/sql"
	"testing"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteSource(t *testing.T) (*SQLSource, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	src := NewSQLSource(db, DriverSQLite, nil)
	require.NoError(t, src.EnsureSchema(context.Background()))
	return src, db
}

func TestNewSQLSource_PlaceholderFormat(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{DriverSQLite, "SELECT id FROM kb_entries WHERE id = ?"},
		{DriverPostgres, "SELECT id FROM kb_entries WHERE id = $1"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			src := NewSQLSource(nil, tt.driver, nil)
			query, args, err := src.sb.Select("id").From("kb_entries").Where(sq.Eq{"id": "a"}).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
			assert.Equal(t, []interface{}{"a"}, args)
		})
	}
}

func TestSQLSource_UpsertAndLoad(t *testing.T) {
	ctx := context.Background()
	src, db := newSQLiteSource(t)

	require.NoError(t, src.Upsert(ctx,
		Entry{ID: "b", Question: "Do you have parking?", Answer: "Yes, behind the shop.", Tags: []string{"parking", "car"}, Enabled: true},
		Entry{ID: "a", Question: "Opening hours?", Answer: "Thu-Sat", Enabled: true},
		Entry{ID: "c", Question: "Hidden", Answer: "Not served", Enabled: false},
		Entry{ID: "d", Question: "opening hours", Answer: "thu-sat", Enabled: true},
	))
	_, err := db.ExecContext(ctx, `INSERT INTO kb_entries (id, question, answer) VALUES ('e', '  ', 'blank question')`)
	require.NoError(t, err)

	entries, err := src.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "b", entries[1].ID)
	assert.Equal(t, []string{"parking", "car"}, entries[1].Tags)

	// upsert replaces the answer in place
	require.NoError(t, src.Upsert(ctx, Entry{ID: "a", Question: "Opening hours?", Answer: "Thu-Fri 11-17", Enabled: true}))
	got, err := src.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Thu-Fri 11-17", got.Answer)
	assert.True(t, got.Enabled)
}

func TestSQLSource_GetAndDelete(t *testing.T) {
	ctx := context.Background()
	src, _ := newSQLiteSource(t)

	_, err := src.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, src.Delete(ctx, "missing"), ErrNotFound)

	require.NoError(t, src.Upsert(ctx, Entry{Question: "Q?", Answer: "A.", Enabled: true}))
	entries, err := src.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)

	require.NoError(t, src.Delete(ctx, entries[0].ID))
	entries, err = src.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewSQLSource_Placeholders(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{DriverSQLite, "SELECT id FROM kb_entries WHERE id = ?"},
		{DriverPostgres, "SELECT id FROM kb_entries WHERE id = $1"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			src := NewSQLSource(nil, tt.driver, nil)
			query, _, err := src.sb.Select("id").From(src.table).Where("id = ?", "x").ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
		})
	}
}

func TestSplitTags(t *testing.T) {
	assert.Nil(t, splitTags(""))
	assert.Nil(t, splitTags("  "))
	assert.Equal(t, []string{"a", "b"}, splitTags("a, ,b,"))
}
