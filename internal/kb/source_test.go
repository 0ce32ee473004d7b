package kb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_general.json", `[
		{"id": "hours", "question": "What are your opening hours?", "answer": "Thu-Fri 11-17, Sat 11-15", "tags": ["hours"]},
		{"question": "   ", "answer": "no question"},
		{"question": "No answer"},
		"not an object",
		{"question": "Hidden", "answer": "Disabled row", "enabled": false}
	]`)
	writeFile(t, dir, "b_parking.yaml", `
- question: Where can I park?
  answer: There is a car park behind the building.
- question: "what are your OPENING hours"
  answer: "Thu-Fri 11-17, Sat 11-15"
`)
	writeFile(t, dir, "c_broken.json", `{"question": "not a list"}`)
	writeFile(t, dir, "notes.txt", "ignored")

	src := NewFileSource(dir, nil)
	entries, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "hours", entries[0].ID)
	assert.Equal(t, "a_general.json", entries[0].Source)
	assert.Equal(t, []string{"hours"}, entries[0].Tags)
	assert.True(t, entries[0].Enabled)

	assert.Equal(t, "Where can I park?", entries[1].Question)
	assert.Equal(t, "b_parking.yaml", entries[1].Source)
	assert.NotEmpty(t, entries[1].ID)
}

func TestFileSource_GeneratedIDsAreStable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "kb.json", `[{"question": "Do you deliver?", "answer": "No, pickup only."}]`)

	src := NewFileSource(dir, nil)
	first, err := src.Load(context.Background())
	require.NoError(t, err)
	second, err := src.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, first, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestFileSource_MissingDir(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "nope"), nil)
	_, err := src.Load(context.Background())
	assert.Error(t, err)
}

func TestFileSource_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "kb.json", `[{"question": "q", "answer": "a"}]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileSource(dir, nil).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticSource_Load(t *testing.T) {
	src := StaticSource{
		{ID: "1", Question: "Where are you?", Answer: "Helsinki"},
		{ID: "2", Question: "where are you", Answer: "helsinki!"},
		{ID: "3", Question: "", Answer: "orphan"},
		{ID: "4", Question: "Do you have wifi?", Answer: "Yes"},
	}
	entries, err := src.Load(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"1", "4"}, ids)
}

func TestDeduper(t *testing.T) {
	d := NewDeduper()
	assert.True(t, d.Add(Entry{Question: "Hello?", Answer: "Hi"}))
	assert.False(t, d.Add(Entry{Question: "hello", Answer: "HI"}))
	assert.True(t, d.Add(Entry{Question: "hello", Answer: "Hey"}))
}
