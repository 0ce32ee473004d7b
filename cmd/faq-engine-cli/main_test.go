package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotileipomo/faq-engine/internal/observability"
)

const testConfigYAML = `kb:
  driver: file
  dir: kb
  data_dir: data
  watch: false
observability:
  log_level: error
  metrics_enabled: false
locale:
  default_lang: fi
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "KB_DIR", "DATA_DIR", "ECWID_STORE_ID", "ECWID_TOKEN", "DEFAULT_LANG", "REDIS_URL", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "kb"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "kb", "general.json"),
		[]byte(`[{"id":"wifi","question":"Do you have wifi?","answer":"Sorry, no wi-fi for customers."}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "hours.json"),
		[]byte(`{"hours":{"3":[{"start":"11:00","end":"17:00"}]}}`), 0o644))

	path := filepath.Join(root, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o644))
	return path
}

// execute runs the root command and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, outputJSON, verbose, noColor = "", false, false, false

	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w

	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.Bytes()
	}()

	rootCmd.SetArgs(args)
	runErr := rootCmd.Execute()

	w.Close()
	os.Stdout = orig
	out := <-done
	r.Close()
	return string(out), runErr
}

func TestCLI_Ask(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := execute(t, "--config", cfgPath, "--json", "ask", "--lang", "en", "Do", "you", "have", "wifi?")
	require.NoError(t, err)

	var resp struct {
		Source string  `json:"source"`
		Ref    string  `json:"ref"`
		Match  float64 `json:"match"`
		Reply  struct {
			Text string `json:"text"`
		} `json:"reply"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "kb", resp.Source)
	assert.Equal(t, "general.json", resp.Ref)
	assert.Equal(t, "Sorry, no wi-fi for customers.", resp.Reply.Text)
}

func TestCLI_AskPlain(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := execute(t, "--config", cfgPath, "ask", "--lang", "en", "opening hours")
	require.NoError(t, err)
	assert.Contains(t, out, "Opening hours:\nThursday: 11:00–17:00")
	assert.Contains(t, out, "Source: intent")
}

func TestCLI_Intent(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := execute(t, "--config", cfgPath, "--json", "intent", "--lang", "en", "opening hours")
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "hours", resp["intent"])
	assert.Equal(t, "opening", resp["phrase"])
	assert.Equal(t, true, resp["routed"])
}

func TestCLI_Match(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := execute(t, "--config", cfgPath, "--json", "match", "-k", "2", "Do you have wifi?")
	require.NoError(t, err)

	var resp struct {
		Accepted   bool              `json:"accepted"`
		Candidates []json.RawMessage `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.True(t, resp.Accepted)
	assert.Len(t, resp.Candidates, 1)

	_, err = execute(t, "--config", cfgPath, "match", "-k", "0", "wifi")
	assert.Error(t, err)
}

func TestCLI_Pickup(t *testing.T) {
	cfgPath := writeTestConfig(t)

	tests := []struct {
		iso     string
		wantOK  bool
		wantErr bool
	}{
		{"2025-12-18T12:00", true, false},
		{"2025-12-19T12:00", false, false},
		{"tomorrow", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.iso, func(t *testing.T) {
			out, err := execute(t, "--config", cfgPath, "--json", "pickup", tt.iso)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
			assert.Equal(t, tt.wantOK, resp["ok"])
		})
	}
}

func TestCLI_KBImportNeedsSQL(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := execute(t, "--config", cfgPath, "kb", "import")
	assert.ErrorContains(t, err, "sqlite or postgres")
}

func TestCLI_KBImportSQLite(t *testing.T) {
	cfgPath := writeTestConfig(t)
	dbPath := filepath.Join(t.TempDir(), "kb.db")
	t.Setenv("DATABASE_URL", "sqlite:"+dbPath)

	out, err := execute(t, "--config", cfgPath, "--json", "kb", "import", "--dir", filepath.Join(filepath.Dir(cfgPath), "kb"))
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, float64(1), resp["imported"])
	assert.Equal(t, float64(1), resp["entries"])

	_, err = execute(t, "--config", cfgPath, "kb", "delete", "missing-id")
	assert.ErrorContains(t, err, "not found")
}

func TestCLI_CatalogDisabled(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := execute(t, "--config", cfgPath, "catalog", "status")
	assert.ErrorIs(t, err, errCatalogDisabled)
}

func TestCLI_Eval(t *testing.T) {
	cfgPath := writeTestConfig(t)
	casesPath := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(casesPath, []byte(`
- question: Do you have wifi?
  lang: en
  source: kb
  ref: general.json
- question: opening hours
  lang: en
  intent: hours
  contains: thursday
- question: xyzzy quux
  source: kb
`), 0o644))

	out, err := execute(t, "--config", cfgPath, "--json", "eval", casesPath)
	require.NoError(t, err)

	var report EvalReport
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Passed)

	_, err = execute(t, "--config", cfgPath, "eval", "--strict", casesPath)
	assert.ErrorContains(t, err, "1 of 3 cases failed")
}

func TestCLI_KBReload(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := execute(t, "--config", cfgPath, "--json", "kb", "reload")
	require.NoError(t, err)

	var res reloadSummary
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, 1, res.Entries)
	// New loads once, the command reloads once more.
	assert.Equal(t, uint64(2), res.Version)
}

func TestRemoteReload(t *testing.T) {
	logger = observability.NopLogger()

	tests := []struct {
		name    string
		status  int
		body    string
		want    reloadSummary
		wantErr string
	}{
		{"ok", http.StatusOK, `{"entries":4,"version":7,"faq":3,"aliases":4,"tookMs":12}`,
			reloadSummary{Entries: 4, Version: 7, FAQ: 3, Aliases: 4, TookMs: 12}, ""},
		{"server error", http.StatusInternalServerError, `{"error":"Internal Server Error","message":"reload failed"}`,
			reloadSummary{}, "server returned 500: reload failed"},
		{"bad body", http.StatusOK, `not json`, reloadSummary{}, "decode reload response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/v1/kb/reload", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res, err := remoteReload(context.Background(), srv.Client(), srv.URL+"/")
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
		})
	}
}
