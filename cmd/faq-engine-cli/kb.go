package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kotileipomo/faq-engine/internal/kb"
)

// importBatchSize bounds the rows written per upsert statement.
const importBatchSize = 50

// newKBCmd creates the kb command group.
func newKBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect and maintain the knowledge base",
	}
	cmd.AddCommand(newKBStatsCmd())
	cmd.AddCommand(newKBReloadCmd())
	cmd.AddCommand(newKBImportCmd())
	cmd.AddCommand(newKBDeleteCmd())
	return cmd
}

// newKBStatsCmd creates the kb stats subcommand.
func newKBStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Load the knowledge base and data tables and report what was indexed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ui := NewUI(outputJSON, noColor)
			defer ui.Close()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			snap := a.Engine.Store().Current()
			stats := snap.Stats()
			data := a.Engine.Resolver().Data()

			out := map[string]interface{}{
				"driver":     cfg.KB.Driver,
				"entries":    snap.Len(),
				"vocabulary": len(stats.DF),
				"avgLen":     stats.AvgLen,
				"faq":        len(data.FAQ),
				"aliases":    len(data.Aliases.Items),
				"allergens":  len(data.Allergens.Items),
				"blackouts":  len(data.Blackouts),
				"openDays":   len(data.Hours.Days()),
			}
			if outputJSON {
				return printJSON(out)
			}

			ui.Section("Knowledge base")
			ui.KeyValue("Driver", cfg.KB.Driver)
			ui.KeyValue("Entries", snap.Len())
			ui.KeyValue("Vocabulary", len(stats.DF))
			ui.KeyValue("Average length", fmt.Sprintf("%.1f tokens", stats.AvgLen))
			ui.Section("Data tables")
			ui.KeyValue("FAQ items", len(data.FAQ))
			ui.KeyValue("Product aliases", len(data.Aliases.Items))
			ui.KeyValue("Allergen notes", len(data.Allergens.Items))
			ui.KeyValue("Blackout ranges", len(data.Blackouts))
			ui.KeyValue("Open days", len(data.Hours.Days()))
			if snap.Len() == 0 {
				ui.Warning("The index is empty; every query will get the fallback reply")
			}
			return nil
		},
	}
}

// newKBReloadCmd creates the kb reload subcommand.
func newKBReloadCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Rebuild the index and reload the data tables",
		Long: `Without --server, loads the knowledge base and data tables the way the API
server would and reports the result, which is a quick check of edited files. With
--server, asks a running API server to reload.`,
		Example: `  faq-engine-cli kb reload
  faq-engine-cli kb reload --server http://localhost:8088`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ui := NewUI(outputJSON, noColor)
			defer ui.Close()

			var (
				res reloadSummary
				err error
			)
			if server != "" {
				err = ui.Spinner("Reloading "+server+"...", func() error {
					res, err = remoteReload(ctx, http.DefaultClient, server)
					return err
				})
			} else {
				res, err = localReload(ctx)
			}
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(res)
			}
			ui.Success("Reloaded version %d", res.Version)
			ui.KeyValue("Entries", res.Entries)
			ui.KeyValue("FAQ items", res.FAQ)
			ui.KeyValue("Product aliases", res.Aliases)
			ui.KeyValue("Took", FormatDuration(time.Duration(res.TookMs)*time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "base URL of a running API server")
	return cmd
}

// reloadSummary mirrors the API's reload response.
type reloadSummary struct {
	Entries int    `json:"entries"`
	Version uint64 `json:"version"`
	FAQ     int    `json:"faq"`
	Aliases int    `json:"aliases"`
	TookMs  int64  `json:"tookMs"`
}

func localReload(ctx context.Context) (reloadSummary, error) {
	a, err := openApp(ctx)
	if err != nil {
		return reloadSummary{}, err
	}
	defer a.Close()

	res, err := a.Engine.Reload(ctx)
	if err != nil {
		return reloadSummary{}, err
	}
	return reloadSummary{
		Entries: res.Entries,
		Version: res.Version,
		FAQ:     res.FAQ,
		Aliases: res.Aliases,
		TookMs:  res.Took.Milliseconds(),
	}, nil
}

// remoteReload calls POST {server}/api/v1/kb/reload.
func remoteReload(ctx context.Context, client *http.Client, server string) (reloadSummary, error) {
	log := logger.WithOperation("kb-reload")
	url := strings.TrimRight(server, "/") + "/api/v1/kb/reload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return reloadSummary{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return reloadSummary{}, fmt.Errorf("reload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		log.Debug().Int("status", resp.StatusCode).Str("detail", apiErr.Detail).Msg("Reload rejected")
		return reloadSummary{}, fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Message)
	}

	var res reloadSummary
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return reloadSummary{}, fmt.Errorf("decode reload response: %w", err)
	}
	log.Debug().Int("entries", res.Entries).Msg("Remote reload done")
	return res, nil
}

// newKBImportCmd creates the kb import subcommand.
func newKBImportCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy knowledge base files into the SQL store",
		Long: `Reads every *.json, *.yaml and *.yml file in --dir and upserts its entries
into the configured sqlite or postgres store. Entries keep their IDs, so running the
import again updates rows in place.`,
		Example: `  DATABASE_URL=sqlite:kb.db faq-engine-cli kb import --dir data/kb`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ui := NewUI(outputJSON, noColor)
			defer ui.Close()

			if dir == "" {
				dir = cfg.KB.Dir
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.SQL == nil {
				return errors.New("kb import needs a sqlite or postgres store; set kb.driver or DATABASE_URL")
			}

			entries, err := kb.NewFileSource(dir, logger).Load(ctx)
			if err != nil {
				return fmt.Errorf("read %s: %w", dir, err)
			}
			if len(entries) == 0 {
				ui.Warning("No entries found in %s", dir)
				return nil
			}

			start := time.Now()
			bar := ui.ProgressBar("Importing", int64(len(entries)))
			written, err := importEntries(ctx, a.SQL, entries, func(n int) { incrBy(bar, n) })
			if err != nil {
				abortBar(bar)
				return err
			}

			res, err := a.Engine.Reload(ctx)
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(map[string]interface{}{
					"imported": written,
					"entries":  res.Entries,
					"version":  res.Version,
				})
			}
			ui.Close()
			ui.Success("Imported %d entries in %s", written, FormatDuration(time.Since(start)))
			ui.KeyValue("Indexed entries", res.Entries)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory of KB files (default: kb.dir)")
	return cmd
}

// newKBDeleteCmd creates the kb delete subcommand.
func newKBDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an entry from the SQL store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ui := NewUI(outputJSON, noColor)
			defer ui.Close()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.SQL == nil {
				return errors.New("kb delete needs a sqlite or postgres store")
			}

			if err := a.SQL.Delete(ctx, args[0]); err != nil {
				if errors.Is(err, kb.ErrNotFound) {
					return fmt.Errorf("entry %q not found", args[0])
				}
				return err
			}
			if outputJSON {
				return printJSON(map[string]string{"deleted": args[0]})
			}
			ui.Success("Deleted %s", args[0])
			return nil
		},
	}
}

// entryWriter is the write side of kb.SQLSource.
type entryWriter interface {
	Upsert(ctx context.Context, entries ...kb.Entry) error
}

// importEntries writes entries in batches and reports progress after each batch.
func importEntries(ctx context.Context, w entryWriter, entries []kb.Entry, progress func(int)) (int, error) {
	written := 0
	for start := 0; start < len(entries); start += importBatchSize {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		end := min(start+importBatchSize, len(entries))
		if err := w.Upsert(ctx, entries[start:end]...); err != nil {
			return written, fmt.Errorf("upsert entries %d-%d: %w", start, end-1, err)
		}
		written += end - start
		if progress != nil {
			progress(end - start)
		}
	}
	return written, nil
}
