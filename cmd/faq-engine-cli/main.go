// Package main provides the FAQ engine CLI entrypoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kotileipomo/faq-engine/internal/app"
	"github.com/kotileipomo/faq-engine/internal/config"
	"github.com/kotileipomo/faq-engine/internal/observability"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	verbose    bool
	noColor    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "faq-engine-cli",
	Short: "FAQ engine CLI for asking, evaluating and maintaining the bakery knowledge base",
	Long: `FAQ engine CLI runs the answer pipeline locally against the configured
knowledge base, data tables and online store.

Use this tool to:
- Ask questions and inspect how they were routed
- Evaluate the engine against a file of expected answers
- Import knowledge base files into a SQL store
- Check pickup times and the catalog connection

All commands support --json for automation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; real environments set variables directly.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		} else if !cmd.Flags().Changed("config") && level == "info" {
			// Keep command output readable unless asked otherwise.
			level = "warn"
		}
		logFormat := "console"
		if outputJSON {
			logFormat = "json"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      logFormat,
			Output:      os.Stderr,
			ServiceName: "faq-engine-cli",
		})
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newMatchCmd())
	rootCmd.AddCommand(newIntentCmd())
	rootCmd.AddCommand(newEvalCmd())
	rootCmd.AddCommand(newKBCmd())
	rootCmd.AddCommand(newCatalogCmd())
	rootCmd.AddCommand(newPickupCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp assembles the engine from the loaded configuration. Watching is never
// enabled for one-shot commands.
func openApp(ctx context.Context) (*app.App, error) {
	c := *cfg
	c.KB.Watch = false
	a, err := app.New(ctx, &c, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize engine: %w", err)
	}
	return a, nil
}

// langFlag resolves the --lang value against the configured default.
func langFlag(lang string) string {
	if l := strings.ToLower(strings.TrimSpace(lang)); l != "" {
		return l
	}
	return cfg.Locale.DefaultLang
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
