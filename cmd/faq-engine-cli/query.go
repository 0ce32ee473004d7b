package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kotileipomo/faq-engine/internal/engine"
	"github.com/kotileipomo/faq-engine/internal/retrieval"
)

// newAskCmd creates the ask subcommand.
func newAskCmd() *cobra.Command {
	var (
		lang       string
		candidates bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question through the full pipeline",
		Long: `Runs the rule replies, the intent resolvers and knowledge base retrieval in
order and prints the reply together with the route that produced it.`,
		Example: `  faq-engine-cli ask "milloin olette auki?"
  faq-engine-cli ask --lang en "do you have gluten free options" --candidates`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ui := NewUI(outputJSON, noColor)
			defer ui.Close()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			resp, err := a.Engine.Respond(ctx, strings.Join(args, " "), langFlag(lang))
			if err != nil {
				return fmt.Errorf("answer: %w", err)
			}

			if outputJSON {
				if !candidates {
					resp.Candidates = nil
				}
				return printJSON(resp)
			}

			ui.Text(resp.Reply.Text)
			ui.Section("Route")
			ui.KeyValue("Source", resp.Source)
			if resp.Reply.Intent != "" {
				ui.KeyValue("Intent", resp.Reply.Intent)
			}
			ui.KeyValue("Match", fmt.Sprintf("%.3f", resp.Match))
			if resp.Ref != "" {
				ui.KeyValue("Ref", resp.Ref)
			}
			ui.KeyValue("Took", FormatDuration(time.Since(start)))
			for _, b := range resp.Reply.Buttons {
				ui.Step("%s", b.Label)
			}
			if candidates && len(resp.Candidates) > 0 {
				ui.Section("Candidates")
				ui.Table(candidateHeaders, candidateRows(resp.Candidates))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "reply language: fi, sv or en (default from config)")
	cmd.Flags().BoolVar(&candidates, "candidates", false, "show retrieval candidates")
	return cmd
}

// newMatchCmd creates the match subcommand.
func newMatchCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "match <query>",
		Short: "Score a query against the knowledge base without routing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if topK < 1 || topK > 20 {
				return fmt.Errorf("--top-k must be between 1 and 20")
			}
			ctx := cmd.Context()
			ui := NewUI(outputJSON, noColor)
			defer ui.Close()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			cands, accepted := a.Engine.Match(strings.Join(args, " "), topK)
			if outputJSON {
				return printJSON(map[string]interface{}{
					"accepted":   accepted,
					"candidates": cands,
				})
			}

			if len(cands) == 0 {
				ui.Warning("No candidates")
				return nil
			}
			ui.Table(candidateHeaders, candidateRows(cands))
			if accepted {
				ui.Success("Top candidate passes the confidence gate")
			} else {
				ui.Warning("Top candidate is below the confidence gate")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", retrieval.DefaultTopK, "number of candidates")
	return cmd
}

// newIntentCmd creates the intent subcommand.
func newIntentCmd() *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "intent <question>",
		Short: "Classify a question and show the deterministic answer, if any",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ui := NewUI(outputJSON, noColor)
			defer ui.Close()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			q := strings.Join(args, " ")
			c := a.Engine.Classifier()
			in := c.Detect(q)
			phrase, _ := c.MatchedPhrase(in, q)

			reply, err := a.Engine.Answer(ctx, q, langFlag(lang))
			routed := err == nil
			if err != nil && !errors.Is(err, engine.ErrNoDeterministicMatch) {
				return fmt.Errorf("answer: %w", err)
			}

			if outputJSON {
				out := map[string]interface{}{"intent": in, "phrase": phrase, "routed": routed}
				if routed {
					out["reply"] = reply
				}
				return printJSON(out)
			}

			ui.KeyValue("Intent", in)
			if phrase != "" {
				ui.KeyValue("Phrase", phrase)
			}
			if !routed {
				ui.Info("No deterministic answer; the query would go to retrieval")
				return nil
			}
			ui.Section("Reply")
			ui.Text(reply.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "reply language: fi, sv or en (default from config)")
	return cmd
}

var candidateHeaders = []string{"#", "ID", "Question", "Blend", "BM25", "Fuzzy", "Jaccard", "Source"}

func candidateRows(cands []retrieval.Candidate) [][]string {
	rows := make([][]string, 0, len(cands))
	for i, c := range cands {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			truncate(c.Entry.ID, 12),
			truncate(c.Entry.Question, 48),
			fmt.Sprintf("%.3f", c.Blend),
			fmt.Sprintf("%.2f", c.BM25),
			fmt.Sprintf("%.2f", c.Fuzzy),
			fmt.Sprintf("%.2f", c.Jaccard),
			c.Entry.Source,
		})
	}
	return rows
}
