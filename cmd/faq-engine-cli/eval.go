package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kotileipomo/faq-engine/internal/engine"
	"github.com/kotileipomo/faq-engine/internal/kb"
)

// EvalCase is one question with the route and reply it should produce. Empty
// expectations are not checked.
type EvalCase struct {
	Question string `json:"question" yaml:"question" validate:"required"`
	Lang     string `json:"lang,omitempty" yaml:"lang,omitempty" validate:"omitempty,oneof=fi sv en"`
	Source   string `json:"source,omitempty" yaml:"source,omitempty" validate:"omitempty,oneof=rules intent kb fallback"`
	Intent   string `json:"intent,omitempty" yaml:"intent,omitempty"`
	Ref      string `json:"ref,omitempty" yaml:"ref,omitempty"`
	Contains string `json:"contains,omitempty" yaml:"contains,omitempty"`
}

// EvalResult is the outcome of one case.
type EvalResult struct {
	Case     EvalCase      `json:"case"`
	Passed   bool          `json:"passed"`
	Failures []string      `json:"failures,omitempty"`
	Source   string        `json:"source"`
	Intent   string        `json:"intent,omitempty"`
	Ref      string        `json:"ref,omitempty"`
	Match    float64       `json:"match"`
	Took     time.Duration `json:"took"`
}

// EvalReport summarizes a run.
type EvalReport struct {
	Total   int          `json:"total"`
	Passed  int          `json:"passed"`
	Results []EvalResult `json:"results"`
}

// Failed returns the number of failed cases.
func (r EvalReport) Failed() int { return r.Total - r.Passed }

// responder is the part of the engine an evaluation needs.
type responder interface {
	Respond(ctx context.Context, query, lang string) (engine.Response, error)
}

// newEvalCmd creates the eval subcommand.
func newEvalCmd() *cobra.Command {
	var (
		strict   bool
		failOnly bool
	)

	cmd := &cobra.Command{
		Use:   "eval <cases.yaml>",
		Short: "Run a file of questions and check how each one is answered",
		Long: `Reads a YAML or JSON list of cases and answers each question through the full
pipeline. A case may expect a route source (rules, intent, kb, fallback), an intent,
the KB file that answered it (ref) and a substring of the reply.`,
		Example: `  faq-engine-cli eval testdata/eval.yaml --strict`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ui := NewUI(outputJSON, noColor)
			defer ui.Close()

			cases, err := loadEvalCases(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			counter := ui.NewCounter(int64(len(cases)), "Evaluating")
			report, err := runEval(ctx, a.Engine, cases, cfg.Locale.DefaultLang, func() { counter.Add(1) })
			counter.Finish()
			if err != nil {
				return err
			}

			if outputJSON {
				if err := printJSON(report); err != nil {
					return err
				}
			} else {
				printEvalReport(ui, report, failOnly)
			}
			if strict && report.Failed() > 0 {
				return fmt.Errorf("%d of %d cases failed", report.Failed(), report.Total)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any case fails")
	cmd.Flags().BoolVar(&failOnly, "failures", false, "list only failed cases")
	return cmd
}

// loadEvalCases reads cases from a YAML or JSON file.
func loadEvalCases(path string) ([]EvalCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	return parseEvalCases(data)
}

func parseEvalCases(data []byte) ([]EvalCase, error) {
	var cases []EvalCase
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse cases: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("no cases")
	}
	for i, c := range cases {
		if err := kb.Validate(c); err != nil {
			return nil, fmt.Errorf("case %d: %w", i+1, err)
		}
	}
	return cases, nil
}

// runEval answers every case in order. Engine errors abort the run; mismatches do not.
func runEval(ctx context.Context, r responder, cases []EvalCase, defaultLang string, step func()) (EvalReport, error) {
	report := EvalReport{Total: len(cases), Results: make([]EvalResult, 0, len(cases))}
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		lang := c.Lang
		if lang == "" {
			lang = defaultLang
		}

		start := time.Now()
		resp, err := r.Respond(ctx, c.Question, lang)
		if err != nil {
			return report, fmt.Errorf("answer %q: %w", c.Question, err)
		}
		res := EvalResult{
			Case:   c,
			Source: string(resp.Source),
			Intent: string(resp.Reply.Intent),
			Ref:    resp.Ref,
			Match:  resp.Match,
			Took:   time.Since(start),
		}
		res.Failures = checkCase(c, resp)
		res.Passed = len(res.Failures) == 0
		if res.Passed {
			report.Passed++
		}
		report.Results = append(report.Results, res)
		if step != nil {
			step()
		}
	}
	return report, nil
}

func checkCase(c EvalCase, resp engine.Response) []string {
	var failures []string
	if c.Source != "" && c.Source != string(resp.Source) {
		failures = append(failures, fmt.Sprintf("source %s, want %s", resp.Source, c.Source))
	}
	if c.Intent != "" && c.Intent != string(resp.Reply.Intent) {
		failures = append(failures, fmt.Sprintf("intent %q, want %q", resp.Reply.Intent, c.Intent))
	}
	if c.Ref != "" && c.Ref != resp.Ref {
		failures = append(failures, fmt.Sprintf("ref %q, want %q", resp.Ref, c.Ref))
	}
	if c.Contains != "" && !strings.Contains(strings.ToLower(resp.Reply.Text), strings.ToLower(c.Contains)) {
		failures = append(failures, fmt.Sprintf("reply lacks %q", c.Contains))
	}
	return failures
}

func printEvalReport(ui *UI, report EvalReport, failOnly bool) {
	rows := make([][]string, 0, len(report.Results))
	for _, r := range report.Results {
		if failOnly && r.Passed {
			continue
		}
		status := "pass"
		if !r.Passed {
			status = "FAIL"
		}
		rows = append(rows, []string{
			status,
			truncate(r.Case.Question, 40),
			r.Source,
			r.Intent,
			fmt.Sprintf("%.2f", r.Match),
			truncate(strings.Join(r.Failures, "; "), 60),
		})
	}
	if len(rows) > 0 {
		ui.Table([]string{"", "Question", "Source", "Intent", "Match", "Problems"}, rows)
	}

	if report.Failed() == 0 {
		ui.Success("All %d cases passed", report.Total)
		return
	}
	ui.Warning("%d of %d cases passed", report.Passed, report.Total)
}
