// Package main provides UI utilities for the FAQ engine CLI.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// UI provides user-friendly output utilities.
type UI struct {
	out      io.Writer
	progress *mpb.Progress
	noColor  bool
	jsonMode bool
}

// NewUI creates a new UI writing to stdout.
func NewUI(jsonMode, noColor bool) *UI {
	return newUI(os.Stdout, jsonMode, noColor)
}

func newUI(out io.Writer, jsonMode, noColor bool) *UI {
	var progress *mpb.Progress
	if !jsonMode && IsTerminal() {
		progress = mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
	}
	return &UI{
		out:      out,
		progress: progress,
		noColor:  noColor || !IsTerminal(),
		jsonMode: jsonMode,
	}
}

// Close waits for any running progress bars to finish. It is safe to call twice.
func (ui *UI) Close() {
	if ui.progress != nil {
		ui.progress.Wait()
		ui.progress = nil
	}
}

func (ui *UI) line(attr color.Attribute, symbol, format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	msg := fmt.Sprintf("%s %s\n", symbol, fmt.Sprintf(format, args...))
	if ui.noColor {
		fmt.Fprint(ui.out, msg)
		return
	}
	color.New(attr).Fprint(ui.out, msg)
}

// Success prints a success message.
func (ui *UI) Success(format string, args ...interface{}) {
	ui.line(color.FgGreen, "✓", format, args...)
}

// Error prints an error message to stderr.
func (ui *UI) Error(format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	msg := fmt.Sprintf("✗ %s\n", fmt.Sprintf(format, args...))
	if ui.noColor {
		fmt.Fprint(os.Stderr, msg)
		return
	}
	color.New(color.FgRed).Fprint(os.Stderr, msg)
}

// Warning prints a warning message.
func (ui *UI) Warning(format string, args ...interface{}) {
	ui.line(color.FgYellow, "⚠", format, args...)
}

// Info prints an info message.
func (ui *UI) Info(format string, args ...interface{}) {
	ui.line(color.FgCyan, "ℹ", format, args...)
}

// Step prints a step message.
func (ui *UI) Step(format string, args ...interface{}) {
	ui.line(color.FgBlue, "→", format, args...)
}

// Text prints a block of text as is.
func (ui *UI) Text(s string) {
	if ui.jsonMode {
		return
	}
	fmt.Fprintln(ui.out, s)
}

// ProgressBar creates a new multi-bar progress bar. It returns nil when output is not
// a terminal; mpb bars are nil-safe only through the helpers below.
func (ui *UI) ProgressBar(name string, total int64) *mpb.Bar {
	if ui.progress == nil || ui.jsonMode {
		return nil
	}

	return ui.progress.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 12}),
			decor.OnComplete(
				decor.AverageETA(decor.ET_STYLE_GO, decor.WC{W: 12}),
				" done",
			),
		),
	)
}

func incrBy(bar *mpb.Bar, n int) {
	if bar != nil {
		bar.IncrBy(n)
	}
}

func abortBar(bar *mpb.Bar) {
	if bar != nil {
		bar.Abort(false)
	}
}

// Counter is a single-line progress bar for sequential work such as evaluations.
type Counter struct {
	bar *progressbar.ProgressBar
}

// NewCounter creates a counter bar on stderr, or nil when output is not interactive.
func (ui *UI) NewCounter(total int64, description string) *Counter {
	if ui.jsonMode || !IsTerminal() {
		return nil
	}
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("questions"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &Counter{bar: bar}
}

// Add advances the counter.
func (c *Counter) Add(n int) {
	if c != nil {
		_ = c.bar.Add(n)
	}
}

// Finish completes the counter.
func (c *Counter) Finish() {
	if c != nil {
		_ = c.bar.Finish()
	}
}

// Spinner shows indeterminate progress while fn runs.
func (ui *UI) Spinner(message string, fn func() error) error {
	if ui.jsonMode || !IsTerminal() {
		return fn()
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	s.Start()
	defer s.Stop()
	return fn()
}

// Table prints a formatted table.
func (ui *UI) Table(headers []string, rows [][]string) {
	if ui.jsonMode || len(headers) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = len([]rune(header))
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len([]rune(cell)) > widths[i] {
				widths[i] = len([]rune(cell))
			}
		}
	}

	border := func(left, mid, right string) {
		var b strings.Builder
		b.WriteString(left)
		for i, w := range widths {
			b.WriteString(strings.Repeat("─", w+2))
			if i < len(widths)-1 {
				b.WriteString(mid)
			}
		}
		b.WriteString(right)
		ui.accent(b.String())
	}
	printRow := func(cells []string) {
		fmt.Fprint(ui.out, "│")
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			fmt.Fprintf(ui.out, " %s%s │", cell, strings.Repeat(" ", w-len([]rune(cell))))
		}
		fmt.Fprintln(ui.out)
	}

	border("┌", "┬", "┐")
	printRow(headers)
	border("├", "┼", "┤")
	for _, row := range rows {
		printRow(row)
	}
	border("└", "┴", "┘")
}

func (ui *UI) accent(s string) {
	if ui.noColor {
		fmt.Fprintln(ui.out, s)
		return
	}
	color.New(color.FgCyan, color.Bold).Fprintln(ui.out, s)
}

// Section prints a section header.
func (ui *UI) Section(title string) {
	if ui.jsonMode {
		return
	}
	fmt.Fprintln(ui.out)
	header := fmt.Sprintf("━━━ %s ━━━", strings.ToUpper(title))
	if ui.noColor {
		fmt.Fprintln(ui.out, header)
	} else {
		color.New(color.FgMagenta, color.Bold).Fprintln(ui.out, header)
	}
	fmt.Fprintln(ui.out)
}

// KeyValue prints a key-value pair.
func (ui *UI) KeyValue(key string, value interface{}) {
	if ui.jsonMode {
		return
	}
	if ui.noColor {
		fmt.Fprintf(ui.out, "  %s: %v\n", key, value)
		return
	}
	color.New(color.FgYellow).Fprintf(ui.out, "  %s: ", key)
	fmt.Fprintf(ui.out, "%v\n", value)
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// IsTerminal checks if stdout is a terminal.
func IsTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
