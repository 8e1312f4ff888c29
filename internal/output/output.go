// Package output renders CLI results: status/progress lines during a
// build, and scored hits for a query, in the --json, --compact, and
// --files-only shapes the CLI surface accepts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Writer formats status lines and result sets for a CLI run.
type Writer struct {
	out      io.Writer
	useColor bool
}

// New creates a Writer on out and records in useColor whether out is a
// terminal. No method reads useColor: output is never colored.
func New(out io.Writer) *Writer {
	useColor := false
	if f, ok := out.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Writer{out: out, useColor: useColor}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.Status(icon, msg)
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Code prints a code block with indentation.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Progress prints a progress bar with message.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)

	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)

	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// ProgressDone completes a progress line with newline.
func (w *Writer) ProgressDone() {
	_, _ = fmt.Fprintln(w.out)
}

func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	pct := float64(current) / float64(total)
	filled := int(pct * float64(width))

	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Result is one rendered hit, shaped to the --json field list: file, type,
// name, line, end_line, score, content.
type Result struct {
	File    string  `json:"file"`
	Type    string  `json:"type"`
	Name    string  `json:"name"`
	Line    int     `json:"line"`
	EndLine int     `json:"end_line"`
	Score   float64 `json:"score"`
	Content string  `json:"content,omitempty"`
}

// RenderOptions controls how RenderResults shapes its output.
type RenderOptions struct {
	// JSON emits one JSON array of Result objects instead of text.
	JSON bool
	// Compact omits Content from both the JSON and text rendering.
	Compact bool
	// FilesOnly prints each matching file path once, in rank order.
	FilesOnly bool
}

// RenderResults writes results per opts. Errors from writing are
// intentionally ignored, matching the rest of this package.
func (w *Writer) RenderResults(results []Result, opts RenderOptions) error {
	if opts.FilesOnly {
		seen := make(map[string]bool, len(results))
		for _, r := range results {
			if seen[r.File] {
				continue
			}
			seen[r.File] = true
			_, _ = fmt.Fprintln(w.out, r.File)
		}
		return nil
	}

	if opts.Compact {
		for i := range results {
			results[i].Content = ""
		}
	}

	if opts.JSON {
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for i, r := range results {
		location := r.File
		if r.Line > 0 {
			location = fmt.Sprintf("%s:%d", r.File, r.Line)
		}
		w.Statusf("", "%d. %s [%s] %s (score: %.3f)", i+1, location, r.Type, r.Name, r.Score)
		if r.Content != "" {
			for _, line := range firstLines(r.Content, 3) {
				_, _ = fmt.Fprintf(w.out, "     %s\n", line)
			}
		}
	}
	return nil
}

func firstLines(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
