// Package display prints the line-oriented output of the headless commands.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	White  = "\033[37m"
	Gray   = "\033[90m"
)

// Stdout and Stderr are where output goes; tests swap them.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// FilteredSourcesNotice is shown after an answer whose inline source
// markers were moved into the footer.
const FilteredSourcesNotice = "ℹ️ Источники информации автоматически добавлены в конец ответа"

func Header(text string) {
	fmt.Fprintf(Stdout, "\n%s%s%s\n", Bold+Cyan, text, Reset)
	fmt.Fprintln(Stdout, strings.Repeat("─", min(utf8.RuneCountInString(text)+4, 80)))
}

func Success(text string) {
	fmt.Fprintf(Stdout, "%s✓%s %s\n", Green, Reset, text)
}

func Error(text string) {
	fmt.Fprintf(Stderr, "%s✗%s %s\n", Red, Reset, text)
}

func Warn(text string) {
	fmt.Fprintf(Stdout, "%s!%s %s\n", Yellow, Reset, text)
}

func Notice(text string) {
	fmt.Fprintf(Stdout, "%s%s%s\n", Blue, text, Reset)
}

func Info(label, value string) {
	fmt.Fprintf(Stdout, "  %s%-20s%s %s\n", Dim, label, Reset, value)
}

// MaskToken keeps the first and last four characters of a secret.
func MaskToken(token string) string {
	if token == "" {
		return Gray + "(not set)" + Reset
	}
	r := []rune(token)
	if len(r) <= 8 {
		return strings.Repeat("•", len(r))
	}
	return string(r[:4]) + strings.Repeat("•", 4) + string(r[len(r)-4:])
}

// FormatTime prints a timestamp in local time.
func FormatTime(t time.Time) string {
	return t.Local().Format("15:04:05")
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Progress is a single self-overwriting status line for streamed answers.
// It writes to Stderr so piped stdout carries only the answer.
type Progress struct {
	label string
	frame int
	up    bool
	start time.Time
}

func NewProgress(label string) *Progress {
	return &Progress{label: label, start: time.Now()}
}

// Update redraws the line with the number of characters received.
func (p *Progress) Update(chars int) {
	frame := spinnerFrames[p.frame%len(spinnerFrames)]
	p.frame++
	elapsed := time.Since(p.start).Truncate(100 * time.Millisecond)
	fmt.Fprintf(Stderr, "\r  %s%s%s %s %s(%d симв., %s)%s\033[K", Yellow, frame, Reset, p.label, Gray, chars, elapsed, Reset)
	p.up = true
}

// Clear erases the line if it was drawn.
func (p *Progress) Clear() {
	if p.up {
		fmt.Fprint(Stderr, "\r\033[K")
		p.up = false
	}
}
