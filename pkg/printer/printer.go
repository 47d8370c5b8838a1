// Package printer renders operator-facing CLI output. Structured logs
// go through zap; everything a human is meant to read goes through
// here.
package printer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func PrintInfo(msg string) {
	fmt.Println(infoStyle.Render(msg))
}

func PrintSuccess(msg string) {
	fmt.Println(successStyle.Render("✓ " + msg))
}

func PrintWarning(msg string) {
	fmt.Println(warnStyle.Render("! " + msg))
}

func PrintError(msg string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+msg))
}

// PrintSteps renders an ordered plan or remediation list.
func PrintSteps(header string, steps []string) {
	if len(steps) == 0 {
		return
	}
	fmt.Println(header)
	for i, step := range steps {
		fmt.Println(stepStyle.Render(fmt.Sprintf("  %d. %s", i+1, step)))
	}
}

// TruncateString shortens s to max runes, appending an ellipsis.
func TruncateString(s string, max int) string {
	if max <= 3 || len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}

// Confirm blocks on a yes/no prompt read from in. Cancelling the
// context or answering anything but yes aborts.
func Confirm(ctx context.Context, in io.Reader, prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)

	answer := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		if scanner.Scan() {
			answer <- scanner.Text()
			return
		}
		answer <- ""
	}()

	select {
	case <-ctx.Done():
		fmt.Println()
		return false
	case text := <-answer:
		switch strings.ToLower(strings.TrimSpace(text)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}
