// Package ui renders styled terminal output for the gitshadow CLI.
//
// Styling degrades to plain text when stdout is not a terminal or when
// the environment disables color (NO_COLOR, CLICOLOR=0).
package ui

import (
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var colorized = detectColor()

func detectColor() bool {
	if termenv.EnvNoColor() {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Accent highlights headings and project paths.
func Accent(s string) string {
	if !colorized {
		return s
	}
	return accentStyle.Render(s)
}

// OK marks successful results.
func OK(s string) string {
	if !colorized {
		return s
	}
	return okStyle.Render(s)
}

// Warn marks recoverable problems.
func Warn(s string) string {
	if !colorized {
		return s
	}
	return warnStyle.Render(s)
}

// Fail marks errors.
func Fail(s string) string {
	if !colorized {
		return s
	}
	return failStyle.Render(s)
}

// Dim renders secondary detail like remote URLs and timestamps.
func Dim(s string) string {
	if !colorized {
		return s
	}
	return dimStyle.Render(s)
}

// Hyperlink wraps text in an OSC 8 terminal hyperlink when supported.
func Hyperlink(url, text string) string {
	if !colorized || url == "" {
		return text
	}
	return termenv.Hyperlink(url, text)
}

// FormTheme returns the huh theme used by interactive prompts.
func FormTheme() *huh.Theme {
	t := *huh.ThemeCharm()
	t.Focused.FocusedButton = t.Focused.FocusedButton.Background(lipgloss.Color("#7D56F4"))
	t.Focused.Next = t.Focused.FocusedButton
	return &t
}
