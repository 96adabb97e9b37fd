package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	dangerColor = lipgloss.Color("9")
	accentColor = lipgloss.Color("12")
	dimColor    = lipgloss.Color("7")
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// style returns s for terminals and a plain style otherwise, so piped
// output carries no escape codes.
func style(w io.Writer, s lipgloss.Style) lipgloss.Style {
	if !isTerminal(w) {
		return lipgloss.NewStyle()
	}
	return s
}

func errorStyle(w io.Writer) lipgloss.Style {
	return style(w, lipgloss.NewStyle().Foreground(dangerColor).Bold(true))
}

func assistantStyle(w io.Writer) lipgloss.Style {
	return style(w, lipgloss.NewStyle().Foreground(accentColor))
}

func dimStyle(w io.Writer) lipgloss.Style {
	return style(w, lipgloss.NewStyle().Foreground(dimColor))
}

func stderrLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
