// Package ui prints the coloured status lines and progress spinners the
// commands show on stderr.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	Stderr io.Writer = os.Stderr

	renderer = lipgloss.NewRenderer(os.Stderr)

	errorStyle   = renderer.NewStyle().Foreground(lipgloss.Color("1"))
	warningStyle = renderer.NewStyle().Foreground(lipgloss.Color("3"))
	successStyle = renderer.NewStyle().Foreground(lipgloss.Color("2"))
	boldStyle    = renderer.NewStyle().Bold(true)
	italicStyle  = renderer.NewStyle().Italic(true)
)

// Interactive reports whether stderr is a terminal.
var Interactive = func() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func Errorln(a ...any) {
	fmt.Fprintln(Stderr, errorStyle.Render(fmt.Sprint(a...)))
}

func Errorf(format string, a ...any) {
	Errorln(fmt.Sprintf(format, a...))
}

func Warnln(a ...any) {
	fmt.Fprintln(Stderr, warningStyle.Render(fmt.Sprint(a...)))
}

func Warnf(format string, a ...any) {
	Warnln(fmt.Sprintf(format, a...))
}

func Successln(a ...any) {
	fmt.Fprintln(Stderr, successStyle.Render(fmt.Sprint(a...)))
}

func Successf(format string, a ...any) {
	Successln(fmt.Sprintf(format, a...))
}

func Println(a ...any) {
	fmt.Fprintln(Stderr, a...)
}

func Printf(format string, a ...any) {
	Println(fmt.Sprintf(format, a...))
}

func Bold(s string) string {
	return boldStyle.Render(s)
}

func Italic(s string) string {
	return italicStyle.Render(s)
}
