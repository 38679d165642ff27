package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))  // green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
)

func printSuccess(w io.Writer, text string) {
	fmt.Fprintln(w, successStyle.Render(text))
}

func printError(w io.Writer, text string) {
	fmt.Fprintln(w, errorStyle.Render(text))
}

func printWarning(w io.Writer, text string) {
	fmt.Fprintln(w, warningStyle.Render(text))
}

func printDetail(w io.Writer, text string) {
	fmt.Fprintln(w, detailStyle.Render(text))
}
