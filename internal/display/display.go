// Package display provides terminal formatting for cxflow output.
package display

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
)

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(Success.Render("✓") + " " + msg)
}

// ErrorMsg prints a red X + message to stderr.
func ErrorMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, ErrStyle.Render("✗")+" "+msg)
}

// Header prints a section header.
func Header(title string) {
	fmt.Println(Bold.Render(title))
}

// Stat prints an indented label/count pair, dimming zero counts.
func Stat(label string, count int) {
	value := fmt.Sprintf("%d", count)
	if count == 0 {
		value = Dim.Render(value)
	}
	fmt.Printf("  %-10s %s\n", label, value)
}
