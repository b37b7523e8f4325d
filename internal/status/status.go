// Package status prints the coloured progress lines of the deployment
// commands.
package status

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes status lines to w. Colours are dropped when w is not a
// terminal.
type Printer struct {
	w       io.Writer
	info    lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	errorS  lipgloss.Style
	step    lipgloss.Style
}

func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		info:    r.NewStyle().Foreground(lipgloss.Color("4")).Bold(true),
		success: r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		warning: r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		errorS:  r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		step:    r.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
	}
}

func (p *Printer) line(style lipgloss.Style, tag, format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", style.Render("["+tag+"]"), fmt.Sprintf(format, args...))
}

func (p *Printer) Info(format string, args ...any) {
	p.line(p.info, "INFO", format, args...)
}

func (p *Printer) Success(format string, args ...any) {
	p.line(p.success, "SUCCESS", format, args...)
}

func (p *Printer) Warning(format string, args ...any) {
	p.line(p.warning, "WARNING", format, args...)
}

func (p *Printer) Error(format string, args ...any) {
	p.line(p.errorS, "ERROR", format, args...)
}

// Step prints a numbered step header.
func (p *Printer) Step(n, total int, title string) {
	header := fmt.Sprintf("==> Step %d/%d: %s", n, total, title)
	fmt.Fprintf(p.w, "\n%s\n", p.step.Render(header))
}

// Section prints a banner separating the phases of a long command.
func (p *Printer) Section(title string) {
	rule := strings.Repeat("=", len(title)+8)
	fmt.Fprintf(p.w, "%s\n%s\n%s\n", p.step.Render(rule), p.step.Render("    "+title), p.step.Render(rule))
}
