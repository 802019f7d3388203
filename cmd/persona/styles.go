package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Color palette shared by every text report.
var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
	amber      = lipgloss.Color("#FFD59E")
	mutedGray  = lipgloss.Color("#6B7280")
)

// styles are bound to one output. Output that is not a terminal (the host
// capturing a hook, a pipe, a test buffer) renders without escape codes.
type styles struct {
	heading lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		heading: r.NewStyle().Foreground(salmonPink).Bold(true),
		ok:      r.NewStyle().Foreground(mintGreen),
		warn:    r.NewStyle().Foreground(amber).Bold(true),
		muted:   r.NewStyle().Foreground(mutedGray),
	}
}
