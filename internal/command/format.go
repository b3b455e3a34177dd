package command

import (
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111"))
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	unreadStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	metaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	groupStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("157"))
)

func writeJSON(out io.Writer, value any) error {
	return json.NewEncoder(out).Encode(value)
}

// relativeTime renders a unix-ms timestamp as "3 minutes ago".
func relativeTime(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return humanize.Time(time.UnixMilli(ms))
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}
