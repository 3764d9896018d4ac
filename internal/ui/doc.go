// Package ui renders CLI output with [lipgloss] styles: status lines, playlist tables and the
// volume bar.
package ui
