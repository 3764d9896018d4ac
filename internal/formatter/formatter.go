// Package formatter renders the playlist library as CSV, Markdown or plain text for export.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/shared"
)

// Format names an export encoding.
type Format string

const (
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Text     Format = "text"
)

// ParseFormat accepts a format name or its file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "text", "txt":
		return Text, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q (csv, markdown, text)", shared.ErrInvalidArgument, s)
}

// Ext returns the file extension, without the dot, used for f.
func (f Format) Ext() string {
	switch f {
	case Markdown:
		return "md"
	case Text:
		return "txt"
	default:
		return "csv"
	}
}

// ToCSV writes one row per playlist with columns: ID, Name, Type, Tracks, URI
func ToCSV(playlists []models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Name", "Type", "Tracks", "URI"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, p := range playlists {
		record := []string{
			p.ID,
			p.Name,
			string(kindOf(p)),
			strconv.Itoa(p.TrackCount),
			p.ContextURI(),
		}
		if p.IsLikedSongs() {
			record[4] = ""
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ToMarkdown renders a table with a cover thumbnail when the playlist has one.
func ToMarkdown(playlists []models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Playlists\n\n")
	buf.WriteString(fmt.Sprintf("**Total**: %d\n\n", len(playlists)))
	buf.WriteString("| # | Cover | Name | Tracks | ID |\n")
	buf.WriteString("|---|-------|------|--------|----|\n")

	for i, p := range playlists {
		cover := ""
		if len(p.Images) > 0 && p.Images[0].URL != "" {
			cover = fmt.Sprintf("![cover](%s)", p.Images[0].URL)
		}
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %d | `%s` |\n", i+1, cover, escapeCell(p.Name), p.TrackCount, p.ID))
	}

	return buf.Bytes(), nil
}

// ToText renders a numbered list.
func ToText(playlists []models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlists: %d\n\n", len(playlists)))
	for i, p := range playlists {
		buf.WriteString(fmt.Sprintf("%d. %s (%d tracks) [%s]\n", i+1, p.Name, p.TrackCount, p.ID))
	}

	return buf.Bytes(), nil
}

// Render encodes playlists in format f.
func Render(f Format, playlists []models.Playlist) ([]byte, error) {
	switch f {
	case CSV:
		return ToCSV(playlists)
	case Markdown:
		return ToMarkdown(playlists)
	case Text:
		return ToText(playlists)
	}
	return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, f)
}

// WriteExport renders playlists and writes them to path.
//
// Defaults to playlists.{ext} in the working directory. Returns the path written.
func WriteExport(f Format, playlists []models.Playlist, path string) (string, error) {
	if path == "" {
		path = "playlists." + f.Ext()
	}

	data, err := Render(f, playlists)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", f, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

func kindOf(p models.Playlist) models.PlaylistKind {
	if p.IsLikedSongs() {
		return models.KindLikedSongs
	}
	if p.Kind == "" {
		return models.KindNormal
	}
	return p.Kind
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
