package ui

import (
	"fmt"
	"strings"

	"github.com/desertthunder/vinyl/internal/models"
)

// NowPlaying renders a one-line summary of state.
func (p *Palette) NowPlaying(state models.PlaybackState) string {
	if state.TrackName == "" {
		return p.Help("nothing playing")
	}
	icon := "▶"
	if state.Paused {
		icon = "⏸"
	}
	line := fmt.Sprintf("%s %s", icon, p.Title(state.TrackName))
	if state.TrackArtist != "" {
		line += " " + p.Help("by "+state.TrackArtist)
	}
	return line
}

// PlaylistTable renders playlists as numbered rows with their ids, for picking one to play.
func (p *Palette) PlaylistTable(playlists []models.Playlist) string {
	var b strings.Builder
	width := 0
	for _, pl := range playlists {
		width = max(width, len(pl.ID))
	}
	for i, pl := range playlists {
		name := pl.Name
		if pl.IsLikedSongs() {
			name = p.Title(name)
		}
		fmt.Fprintf(&b, "%3d. %-*s  %s %s\n", i+1, width, pl.ID, name, p.Help(fmt.Sprintf("(%d tracks)", pl.TrackCount)))
	}
	return b.String()
}

// VolumeBar renders volume (0 to 1) as a ten cell bar with a percentage.
func VolumeBar(volume float64, muted bool) string {
	if muted {
		return "[          ] muted"
	}
	volume = max(0, min(1, volume))
	filled := int(volume*10 + 0.5)
	return fmt.Sprintf("[%s%s] %d%%", strings.Repeat("■", filled), strings.Repeat(" ", 10-filled), int(volume*100+0.5))
}
