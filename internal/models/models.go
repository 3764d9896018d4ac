package models

import (
	"fmt"
	"strings"
)

// LikedSongsID is the playlist ID of the synthesized saved-tracks playlist.
const LikedSongsID = "liked-songs"

// PlaylistKind distinguishes real playlists from the synthesized Liked Songs entry.
type PlaylistKind string

const (
	KindNormal     PlaylistKind = "normal"
	KindLikedSongs PlaylistKind = "liked-songs"
)

// Image is one rendition of a cover image.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Playlist is a browsable collection of tracks.
type Playlist struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Images     []Image      `json:"images"`
	TrackCount int          `json:"track_count"`
	URI        string       `json:"uri,omitempty"`
	Kind       PlaylistKind `json:"type"`
}

// IsLikedSongs reports whether p is the synthesized saved-tracks playlist.
func (p Playlist) IsLikedSongs() bool {
	return p.Kind == KindLikedSongs || p.ID == LikedSongsID
}

// ContextURI returns the URI used to start playback of p as a context.
func (p Playlist) ContextURI() string {
	if p.URI != "" {
		return p.URI
	}
	return PlaylistURI(p.ID)
}

// NewLikedSongs builds the Liked Songs entry for a library of total saved tracks.
func NewLikedSongs(total int, images []Image) Playlist {
	if images == nil {
		images = []Image{}
	}
	return Playlist{
		ID:         LikedSongsID,
		Name:       "Liked Songs",
		Images:     images,
		TrackCount: total,
		Kind:       KindLikedSongs,
	}
}

// PlaylistURI returns the spotify:playlist: URI for id.
func PlaylistURI(id string) string {
	return "spotify:playlist:" + id
}

// Track is the metadata needed to display a track.
type Track struct {
	URI      string   `json:"uri"`
	Name     string   `json:"name"`
	Artists  []string `json:"artists"`
	Album    string   `json:"album,omitempty"`
	Images   []Image  `json:"images,omitempty"`
	Duration int      `json:"duration_ms"` // milliseconds
}

// Artist joins the track's artist names for display.
func (t Track) Artist() string {
	return strings.Join(t.Artists, ", ")
}

func (t Track) String() string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return fmt.Sprintf("%s - %s", t.Artist(), t.Name)
}

// PlaybackState mirrors the device's last reported state.
type PlaybackState struct {
	Paused      bool   `json:"paused"`
	TrackName   string `json:"track_name"`
	TrackArtist string `json:"track_artist"`
	TrackURI    string `json:"track_uri,omitempty"`
	PositionMS  int    `json:"position_ms"`
	Volume      int    `json:"volume_percent"`
}

// Device is a Spotify Connect playback device.
type Device struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Volume int    `json:"volume_percent"`
}
