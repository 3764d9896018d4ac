package ui

import (
	"strings"
	"testing"

	"github.com/desertthunder/vinyl/internal/models"
)

func TestPalette(t *testing.T) {
	p := Default

	t.Run("Prefixes", func(t *testing.T) {
		if !strings.Contains(p.OK("logged in"), "✓ logged in") {
			t.Error("expected check mark prefix")
		}
		if !strings.Contains(p.Error("failed"), "✗ failed") {
			t.Error("expected cross prefix")
		}
		if !strings.Contains(p.Warn("careful"), "⚠ careful") {
			t.Error("expected warning prefix")
		}
	})

	t.Run("Now Playing", func(t *testing.T) {
		got := p.NowPlaying(models.PlaybackState{TrackName: "Song", TrackArtist: "Artist", Paused: true})
		for _, want := range []string{"⏸", "Song", "by Artist"} {
			if !strings.Contains(got, want) {
				t.Errorf("expected %q in %q", want, got)
			}
		}
		if !strings.Contains(p.NowPlaying(models.PlaybackState{}), "nothing playing") {
			t.Error("expected idle message")
		}
	})

	t.Run("Playlist Table", func(t *testing.T) {
		got := p.PlaylistTable([]models.Playlist{
			models.NewLikedSongs(12, nil),
			{ID: "37i9dQZF1DXcBWIGoYBM5M", Name: "Today's Top Hits", TrackCount: 50},
		})
		lines := strings.Split(strings.TrimSpace(got), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(lines))
		}
		if !strings.Contains(lines[0], models.LikedSongsID) || !strings.Contains(lines[0], "(12 tracks)") {
			t.Errorf("unexpected first row %q", lines[0])
		}
		if !strings.HasPrefix(lines[1], "  2. 37i9dQZF1DXcBWIGoYBM5M") {
			t.Errorf("unexpected second row %q", lines[1])
		}
	})
}

func TestVolumeBar(t *testing.T) {
	tests := []struct {
		volume float64
		muted  bool
		want   string
	}{
		{0, false, "[          ] 0%"},
		{0.5, false, "[■■■■■     ] 50%"},
		{1, false, "[■■■■■■■■■■] 100%"},
		{1.4, false, "[■■■■■■■■■■] 100%"},
		{0.8, true, "[          ] muted"},
	}
	for _, tt := range tests {
		if got := VolumeBar(tt.volume, tt.muted); got != tt.want {
			t.Errorf("VolumeBar(%v, %v) = %q, want %q", tt.volume, tt.muted, got, tt.want)
		}
	}
}
