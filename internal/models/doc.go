// Package models defines the playback domain types shared by the REST layer, the player and the session.
//
//   - [Playlist] : a real playlist or the locally synthesized Liked Songs entry
//   - [Track] : track metadata, keyed by URI in the session's metadata cache
//   - [PlaybackState] : the mirror of what the player device last reported
//   - [Device] : a Spotify Connect device
//
// Values are plain data; none are persisted.
package models
