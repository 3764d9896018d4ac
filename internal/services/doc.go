// Package services wraps the Spotify Web API behind the calls the session and player need.
//
// # Client
//
// [Client] is built on github.com/zmb3/spotify/v2. Requests carry a bearer token pulled from a
// [TokenFunc] on every call, so a refreshed token is picked up without rebuilding the client.
//
// # Errors
//
// Failed calls return a [*Error] carrying the endpoint and HTTP status, or status 0 when no
// response arrived. A 401 from any endpoint also fires the client's unauthorized hook so the owner
// can drop its tokens.
//
// # Non-critical endpoints
//
// [IsNonCritical] is the allow-list of endpoints whose 400, 5xx and network failures do not matter
// to playback (currently the queue). [Client] logs and counts those failures and returns an empty
// result instead of an error.
package services
