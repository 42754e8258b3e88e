package lavakit

import "time"

// QueueItem is implemented by both Track and TrackPartial: the two shapes a
// Player's queue may hold. A TrackPartial is resolved into a Track (via
// Manager.Search) the moment it reaches the head of the queue.
type QueueItem interface {
	queueItem()
	// DisplayTitle is a best-effort human label, used for error messages.
	// The resolveTrack search query is built by TrackPartial.searchQuery.
	DisplayTitle() string
}

// Track is an immutable, fully resolved media descriptor returned by
// Lavalink's /loadtracks, /decodetrack, and /decodetracks endpoints.
type Track struct {
	// Encoded is the opaque base64 track payload Lavalink expects back in
	// play/decode requests. lavakit never parses it.
	Encoded    string
	Identifier string
	Author     string
	Length     time.Duration
	IsStream   bool
	Position   time.Duration
	Title      string
	URI        string
	SourceName string
	// Requester is opaque caller-supplied metadata (e.g. a user id) carried
	// alongside the track through its lifecycle; lavakit never inspects it.
	Requester interface{}
}

func (*Track) queueItem() {}

// DisplayTitle implements QueueItem.
func (t *Track) DisplayTitle() string { return t.Title }

// TrackPartial stands in for a Track until it is resolved via search. It
// carries just enough information to perform that search and to fail
// legibly if resolution never happens.
type TrackPartial struct {
	Title     string
	Requester interface{}
	Author    string
	// LengthMs is nil when the caller did not supply an expected length.
	LengthMs *int64
}

func (*TrackPartial) queueItem() {}

// DisplayTitle implements QueueItem.
func (t *TrackPartial) DisplayTitle() string { return t.Title }

// searchQuery builds the query resolveTrack issues against Manager.Search:
// "<title> - <author>" when an author is present, else just the title.
func (t *TrackPartial) searchQuery() string {
	if t.Author != "" {
		return t.Title + " - " + t.Author
	}
	return t.Title
}

// rawTrackInfo is the wire shape of a Lavalink track's "info" object,
// shared by /loadtracks, /decodetrack, and /decodetracks responses.
type rawTrackInfo struct {
	Identifier string `json:"identifier"`
	Author     string `json:"author"`
	Title      string `json:"title"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	URI        string `json:"uri"`
	SourceName string `json:"sourceName"`
}

type rawTrack struct {
	Encoded string       `json:"encoded"`
	Info    rawTrackInfo `json:"info"`
}

func (r rawTrack) toTrack(requester interface{}) *Track {
	return &Track{
		Encoded:    r.Encoded,
		Identifier: r.Info.Identifier,
		Author:     r.Info.Author,
		Length:     time.Duration(r.Info.Length) * time.Millisecond,
		IsStream:   r.Info.IsStream,
		Position:   time.Duration(r.Info.Position) * time.Millisecond,
		Title:      r.Info.Title,
		URI:        r.Info.URI,
		SourceName: r.Info.SourceName,
		Requester:  requester,
	}
}
