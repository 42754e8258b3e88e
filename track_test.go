package lavakit

import (
	"testing"
	"time"
)

func TestTrackPartialSearchQuery(t *testing.T) {
	cases := []struct {
		partial *TrackPartial
		want    string
	}{
		{&TrackPartial{Title: "Song"}, "Song"},
		{&TrackPartial{Title: "Song", Author: "Artist"}, "Song - Artist"},
	}
	for _, c := range cases {
		if got := c.partial.searchQuery(); got != c.want {
			t.Errorf("searchQuery() = %q, want %q", got, c.want)
		}
	}
}

func TestTrackPartialDisplayTitle(t *testing.T) {
	p := &TrackPartial{Title: "Song"}
	if p.DisplayTitle() != "Song" {
		t.Errorf("DisplayTitle() = %q, want %q", p.DisplayTitle(), "Song")
	}
}

func TestQueueItemInterface(t *testing.T) {
	var items []QueueItem
	items = append(items, &Track{Title: "a"}, &TrackPartial{Title: "b"})
	if len(items) != 2 {
		t.Fatalf("expected 2 items")
	}
}

func TestRawTrackToTrack(t *testing.T) {
	rt := rawTrack{
		Encoded: "abc123",
		Info: rawTrackInfo{
			Identifier: "id1",
			Author:     "Artist",
			Title:      "Song",
			Length:     180000,
			IsStream:   false,
			Position:   5000,
			URI:        "https://example.com/song",
			SourceName: "youtube",
		},
	}
	track := rt.toTrack("user-123")

	if track.Encoded != "abc123" {
		t.Errorf("Encoded = %q", track.Encoded)
	}
	if track.Length != 180*time.Second {
		t.Errorf("Length = %v, want 180s", track.Length)
	}
	if track.Position != 5*time.Second {
		t.Errorf("Position = %v, want 5s", track.Position)
	}
	if track.Requester != "user-123" {
		t.Errorf("Requester = %v, want user-123", track.Requester)
	}
}
