package lavakit

import (
	"testing"
	"time"
)

func TestPickBestCandidateByDurationWindow(t *testing.T) {
	partial := &TrackPartial{Title: "Song", LengthMs: int64Ptr(180000)}
	tracks := []*Track{
		{Title: "Song (Live)", Length: 170 * time.Second},  // outside [-2000,+200]: diff=-10s -> rejected
		{Title: "Song", Length: 178500 * time.Millisecond}, // diff=-1.5s, within window
		{Title: "Song (Extended)", Length: 300 * time.Second},
	}
	best := pickBestCandidate(partial, tracks)
	if best == nil {
		t.Fatalf("expected a candidate")
	}
	if best.Title != "Song" {
		t.Errorf("picked %q, want %q", best.Title, "Song")
	}
}

func TestPickBestCandidateDurationWindowIsAsymmetric(t *testing.T) {
	partial := &TrackPartial{Title: "Song", LengthMs: int64Ptr(180000)}

	// 1900ms under target: inside [-2000,+200] -> accepted.
	under := &Track{Title: "Song", Length: 178100 * time.Millisecond}
	if pickBestCandidate(partial, []*Track{under}) == nil {
		t.Errorf("expected candidate 1900ms under target to be accepted")
	}

	// 300ms over target: outside [-2000,+200] -> rejected.
	over := &Track{Title: "Song", Length: 180300 * time.Millisecond}
	if pickBestCandidate(partial, []*Track{over}) != nil {
		t.Errorf("expected candidate 300ms over target to be rejected")
	}
}

func TestPickBestCandidateByAuthor(t *testing.T) {
	partial := &TrackPartial{Title: "Song", Author: "Some Artist"}
	tracks := []*Track{
		{Title: "Song", Author: "Unrelated"},
		{Title: "Song", Author: "Some Artist - Topic"},
	}
	best := pickBestCandidate(partial, tracks)
	if best == nil || best.Author != "Some Artist - Topic" {
		t.Errorf("expected the author-matching candidate, got %+v", best)
	}
}

func TestPickBestCandidateFallsBackToNilWhenNoneScore(t *testing.T) {
	partial := &TrackPartial{}
	tracks := []*Track{{Title: "Anything"}}
	if got := pickBestCandidate(partial, tracks); got != nil {
		t.Errorf("expected nil (caller falls back to first result), got %+v", got)
	}
}

func TestAuthorMatchesSplitsArtistFromTitle(t *testing.T) {
	if !authorMatches("Some Artist", "", "Some Artist - Song Title") {
		t.Errorf("expected author match via title split")
	}
	if authorMatches("Some Artist", "", "Completely Different - Song") {
		t.Errorf("did not expect a match")
	}
}

func TestTitleMatchesCaseInsensitive(t *testing.T) {
	if !titleMatches("song", "My SONG Title") {
		t.Errorf("expected case-insensitive substring match")
	}
}
