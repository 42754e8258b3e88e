package lavakit

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// resolveTrackWindow bounds how far a candidate's duration may drift from
// a TrackPartial's expected length and still be accepted: [-2s, +200ms]
// (spec.md §4.3 resolveTrack). Lavalink search results commonly run a
// little short (intros trimmed) but rarely long, hence the asymmetry.
const (
	resolveWindowUnder = 2000 * time.Millisecond
	resolveWindowOver  = 200 * time.Millisecond
)

var authorSplitRe = regexp.MustCompile(`(?i)\s*[-–—]\s*|\s+ft\.?\s+|\s+feat\.?\s+`)

// resolveTrack returns item unchanged if it is already a Track, otherwise
// resolves a TrackPartial by searching and picking the best candidate
// (spec.md §4.3).
func (p *Player) resolveTrack(ctx context.Context, item QueueItem) (*Track, error) {
	if t, ok := item.(*Track); ok {
		return t, nil
	}
	partial, ok := item.(*TrackPartial)
	if !ok {
		return nil, newErr(ErrInvalidTrack, "unrecognized queue item")
	}

	result, err := p.manager.Search(ctx, partial.searchQuery(), partial.Requester, "")
	if err != nil {
		return nil, err
	}
	switch result.LoadType {
	case LoadTypeNoMatches:
		return nil, newErr(ErrNoResults, "no search results for \""+partial.DisplayTitle()+"\"")
	case LoadTypeFailed:
		msg := "search failed"
		if result.Exception != nil {
			msg = result.Exception.Message
		}
		return nil, newErr(ErrNoResults, msg)
	}
	if len(result.Tracks) == 0 {
		return nil, newErr(ErrNoResults, "no search results for \""+partial.DisplayTitle()+"\"")
	}

	best := result.Tracks[0]
	best.Requester = partial.Requester
	if candidate := pickBestCandidate(partial, result.Tracks); candidate != nil {
		best = candidate
		best.Requester = partial.Requester
	}
	return best, nil
}

// pickBestCandidate scores every search hit and returns the strongest
// match, or nil to fall back to the first result (spec.md §4.3).
func pickBestCandidate(partial *TrackPartial, tracks []*Track) *Track {
	var best *Track
	bestScore := 0

	for _, t := range tracks {
		score := 0

		if partial.LengthMs != nil {
			expected := time.Duration(*partial.LengthMs) * time.Millisecond
			diff := t.Length - expected
			if diff >= -resolveWindowUnder && diff <= resolveWindowOver {
				score += 2
			} else {
				continue
			}
		}

		if partial.Author != "" && authorMatches(partial.Author, t.Author, t.Title) {
			score += 1
		}

		if titleMatches(partial.Title, t.Title) {
			score += 1
		}

		if score > bestScore {
			bestScore = score
			best = t
		}
	}
	return best
}

func authorMatches(expected, candidateAuthor, candidateTitle string) bool {
	expected = normalizeForMatch(expected)
	if expected == "" {
		return false
	}
	if strings.Contains(normalizeForMatch(candidateAuthor), expected) {
		return true
	}
	// Some sources fold "Artist - Title" into the title field alone.
	parts := authorSplitRe.Split(candidateTitle, -1)
	for _, part := range parts {
		if strings.Contains(normalizeForMatch(part), expected) {
			return true
		}
	}
	return false
}

func titleMatches(expected, candidateTitle string) bool {
	expected = normalizeForMatch(expected)
	if expected == "" {
		return false
	}
	return strings.Contains(normalizeForMatch(candidateTitle), expected)
}

func normalizeForMatch(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
