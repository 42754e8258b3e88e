package lavakit

import (
	"context"
	"encoding/json"
	"time"
)

// handleNodePayload translates a raw playerUpdate/event frame (forwarded by
// Manager.pumpNodeEvents) into a PlayerEvent and applies any resulting
// state change (spec.md §4.3 "Node payload handling").
func (p *Player) handleNodePayload(op string, payload []byte) {
	switch op {
	case inOpPlayerUpdate:
		p.handlePlayerUpdate(payload)
	case inOpEvent:
		p.handleEvent(payload)
	}
}

func (p *Player) handlePlayerUpdate(payload []byte) {
	var pu playerUpdatePayload
	if err := json.Unmarshal(payload, &pu); err != nil {
		p.logger.Warn("malformed playerUpdate: " + err.Error())
		return
	}
	p.mu.Lock()
	if p.state >= PlayerPaused {
		p.trackPositionMs = int64Ptr(pu.State.Position)
	}
	p.mu.Unlock()
}

func (p *Player) handleEvent(payload []byte) {
	var ev eventPayload
	if err := json.Unmarshal(payload, &ev); err != nil {
		p.logger.Warn("malformed event frame: " + err.Error())
		return
	}

	switch ev.Type {
	case eventTrackStart:
		track := p.trackFromPayload(ev.Track)
		p.emit(PlayerEvent{Kind: PlayerEventTrackStart, Track: track})

		p.mu.Lock()
		paused := p.sentPausedPlay
		if paused {
			p.state = PlayerPaused
		} else {
			p.state = PlayerPlaying
		}
		p.mu.Unlock()
		if paused {
			p.emit(PlayerEvent{Kind: PlayerEventPaused})
		}

	case eventTrackEnd:
		track := p.trackFromPayload(ev.Track)
		reason := TrackEndReason(ev.Reason)

		p.mu.Lock()
		p.trackPositionMs = nil
		p.state = PlayerConnected
		p.mu.Unlock()

		p.emit(PlayerEvent{Kind: PlayerEventTrackEnd, Track: track, EndReason: reason})
		if reason != TrackEndStopped && reason != TrackEndReplaced {
			go func() {
				if err := p.advance(context.Background(), true); err != nil {
					p.logger.Warn("advance after track end failed: " + err.Error())
				}
			}()
		}

	case eventTrackException:
		track := p.trackFromPayload(ev.Track)
		exc := &TrackException{}
		if ev.Exception != nil {
			exc.Message = ev.Exception.Message
			exc.Severity = ev.Exception.Severity
			exc.Cause = ev.Exception.Cause
		}
		p.emit(PlayerEvent{Kind: PlayerEventTrackException, Track: track, Exception: exc})

	case eventTrackStuck:
		track := p.trackFromPayload(ev.Track)
		p.emit(PlayerEvent{
			Kind:           PlayerEventTrackStuck,
			Track:          track,
			StuckThreshold: time.Duration(ev.ThresholdMs) * time.Millisecond,
		})
		if node := p.currentNode(); node != nil {
			_ = node.Send(stopPayload{Op: opStop, GuildID: p.guildID.String()})
		}
		go func() {
			if err := p.advance(context.Background(), true); err != nil {
				p.logger.Warn("advance after track stuck failed: " + err.Error())
			}
		}()

	case eventWebSocketClosed:
		// Always emitted unconditionally (spec.md resolved Open Question):
		// the embedder decides whether a given close code warrants action.
		p.emit(PlayerEvent{
			Kind:        PlayerEventWebSocketClosed,
			CloseCode:   ev.Code,
			CloseReason: ev.Reason,
			ByRemote:    ev.ByRemote,
		})

	default:
		p.logger.WithField("type", ev.Type).Warn("unknown event type")
	}
}

// trackFromPayload resolves an event's encoded track string back to a
// *Track, preferring the queue's own copy (which carries Requester) and
// falling back to a Node decode.
func (p *Player) trackFromPayload(encoded string) *Track {
	p.mu.Lock()
	if cur, ok := p.currentLocked().(*Track); ok && cur.Encoded == encoded {
		p.mu.Unlock()
		return cur
	}
	for _, item := range p.queue.Values() {
		if t, ok := item.(*Track); ok && t.Encoded == encoded {
			p.mu.Unlock()
			return t
		}
	}
	p.mu.Unlock()

	if encoded == "" {
		return nil
	}
	tracks, err := p.manager.DecodeTracks(context.Background(), encoded)
	if err != nil || len(tracks) == 0 {
		p.logger.Warn("failed to decode track from event payload")
		return &Track{Encoded: encoded}
	}
	return tracks[0]
}
