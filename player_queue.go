package lavakit

import (
	"context"
	"time"
)

// Enqueue appends items to the queue. If nothing is currently playing and
// the Player is connected, playback starts automatically at the first of
// the newly added items (spec.md §4.3 "Queue and playback").
func (p *Player) Enqueue(items ...QueueItem) int {
	p.mu.Lock()
	start := p.queue.Len()
	p.queue.Append(items...)
	shouldAutoplay := len(items) > 0 && p.queuePosition == noQueuePosition && p.state >= PlayerConnected
	if shouldAutoplay {
		p.queuePosition = start
	}
	p.mu.Unlock()

	if shouldAutoplay {
		go func() {
			if err := p.Play(context.Background()); err != nil {
				p.logger.Warn("autoplay after enqueue failed: " + err.Error())
			}
		}()
	}
	return start
}

// PlayOptions customizes a single play() call (spec.md §4.3 "Play payload
// assembly"). The zero value requests no overrides.
type PlayOptions struct {
	StartTime *time.Duration
	EndTime   *time.Duration
	// Volume replaces player.volume (the new value stays in effect for later
	// tracks too). Still validated against [0,1000] and still omitted from
	// the wire payload when it ends up equal to the default of 100.
	Volume *int
}

// Play (re)starts playback of the current queue item, advancing the queue
// position to 0 if nothing is current yet.
func (p *Player) Play(ctx context.Context, opts ...PlayOptions) error {
	p.mu.Lock()
	if err := p.requireStateLocked(PlayerConnected); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.spinning {
		p.mu.Unlock()
		return newErr(ErrStateConflict, "play already in progress")
	}
	if p.queuePosition == noQueuePosition {
		if p.queue.Len() == 0 {
			p.mu.Unlock()
			return newErr(ErrInvalidArgument, "queue is empty")
		}
		p.queuePosition = 0
	}
	item := p.currentLocked()
	p.spinning = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.spinning = false
		p.mu.Unlock()
	}()

	return p.playItem(ctx, item, firstPlayOptions(opts))
}

func firstPlayOptions(opts []PlayOptions) *PlayOptions {
	if len(opts) == 0 {
		return nil
	}
	return &opts[0]
}

// playItem resolves item (if a TrackPartial) and sends the play op (spec.md
// §4.3 "Play payload assembly"). Final playback state (Playing vs Paused)
// is not set here: it is decided by the server's TrackStartEvent
// (player_events.go), using the sent_paused_play latch this function sets.
func (p *Player) playItem(ctx context.Context, item QueueItem, opts *PlayOptions) error {
	if item == nil {
		return newErr(ErrInvalidArgument, "no current queue item")
	}
	track, err := p.resolveTrack(ctx, item)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.queue.Set(p.queuePosition, track)
	vol := p.volume
	if opts != nil && opts.Volume != nil {
		v := *opts.Volume
		if v < volumeMin || v > volumeMax {
			p.mu.Unlock()
			return newErr(ErrVolumeOutOfRange, "volume must be between 0 and 1000")
		}
		p.volume = v
		vol = v
	}
	isStage, isSpeaker := p.isStage, p.isSpeaker
	p.mu.Unlock()

	// A stage listener (not a speaker) must never stream audible output
	// while suppressed, so play payloads sent in that state are forced
	// paused regardless of any other setting.
	pause := isStage && !isSpeaker

	payload := playPayload{Op: opPlay, GuildID: p.guildID.String(), Track: track.Encoded}
	if opts != nil {
		if opts.StartTime != nil {
			ms := opts.StartTime.Milliseconds()
			payload.StartTime = &ms
		}
		if opts.EndTime != nil {
			ms := opts.EndTime.Milliseconds()
			payload.EndTime = &ms
		}
	}
	if vol != volumeDefault {
		v := vol
		payload.Volume = &v
	}
	if pause {
		payload.Pause = boolPtr(true)
	}

	node := p.currentNode()
	if node == nil {
		return newErr(ErrNoNodesAvailable, "node unavailable")
	}
	if err := node.Send(payload); err != nil {
		return err
	}

	p.mu.Lock()
	p.sentPausedPlay = pause
	p.trackPositionMs = int64Ptr(0)
	p.mu.Unlock()
	return nil
}

// nextIndexLocked computes the queue index a Skip (natural=false) or a
// server TrackEnd (natural=true) should move to, per loop mode (spec.md
// §4.3). Must be called with p.mu held.
func (p *Player) nextIndexLocked(natural bool) (int, bool) {
	n := p.queue.Len()
	if n == 0 {
		return 0, false
	}
	if natural && p.loop == LoopSingle {
		return p.queuePosition, true
	}
	next := p.queuePosition + 1
	if p.loop == LoopQueue {
		if next >= n {
			next = 0
		}
		return next, true
	}
	if next >= n {
		return 0, false
	}
	return next, true
}

// advance moves to the next queue item (per loop mode) and plays it, or
// stops if the queue is exhausted. natural is true when called from a
// server-side TrackEnd, false for a caller-issued Skip.
func (p *Player) advance(ctx context.Context, natural bool) error {
	p.mu.Lock()
	if p.spinning {
		p.mu.Unlock()
		return nil
	}
	p.spinning = true
	idx, ok := p.nextIndexLocked(natural)
	if !ok {
		p.queuePosition = noQueuePosition
		p.spinning = false
		p.mu.Unlock()

		node := p.currentNode()
		if node != nil {
			_ = node.Send(stopPayload{Op: opStop, GuildID: p.guildID.String()})
		}
		p.mu.Lock()
		p.state = PlayerConnected
		p.trackPositionMs = nil
		p.mu.Unlock()
		return nil
	}
	p.queuePosition = idx
	item := p.currentLocked()
	p.mu.Unlock()

	err := p.playItem(ctx, item, nil)

	p.mu.Lock()
	p.spinning = false
	p.mu.Unlock()
	return err
}

// Skip stops the server first. With an explicit index, it bounds-checks and
// plays that queue item directly (resolving a TrackPartial as needed).
// Without one, it invokes the advance-queue algorithm, ignoring LoopSingle
// (spec.md's resolved Open Question: skip always stops first, even
// mid-load).
func (p *Player) Skip(ctx context.Context, index ...int) error {
	p.mu.Lock()
	if err := p.requireStateLocked(PlayerConnected); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	node := p.currentNode()
	if node != nil {
		_ = node.Send(stopPayload{Op: opStop, GuildID: p.guildID.String()})
	}

	if len(index) == 0 {
		return p.advance(ctx, false)
	}

	p.mu.Lock()
	idx := index[0]
	if idx < 0 || idx >= p.queue.Len() {
		p.mu.Unlock()
		return newErr(ErrInvalidSkipIndex, "index out of range")
	}
	if p.spinning {
		p.mu.Unlock()
		return newErr(ErrStateConflict, "play already in progress")
	}
	p.queuePosition = idx
	item := p.currentLocked()
	p.spinning = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.spinning = false
		p.mu.Unlock()
	}()
	return p.playItem(ctx, item, nil)
}

// Stop halts playback without clearing the queue or queue position.
func (p *Player) Stop() error {
	p.mu.Lock()
	if err := p.requireStateLocked(PlayerConnected); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	node := p.currentNode()
	if node == nil {
		return newErr(ErrNoNodesAvailable, "node unavailable")
	}
	if err := node.Send(stopPayload{Op: opStop, GuildID: p.guildID.String()}); err != nil {
		return err
	}

	p.mu.Lock()
	p.state = PlayerConnected
	p.trackPositionMs = nil
	p.mu.Unlock()
	return nil
}

// Pause requires the Player to currently be Playing.
func (p *Player) Pause() error {
	p.mu.Lock()
	if p.state != PlayerPlaying {
		p.mu.Unlock()
		return newErr(ErrStateConflict, "pause requires state Playing")
	}
	p.mu.Unlock()

	node := p.currentNode()
	if node == nil {
		return newErr(ErrNoNodesAvailable, "node unavailable")
	}
	if err := node.Send(pausePayload{Op: opPause, GuildID: p.guildID.String(), Pause: true}); err != nil {
		return err
	}

	p.mu.Lock()
	p.state = PlayerPaused
	p.mu.Unlock()
	p.emit(PlayerEvent{Kind: PlayerEventPaused})
	return nil
}

// Resume requires the Player to currently be Paused.
func (p *Player) Resume() error {
	p.mu.Lock()
	if p.state != PlayerPaused {
		p.mu.Unlock()
		return newErr(ErrStateConflict, "resume requires state Paused")
	}
	p.mu.Unlock()

	node := p.currentNode()
	if node == nil {
		return newErr(ErrNoNodesAvailable, "node unavailable")
	}
	if err := node.Send(pausePayload{Op: opPause, GuildID: p.guildID.String(), Pause: false}); err != nil {
		return err
	}

	p.mu.Lock()
	p.state = PlayerPlaying
	p.mu.Unlock()
	p.emit(PlayerEvent{Kind: PlayerEventResumed})
	return nil
}

// Seek requires a loaded track (state ≥ Paused).
func (p *Player) Seek(position time.Duration) error {
	p.mu.Lock()
	if p.state < PlayerPaused {
		p.mu.Unlock()
		return newErr(ErrStateConflict, "seek requires a loaded track")
	}
	if position < 0 {
		p.mu.Unlock()
		return newErr(ErrInvalidSeek, "position must not be negative")
	}
	if t, ok := p.currentLocked().(*Track); ok && !t.IsStream && t.Length > 0 && position > t.Length {
		p.mu.Unlock()
		return newErr(ErrInvalidSeek, "position beyond track length")
	}
	p.mu.Unlock()

	node := p.currentNode()
	if node == nil {
		return newErr(ErrNoNodesAvailable, "node unavailable")
	}
	if err := node.Send(seekPayload{Op: opSeek, GuildID: p.guildID.String(), Position: position.Milliseconds()}); err != nil {
		return err
	}

	p.mu.Lock()
	p.trackPositionMs = int64Ptr(position.Milliseconds())
	p.mu.Unlock()
	return nil
}

// SetVolume requires volume in [0, 1000] (spec.md §3).
func (p *Player) SetVolume(volume int) error {
	if volume < volumeMin || volume > volumeMax {
		return newErr(ErrVolumeOutOfRange, "volume must be between 0 and 1000")
	}
	p.mu.Lock()
	if err := p.requireStateLocked(PlayerConnected); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	node := p.currentNode()
	if node == nil {
		return newErr(ErrNoNodesAvailable, "node unavailable")
	}
	if err := node.Send(volumePayload{Op: opVolume, GuildID: p.guildID.String(), Volume: volume}); err != nil {
		return err
	}

	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
	return nil
}

// SetFilters pushes a new filter chain to the server (spec.md §4.3
// set_filters / SPEC_FULL.md §12).
func (p *Player) SetFilters(filters PlayerFilters) error {
	p.mu.Lock()
	if err := p.requireStateLocked(PlayerConnected); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	node := p.currentNode()
	if node == nil {
		return newErr(ErrNoNodesAvailable, "node unavailable")
	}
	if err := node.Send(filtersPayload{Op: opFilters, GuildID: p.guildID.String(), PlayerFilters: filters}); err != nil {
		return err
	}

	p.mu.Lock()
	p.filters = filters
	p.mu.Unlock()
	return nil
}

// SetLoop changes loop mode. Purely local; takes effect on the next
// advance.
func (p *Player) SetLoop(mode LoopMode) {
	p.mu.Lock()
	p.loop = mode
	p.mu.Unlock()
}

// Shuffle stops playback, Fisher-Yates shuffles the whole queue (including
// the currently-playing slot), resets to position 0, and plays it (spec.md
// §4.3 "shuffle()").
func (p *Player) Shuffle(ctx context.Context) error {
	p.mu.Lock()
	if err := p.requireStateLocked(PlayerConnected); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	node := p.currentNode()
	if node != nil {
		_ = node.Send(stopPayload{Op: opStop, GuildID: p.guildID.String()})
	}

	p.mu.Lock()
	p.queue.Shuffle()
	if p.queue.Len() == 0 {
		p.queuePosition = noQueuePosition
		p.state = PlayerConnected
		p.trackPositionMs = nil
		p.mu.Unlock()
		return nil
	}
	p.queuePosition = 0
	item := p.currentLocked()
	if p.spinning {
		p.mu.Unlock()
		return newErr(ErrStateConflict, "play already in progress")
	}
	p.spinning = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.spinning = false
		p.mu.Unlock()
	}()
	return p.playItem(ctx, item, nil)
}

// Remove deletes the queue item at index. If index is the currently
// playing item, advance (the default) moves on to whatever now sits in its
// place; pass advance=false to stop instead (spec.md §4.3 "remove(i,
// advance=true)").
func (p *Player) Remove(index int, advance ...bool) error {
	doAdvance := true
	if len(advance) > 0 {
		doAdvance = advance[0]
	}

	p.mu.Lock()
	if index < 0 || index >= p.queue.Len() {
		p.mu.Unlock()
		return newErr(ErrInvalidSkipIndex, "index out of range")
	}
	wasCurrent := index == p.queuePosition
	p.queue.Remove(index)
	if p.queuePosition != noQueuePosition && index < p.queuePosition {
		p.queuePosition--
	}
	p.mu.Unlock()

	if !wasCurrent {
		return nil
	}
	if !doAdvance {
		return p.Stop()
	}

	p.mu.Lock()
	item := p.currentLocked()
	if item == nil {
		p.queuePosition = noQueuePosition
		p.mu.Unlock()
		return p.Stop()
	}
	if p.spinning {
		p.mu.Unlock()
		return newErr(ErrStateConflict, "play already in progress")
	}
	p.spinning = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.spinning = false
		p.mu.Unlock()
	}()
	return p.playItem(context.Background(), item, nil)
}

// Clear empties the queue. When stop is true, playback is also halted and
// the queue position cleared; otherwise the currently-playing item (if
// any) is retained as the sole queue entry.
func (p *Player) Clear(stop bool) error {
	if stop {
		if err := p.Stop(); err != nil {
			if k, ok := KindOf(err); !ok || k != ErrStateConflict {
				return err
			}
		}
		p.mu.Lock()
		p.queue.Clear()
		p.queuePosition = noQueuePosition
		p.mu.Unlock()
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue.retainOnly(p.queuePosition)
	if p.queue.Len() > 0 {
		p.queuePosition = 0
	} else {
		p.queuePosition = noQueuePosition
	}
	return nil
}

// Destroy tears the Player down: sends a destroy op (best effort), leaves
// the voice channel, deregisters from the Manager, and emits Destroyed.
// Idempotent.
func (p *Player) Destroy(reason string) error {
	select {
	case <-p.destroyed:
		return nil
	default:
	}

	p.mu.Lock()
	alreadyDestroyed := false
	select {
	case <-p.destroyed:
		alreadyDestroyed = true
	default:
	}
	if alreadyDestroyed {
		p.mu.Unlock()
		return nil
	}
	close(p.destroyed)
	guild := p.guildID
	p.state = PlayerDisconnected
	p.mu.Unlock()

	node := p.currentNode()
	if node != nil {
		_ = node.Send(destroyPayload{Op: opDestroy, GuildID: guild.String()})
	}
	_ = p.manager.adapter.UpdateVoiceState(context.Background(), guild, nil, false, false)

	p.manager.removePlayer(guild)
	p.emit(PlayerEvent{Kind: PlayerEventDestroyed, Reason: reason})
	return nil
}

func int64Ptr(v int64) *int64 { return &v }
