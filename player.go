package lavakit

import (
	"sync"
)

// PlayerState is a Player's lifecycle state (spec.md §3). The declared
// order is meaningful: Disconnected < Connected < Paused < Playing, used
// throughout for "state ≥ Connected" guard checks.
type PlayerState int

const (
	PlayerDisconnected PlayerState = iota
	PlayerConnected
	PlayerPaused
	PlayerPlaying
)

func (s PlayerState) String() string {
	switch s {
	case PlayerDisconnected:
		return "disconnected"
	case PlayerConnected:
		return "connected"
	case PlayerPaused:
		return "paused"
	case PlayerPlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// LoopMode is a Player's repeat behavior.
type LoopMode int

const (
	LoopOff LoopMode = iota
	LoopSingle
	LoopQueue
)

const (
	volumeMin     = 0
	volumeMax     = 1000
	volumeDefault = 100
)

// noQueuePosition is the sentinel for "no current track" (spec.md §3:
// queue_position is either none or a valid index).
const noQueuePosition = -1

// Player is a per-guild audio session: queue, loop mode, voice-channel
// connection choreography, and translation of server-side track events
// into client events (spec.md §4.3).
type Player struct {
	manager *Manager
	guildID Snowflake
	logger  Logger

	events chan PlayerEvent

	mu sync.Mutex

	nodeID int

	voiceChannelID Snowflake
	textChannelID  *Snowflake
	options        PlayerOptions

	state PlayerState

	queue         *queue
	queuePosition int
	loop          LoopMode
	volume        int
	filters       PlayerFilters

	trackPositionMs *int64

	isStage        bool
	isSpeaker      bool
	sentPausedPlay bool
	// spinning guards advance-queue/play against re-entrant execution from
	// a concurrent TrackEnd/TrackStuck racing a caller-issued skip/stop.
	spinning bool

	connectWake chan struct{} // closed by handleMove on voice-connected; recreated per Connect call
	destroyed   chan struct{} // closed once, by Destroy
}

func newPlayer(m *Manager, node *Node, guild, voiceChannel Snowflake, textChannel *Snowflake, options PlayerOptions) *Player {
	return &Player{
		manager:        m,
		guildID:        guild,
		logger:         m.logger.WithField("guild_id", guild.String()),
		events:         make(chan PlayerEvent, 64),
		nodeID:         node.ID(),
		voiceChannelID: voiceChannel,
		textChannelID:  textChannel,
		options:        options,
		state:          PlayerDisconnected,
		queue:          newQueue(),
		queuePosition:  noQueuePosition,
		volume:         volumeDefault,
		destroyed:      make(chan struct{}),
	}
}

// GuildID returns this Player's guild.
func (p *Player) GuildID() Snowflake { return p.guildID }

// Events returns the channel this Player emits PlayerEvent values on.
func (p *Player) Events() <-chan PlayerEvent { return p.events }

// State returns the Player's current lifecycle state.
func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Volume returns the Player's current volume (0..1000).
func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Loop returns the Player's current loop mode.
func (p *Player) Loop() LoopMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loop
}

// QueuePosition returns the current queue index, or (0, false) if none.
func (p *Player) QueuePosition() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queuePosition == noQueuePosition {
		return 0, false
	}
	return p.queuePosition, true
}

// Queue returns a snapshot of the queue contents.
func (p *Player) Queue() []QueueItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Values()
}

// VoiceChannelID returns the voice channel this Player is attached to.
func (p *Player) VoiceChannelID() Snowflake {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voiceChannelID
}

// TrackPosition returns the last known playback position, or (0, false)
// when absent (spec.md §3: none whenever state < Playing and after
// TrackEnd).
func (p *Player) TrackPosition() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.trackPositionMs == nil {
		return 0, false
	}
	return *p.trackPositionMs, true
}

func (p *Player) nodeID_() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nodeID
}

// currentNode resolves the Player's Node by id through the Manager, never
// via a cached pointer (spec.md §9: "a stable index/id ... not a live
// reference, so Node destruction safely invalidates player bindings").
func (p *Player) currentNode() *Node {
	return p.manager.Node(p.nodeID_())
}

func (p *Player) emit(ev PlayerEvent) {
	ev.Player = p
	select {
	case p.events <- ev:
	default:
		p.logger.Warn("player event channel full, dropping event")
	}
}

// requireStateLocked checks state ≥ min, returning StateConflict otherwise.
// Must be called with p.mu held.
func (p *Player) requireStateLocked(min PlayerState) error {
	if p.state < min {
		return newErr(ErrStateConflict, "player state "+p.state.String()+" below required "+min.String())
	}
	return nil
}

// currentLocked returns the queue item at queuePosition, or nil. Must be
// called with p.mu held.
func (p *Player) currentLocked() QueueItem {
	if p.queuePosition == noQueuePosition {
		return nil
	}
	item, ok := p.queue.Get(p.queuePosition)
	if !ok {
		return nil
	}
	return item
}
