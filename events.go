package lavakit

import "time"

// NodeEvent is the sealed set of values a Node emits upstream to its
// Manager. Exactly one field is meaningful per concrete event type below;
// NodeEventKind lets callers switch without a type assertion chain if they
// prefer.
type NodeEventKind string

const (
	NodeEventStateChanged     NodeEventKind = "state_changed"
	NodeEventPayloadReceived  NodeEventKind = "payload_received"
	NodeEventPayloadSent      NodeEventKind = "payload_sent"
)

// NodeEvent is sent on a Node's event channel, owned and drained
// exclusively by the Manager it belongs to (spec.md §9: ownership, not
// per-instance registration).
type NodeEvent struct {
	Kind    NodeEventKind
	Node    *Node
	State   NodeState     // valid when Kind == NodeEventStateChanged
	Payload []byte        // valid when Kind == NodeEventPayloadReceived
	Sent    string        // valid when Kind == NodeEventPayloadSent
}

// PlayerEventKind enumerates every event a Player can emit.
type PlayerEventKind string

const (
	PlayerEventVoiceConnected  PlayerEventKind = "voice_connected"
	PlayerEventVoiceMoved      PlayerEventKind = "voice_moved"
	PlayerEventTrackStart      PlayerEventKind = "track_start"
	PlayerEventTrackEnd        PlayerEventKind = "track_end"
	PlayerEventTrackException  PlayerEventKind = "track_exception"
	PlayerEventTrackStuck      PlayerEventKind = "track_stuck"
	PlayerEventWebSocketClosed PlayerEventKind = "websocket_closed"
	PlayerEventPaused          PlayerEventKind = "paused"
	PlayerEventResumed         PlayerEventKind = "resumed"
	PlayerEventDestroyed       PlayerEventKind = "destroyed"
	PlayerEventError           PlayerEventKind = "error"
)

// TrackEndReason is the Lavalink-defined reason a track stopped.
type TrackEndReason string

const (
	TrackEndFinished   TrackEndReason = "FINISHED"
	TrackEndLoadFailed TrackEndReason = "LOAD_FAILED"
	TrackEndStopped    TrackEndReason = "STOPPED"
	TrackEndReplaced   TrackEndReason = "REPLACED"
	TrackEndCleanup    TrackEndReason = "CLEANUP"
)

// TrackException carries TrackExceptionEvent's payload.
type TrackException struct {
	Message  string
	Severity string
	Cause    string
}

// PlayerEvent is sent on a Player's event channel.
type PlayerEvent struct {
	Kind   PlayerEventKind
	Player *Player

	Track *Track // TrackStart/TrackEnd/TrackException/TrackStuck

	EndReason TrackEndReason // TrackEnd
	Exception *TrackException // TrackException
	StuckThreshold time.Duration // TrackStuck

	CloseCode     int    // WebSocketClosed
	CloseReason   string // WebSocketClosed
	ByRemote      bool   // WebSocketClosed

	Reason string // Destroyed
	Err    error  // Error
}
