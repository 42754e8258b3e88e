package lavakit

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// NodeState is a Node's lifecycle state (spec.md §3). Ordered by declaration
// only for readability; unlike PlayerState there is no "≥" guard on it.
type NodeState int

const (
	NodeIdle NodeState = iota
	NodeConnecting
	NodeRunning
	NodeDisconnected
)

func (s NodeState) String() string {
	switch s {
	case NodeIdle:
		return "idle"
	case NodeConnecting:
		return "connecting"
	case NodeRunning:
		return "running"
	case NodeDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Node owns one authenticated WebSocket session to a Lavalink server, its
// REST client, its stats snapshot, and its own reconnection loop.
type Node struct {
	id      int
	config  NodeConfig
	adapter ChatAdapter
	logger  Logger

	events chan NodeEvent

	httpClient *http.Client

	mu               sync.Mutex
	state            NodeState
	connecting       bool
	killed           bool
	stats            NodeStats
	hasEverConnected bool // drives whether Resume-Key is sent

	ws *nodeSocket
}

// NodeStats mirrors a Lavalink `stats` frame (spec.md §3). Updated
// exclusively on receipt of that frame.
type NodeStats struct {
	Players        int
	PlayingPlayers int
	Uptime         time.Duration
	Memory         NodeStatsMemory
	CPU            NodeStatsCPU
	FrameStats     *NodeStatsFrame
}

type NodeStatsMemory struct {
	Free, Used, Allocated, Reservable int64
}

type NodeStatsCPU struct {
	Cores        int
	SystemLoad   float64
	LavalinkLoad float64
}

type NodeStatsFrame struct {
	Sent, Nulled, Deficit int
}

// NewNode constructs a Node in state Idle. id must be unique within the
// owning Manager (spec.md §3). Not normally called directly — use
// NewManager.
func NewNode(id int, config NodeConfig, adapter ChatAdapter, logger Logger) *Node {
	if logger == nil {
		logger = defaultLogger()
	}
	if config.ClientName == "" {
		config.ClientName = "lavakit"
	}
	return &Node{
		id:         id,
		config:     config,
		adapter:    adapter,
		logger:     logger.WithField("node_id", id),
		events:     make(chan NodeEvent, 64),
		httpClient: &http.Client{},
	}
}

// ID returns this Node's id, unique within its Manager.
func (n *Node) ID() int { return n.id }

// Config returns this Node's (immutable) configuration.
func (n *Node) Config() NodeConfig { return n.config }

// Events returns the channel this Node emits NodeEvent values on. Owned and
// drained exclusively by the Manager that created the Node.
func (n *Node) Events() <-chan NodeEvent { return n.events }

// State returns the Node's current lifecycle state.
func (n *Node) State() NodeState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Stats returns the most recent stats snapshot.
func (n *Node) Stats() NodeStats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stats
}

func (n *Node) setState(s NodeState) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
	n.emit(NodeEvent{Kind: NodeEventStateChanged, Node: n, State: s})
}

func (n *Node) emit(ev NodeEvent) {
	select {
	case n.events <- ev:
	default:
		n.logger.Warn("event channel full, dropping event")
	}
}

// Spawn transitions Idle→Connecting and opens the WebSocket session,
// retrying up to config.SpawnMaxAttempts times with config.SpawnAttemptDelay
// between attempts (spec.md §4.1).
func (n *Node) Spawn(ctx context.Context) error {
	n.mu.Lock()
	if n.connecting {
		n.mu.Unlock()
		return newErr(ErrNodeAlreadyConnecting, "spawn already in progress")
	}
	n.connecting = true
	n.killed = false
	n.mu.Unlock()
	defer func() {
		n.mu.Lock()
		n.connecting = false
		n.mu.Unlock()
	}()

	n.setState(NodeConnecting)

	botID, err := n.adapter.BotID()
	if err != nil {
		n.setState(NodeIdle)
		return err
	}

	maxAttempts := n.config.SpawnMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if n.isKilled() {
			n.setState(NodeIdle)
			return newErr(ErrNodeInterruptedByKill, "kill observed during spawn")
		}

		ws, err := dialNodeSocket(n, botID)
		if err == nil {
			n.mu.Lock()
			n.ws = ws
			resume := n.config.Resume
			n.hasEverConnected = true
			n.mu.Unlock()

			go n.readLoop(ws)

			if resume != nil {
				_ = n.sendRaw(configureResumingPayload{
					Op:      opConfigureResuming,
					Key:     resume.Key,
					Timeout: int(resume.Timeout / time.Second),
				})
			}

			n.setState(NodeRunning)
			return nil
		}

		n.logger.WithField("attempt", attempt).Warn("spawn attempt failed: " + err.Error())

		if attempt == maxAttempts {
			n.setState(NodeIdle)
			return newErr(ErrNodeMaxSpawnAttempts, "exhausted spawn attempts")
		}

		if n.sleepOrKilled(n.config.SpawnAttemptDelay) {
			n.setState(NodeIdle)
			return newErr(ErrNodeInterruptedByKill, "kill observed during retry delay")
		}
	}
	// unreachable
	n.setState(NodeIdle)
	return newErr(ErrNodeMaxSpawnAttempts, "exhausted spawn attempts")
}

// sleepOrKilled sleeps d, returning true early if kill() was called.
func (n *Node) sleepOrKilled(d time.Duration) bool {
	if d <= 0 {
		return n.isKilled()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-timer.C:
			return n.isKilled()
		case <-tick.C:
			if n.isKilled() {
				return true
			}
		}
	}
}

func (n *Node) isKilled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.killed
}

// Kill closes the WebSocket (if open) with code/reason, transitions to
// Idle, and latches so any in-flight Spawn aborts with
// ErrNodeInterruptedByKill.
func (n *Node) Kill(code int, reason string) {
	if code == 0 {
		code = 1000
	}
	if reason == "" {
		reason = "Manual kill"
	}
	n.mu.Lock()
	n.killed = true
	ws := n.ws
	n.ws = nil
	n.mu.Unlock()

	if ws != nil {
		ws.close(code, reason)
	}
	n.setState(NodeIdle)
}

// Send serializes payload as JSON and writes it as a text frame. Requires
// the Node be Running.
func (n *Node) Send(payload interface{}) error {
	n.mu.Lock()
	state := n.state
	ws := n.ws
	n.mu.Unlock()
	if state != NodeRunning || ws == nil {
		return newErr(ErrNodeSendWithoutSocket, "node is not running")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return wrapErr(ErrInvalidArgument, "marshal payload", err)
	}
	if err := ws.send(data); err != nil {
		return err
	}
	n.emit(NodeEvent{Kind: NodeEventPayloadSent, Node: n, Sent: string(data)})
	return nil
}

// sendRaw is like Send but used internally during the connect handshake,
// before the Node has transitioned to Running.
func (n *Node) sendRaw(payload interface{}) error {
	n.mu.Lock()
	ws := n.ws
	n.mu.Unlock()
	if ws == nil {
		return newErr(ErrNodeSendWithoutSocket, "no socket")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return wrapErr(ErrInvalidArgument, "marshal payload", err)
	}
	return ws.send(data)
}

// onUnsolicitedClose is invoked by the read pump when the WS closes for any
// reason other than our own Kill()/explicit close. It transitions to
// Disconnected and re-enters the spawn loop — the sole reconnection path
// (spec.md §4.1).
func (n *Node) onUnsolicitedClose() {
	n.mu.Lock()
	if n.killed {
		n.mu.Unlock()
		return
	}
	n.ws = nil
	n.mu.Unlock()

	n.setState(NodeDisconnected)
	go func() {
		if err := n.Spawn(context.Background()); err != nil {
			n.logger.Error("auto-reconnect failed: " + err.Error())
		}
	}()
}

// readLoop drains decoded frames from ws and dispatches them.
func (n *Node) readLoop(ws *nodeSocket) {
	for data := range ws.recv {
		n.dispatch(data)
	}
	// recv channel closed: the socket went away.
	n.onUnsolicitedClose()
}

// dispatch decodes and routes one inbound frame (spec.md §4.1 message
// handling). Unknown opcodes are logged, never fatal.
func (n *Node) dispatch(data []byte) {
	var base basePayload
	if err := json.Unmarshal(data, &base); err != nil {
		n.logger.Warn("malformed frame: " + err.Error())
		return
	}

	switch base.Op {
	case inOpStats:
		var sf statsFramePayload
		if err := json.Unmarshal(data, &sf); err != nil {
			n.logger.Warn("malformed stats frame: " + err.Error())
			return
		}
		n.applyStats(sf)
	case inOpPlayerUpdate, inOpEvent:
		n.emit(NodeEvent{Kind: NodeEventPayloadReceived, Node: n, Payload: data})
	default:
		n.logger.WithField("op", base.Op).Warn("unknown opcode")
	}
}

func (n *Node) applyStats(sf statsFramePayload) {
	stats := NodeStats{
		Players:        sf.Players,
		PlayingPlayers: sf.PlayingPlayers,
		Uptime:         time.Duration(sf.Uptime) * time.Millisecond,
		Memory: NodeStatsMemory{
			Free:       sf.Memory.Free,
			Used:       sf.Memory.Used,
			Allocated:  sf.Memory.Allocated,
			Reservable: sf.Memory.Reservable,
		},
		CPU: NodeStatsCPU{
			Cores:        sf.CPU.Cores,
			SystemLoad:   sf.CPU.SystemLoad,
			LavalinkLoad: sf.CPU.LavalinkLoad,
		},
	}
	if sf.FrameStats != nil {
		stats.FrameStats = &NodeStatsFrame{
			Sent:    sf.FrameStats.Sent,
			Nulled:  sf.FrameStats.Nulled,
			Deficit: sf.FrameStats.Deficit,
		}
	}
	n.mu.Lock()
	n.stats = stats
	n.mu.Unlock()
}

// selectedLoad returns the CPU load figure available_nodes() sorts by,
// normalized per core. Nodes with no stats yet sort as 0 (spec.md §4.2).
func (n *Node) selectedLoad(sort LeastLoadSort) float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stats.CPU.Cores == 0 {
		return 0
	}
	load := n.stats.CPU.SystemLoad
	if sort == LeastLoadLavalink {
		load = n.stats.CPU.LavalinkLoad
	}
	return load / float64(n.stats.CPU.Cores)
}
