package lavakit

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// SpawnOutcome is one Node's result from Manager.SpawnNodes.
type SpawnOutcome struct {
	Node *Node
	Err  error
}

// Manager owns a Manager's Node set (keyed by id) and Player set (keyed by
// guild), dispatches voice-gateway events and Node payloads to the right
// Player, and exposes load-routed search/decode (spec.md §4.2).
type Manager struct {
	options ManagerOptions
	adapter ChatAdapter
	logger  Logger

	nodesMu sync.RWMutex
	nodes   map[int]*Node

	players sync.Map // Snowflake -> *Player

	createMu sync.Mutex // serializes CreatePlayer per-guild races
}

// NewManager constructs a Manager: one Node per entry in options.Nodes, id
// equal to its 0-based index (spec.md §4.2). Subscribes to adapter voice
// events.
func NewManager(options ManagerOptions, adapter ChatAdapter) (*Manager, error) {
	if adapter == nil {
		return nil, newErr(ErrInvalidArgument, "adapter is required")
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	logger := options.Logger
	if logger == nil {
		logger = defaultLogger()
	}

	m := &Manager{
		options: options,
		adapter: adapter,
		logger:  logger,
		nodes:   make(map[int]*Node, len(options.Nodes)),
	}
	for i, nc := range options.Nodes {
		n := NewNode(i, nc, adapter, logger)
		m.nodes[i] = n
		go m.pumpNodeEvents(n)
	}
	adapter.SubscribeVoiceUpdates(m)
	return m, nil
}

// pumpNodeEvents forwards a Node's NodeEventPayloadReceived events to the
// Player for the guild named in the payload. This is the Manager-owned
// subscription spec.md §9 calls for, replacing per-instance callback
// registration on the Node.
func (m *Manager) pumpNodeEvents(n *Node) {
	for ev := range n.Events() {
		if ev.Kind != NodeEventPayloadReceived {
			continue
		}
		var base basePayload
		if err := json.Unmarshal(ev.Payload, &base); err != nil {
			continue
		}
		if base.GuildID == "" {
			continue
		}
		guild, ok := ParseSnowflake(base.GuildID)
		if !ok {
			continue
		}
		p := m.PlayerFor(guild)
		if p == nil {
			continue
		}
		p.handleNodePayload(base.Op, ev.Payload)
	}
}

// SpawnNodes invokes Spawn on every Node concurrently and awaits all.
func (m *Manager) SpawnNodes(ctx context.Context) []SpawnOutcome {
	m.nodesMu.RLock()
	nodes := make([]*Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, n)
	}
	m.nodesMu.RUnlock()

	outcomes := make([]SpawnOutcome, len(nodes))
	var wg sync.WaitGroup
	for i, n := range nodes {
		wg.Add(1)
		go func(i int, n *Node) {
			defer wg.Done()
			outcomes[i] = SpawnOutcome{Node: n, Err: n.Spawn(ctx)}
		}(i, n)
	}
	wg.Wait()
	return outcomes
}

// AvailableNodes returns Nodes in state Running, sorted ascending by
// selected-load/cores (spec.md §4.2 "least-load nodes"). The first element
// is the scheduling winner.
func (m *Manager) AvailableNodes() []*Node {
	m.nodesMu.RLock()
	defer m.nodesMu.RUnlock()

	out := make([]*Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		if n.State() == NodeRunning {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].selectedLoad(m.options.LeastLoadSort) < out[j].selectedLoad(m.options.LeastLoadSort)
	})
	return out
}

// Node returns the Node with the given id, or nil.
func (m *Manager) Node(id int) *Node {
	m.nodesMu.RLock()
	defer m.nodesMu.RUnlock()
	return m.nodes[id]
}

// Nodes returns a snapshot of every Node this Manager owns.
func (m *Manager) Nodes() []*Node {
	m.nodesMu.RLock()
	defer m.nodesMu.RUnlock()
	out := make([]*Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n)
	}
	return out
}

// RemoveNode kills and forgets a Node, destroying every Player bound to it
// (spec.md §3 invariant: "after Node destruction, every bound Player must be
// destroyed").
func (m *Manager) RemoveNode(id int) {
	m.nodesMu.Lock()
	n, ok := m.nodes[id]
	if ok {
		delete(m.nodes, id)
	}
	m.nodesMu.Unlock()
	if !ok {
		return
	}
	n.Kill(1000, "Node removed")

	m.players.Range(func(_, v interface{}) bool {
		p := v.(*Player)
		if p.nodeID_() == id {
			_ = p.Destroy("Node destroyed")
		}
		return true
	})
}

// PlayerFor returns the Player for guild, or nil.
func (m *Manager) PlayerFor(guild Snowflake) *Player {
	v, ok := m.players.Load(guild)
	if !ok {
		return nil
	}
	return v.(*Player)
}

// Players returns a snapshot of every Player this Manager owns.
func (m *Manager) Players() []*Player {
	out := []*Player{}
	m.players.Range(func(_, v interface{}) bool {
		out = append(out, v.(*Player))
		return true
	})
	return out
}

// CreatePlayer returns the existing Player for guild, or creates one bound
// to the least-loaded available Node (spec.md §4.2).
func (m *Manager) CreatePlayer(guild, voiceChannel Snowflake, textChannel *Snowflake, options PlayerOptions) (*Player, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()

	if existing := m.PlayerFor(guild); existing != nil {
		return existing, nil
	}

	avail := m.AvailableNodes()
	if len(avail) == 0 {
		return nil, newErr(ErrNoNodesAvailable, "no running nodes")
	}
	node := avail[0]

	p := newPlayer(m, node, guild, voiceChannel, textChannel, options)
	m.players.Store(guild, p)
	return p, nil
}

// removePlayer deregisters a Player. Called by Player.Destroy.
func (m *Manager) removePlayer(guild Snowflake) {
	m.players.Delete(guild)
}

// SearchResult is Manager.Search's mapped result (spec.md §4.2).
type SearchResult struct {
	LoadType     LoadType
	Tracks       []*Track
	PlaylistInfo *PlaylistInfo
	Exception    *SearchException
}

// LoadType is Lavalink's /loadtracks classification.
type LoadType string

const (
	LoadTypeTrack     LoadType = "TRACK_LOADED"
	LoadTypePlaylist  LoadType = "PLAYLIST_LOADED"
	LoadTypeSearch    LoadType = "SEARCH_RESULT"
	LoadTypeNoMatches LoadType = "NO_MATCHES"
	LoadTypeFailed    LoadType = "LOAD_FAILED"
)

// PlaylistInfo is populated when LoadType == LoadTypePlaylist.
type PlaylistInfo struct {
	Name           string
	SelectedTrack  *Track // nil if selectedTrack index was out of range
}

// SearchException is populated when LoadType == LoadTypeFailed.
type SearchException struct {
	Message  string
	Severity string
}

// Search routes a query to the least-loaded Node's /loadtracks endpoint
// (spec.md §4.2). query is sent as-is when it looks like a URL
// (http[s]://…); otherwise it's prefixed with "<source>search:".
func (m *Manager) Search(ctx context.Context, query string, requester interface{}, source SearchSource) (*SearchResult, error) {
	avail := m.AvailableNodes()
	if len(avail) == 0 {
		return nil, newErr(ErrNoNodesAvailable, "no running nodes")
	}
	node := avail[0]

	identifier := query
	if !isURL(query) {
		if source == "" {
			source = m.options.DefaultSearch
		}
		identifier = string(source) + "search:" + query
	}

	var resp loadTracksResponse
	q := url.Values{}
	q.Set("identifier", identifier)
	err := node.RequestJSON(ctx, "GET", "/loadtracks", RequestOptions{Query: q}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.LoadType == "" {
		return nil, newErr(ErrNoResponseData, "empty /loadtracks response")
	}

	tracks := make([]*Track, len(resp.Tracks))
	for i, rt := range resp.Tracks {
		tracks[i] = rt.toTrack(requester)
	}

	result := &SearchResult{LoadType: LoadType(resp.LoadType), Tracks: tracks}
	if resp.PlaylistInfo != nil {
		info := &PlaylistInfo{Name: resp.PlaylistInfo.Name}
		if resp.PlaylistInfo.SelectedTrack >= 0 && resp.PlaylistInfo.SelectedTrack < len(tracks) {
			info.SelectedTrack = tracks[resp.PlaylistInfo.SelectedTrack]
		}
		result.PlaylistInfo = info
	}
	if resp.Exception != nil {
		result.Exception = &SearchException{Message: resp.Exception.Message, Severity: resp.Exception.Severity}
	}
	return result, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// DecodeTracks decodes one or more encoded track strings back into Tracks,
// preserving order and re-attaching Encoded (spec.md §4.2).
func (m *Manager) DecodeTracks(ctx context.Context, encoded ...string) ([]*Track, error) {
	if len(encoded) == 0 {
		return nil, newErr(ErrInvalidArgument, "at least one encoded track is required")
	}
	avail := m.AvailableNodes()
	if len(avail) == 0 {
		return nil, newErr(ErrNoNodesAvailable, "no running nodes")
	}
	node := avail[0]

	if len(encoded) == 1 {
		var info rawTrackInfo
		q := url.Values{}
		q.Set("track", encoded[0])
		if err := node.RequestJSON(ctx, "GET", "/decodetrack", RequestOptions{Query: q}, &info); err != nil {
			return nil, err
		}
		rt := rawTrack{Encoded: encoded[0], Info: info}
		return []*Track{rt.toTrack(nil)}, nil
	}

	var infos []rawTrackInfo
	if err := node.RequestJSON(ctx, "POST", "/decodetracks", RequestOptions{Body: encoded}, &infos); err != nil {
		return nil, err
	}
	tracks := make([]*Track, len(infos))
	for i, info := range infos {
		enc := ""
		if i < len(encoded) {
			enc = encoded[i]
		}
		rt := rawTrack{Encoded: enc, Info: info}
		tracks[i] = rt.toTrack(nil)
	}
	return tracks, nil
}

// HandleVoiceServerUpdate forwards a VOICE_SERVER_UPDATE to the
// corresponding Player's Node as a voiceUpdate op (spec.md §4.2). Errors
// are swallowed: the gateway retransmits.
func (m *Manager) HandleVoiceServerUpdate(payload VoiceServerUpdatePayload) {
	p := m.PlayerFor(payload.GuildID)
	if p == nil {
		return
	}
	sessionID, err := m.adapter.GuildShardSessionID(payload.GuildID)
	if err != nil {
		m.logger.WithField("guild_id", payload.GuildID.String()).Warn("voice server update: no shard session yet: " + err.Error())
		return
	}
	node := p.currentNode()
	if node == nil {
		return
	}
	_ = node.Send(voiceUpdatePayload{
		Op:        opVoiceUpdate,
		GuildID:   payload.GuildID.String(),
		SessionID: sessionID,
		Event: voiceUpdateEvent{
			Token:    payload.Token,
			Endpoint: payload.Endpoint,
		},
	})
}

// HandleVoiceStateUpdate forwards a VOICE_STATE_UPDATE for the bot's own
// user to the corresponding Player (spec.md §4.2).
func (m *Manager) HandleVoiceStateUpdate(payload VoiceStateUpdatePayload) {
	p := m.PlayerFor(payload.GuildID)
	if p == nil {
		return
	}
	botID, err := m.adapter.BotID()
	if err != nil || payload.UserID != botID {
		return
	}
	p.handleMove(payload)
}
