package lavakit

import (
	"net/url"
	"testing"
)

func testNodeConfig(host string, port int) NodeConfig {
	cfg := DefaultNodeConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.Password = "pw"
	cfg.SpawnMaxAttempts = 1
	return cfg
}

func newTestManager(t *testing.T, n int) (*Manager, *mockAdapter) {
	t.Helper()
	adapter := newMockAdapter(999)
	opts := DefaultManagerOptions()
	for i := 0; i < n; i++ {
		opts.Nodes = append(opts.Nodes, testNodeConfig("127.0.0.1", 20000+i))
	}
	m, err := NewManager(opts, adapter)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m, adapter
}

func TestNewManagerRequiresAdapter(t *testing.T) {
	opts := DefaultManagerOptions()
	opts.Nodes = []NodeConfig{testNodeConfig("127.0.0.1", 20000)}
	if _, err := NewManager(opts, nil); err == nil {
		t.Errorf("expected error with nil adapter")
	}
}

func TestManagerNodesIndexedByPosition(t *testing.T) {
	m, _ := newTestManager(t, 3)
	for i := 0; i < 3; i++ {
		if n := m.Node(i); n == nil || n.ID() != i {
			t.Errorf("Node(%d) = %v, want id %d", i, n, i)
		}
	}
}

func TestAvailableNodesSortsAscendingByLoad(t *testing.T) {
	m, _ := newTestManager(t, 3)

	loads := map[int]float64{0: 0.8, 1: 0.2, 2: 0.5}
	for id, load := range loads {
		n := m.Node(id)
		n.applyStats(statsFramePayload{CPU: statsCPU{Cores: 1, SystemLoad: load}})
		// force Running without a real socket: available_nodes only looks
		// at state, not the socket itself.
		n.setState(NodeRunning)
	}

	avail := m.AvailableNodes()
	if len(avail) != 3 {
		t.Fatalf("AvailableNodes() len = %d, want 3", len(avail))
	}
	if avail[0].ID() != 1 || avail[1].ID() != 2 || avail[2].ID() != 0 {
		ids := []int{avail[0].ID(), avail[1].ID(), avail[2].ID()}
		t.Errorf("AvailableNodes() order = %v, want [1 2 0]", ids)
	}
}

func TestAvailableNodesExcludesNonRunning(t *testing.T) {
	m, _ := newTestManager(t, 2)
	m.Node(0).setState(NodeRunning)
	// Node 1 stays Idle.

	avail := m.AvailableNodes()
	if len(avail) != 1 || avail[0].ID() != 0 {
		t.Errorf("AvailableNodes() = %v, want only node 0", avail)
	}
}

func TestCreatePlayerFailsWithNoRunningNodes(t *testing.T) {
	m, _ := newTestManager(t, 1)
	guild, _ := ParseSnowflake("100000000000000001")
	channel, _ := ParseSnowflake("100000000000000002")

	_, err := m.CreatePlayer(guild, channel, nil, DefaultPlayerOptions())
	kind, ok := KindOf(err)
	if !ok || kind != ErrNoNodesAvailable {
		t.Errorf("CreatePlayer() kind=%v ok=%v, want ErrNoNodesAvailable", kind, ok)
	}
}

func TestCreatePlayerReturnsExistingForSameGuild(t *testing.T) {
	m, _ := newTestManager(t, 1)
	m.Node(0).setState(NodeRunning)

	guild, _ := ParseSnowflake("100000000000000001")
	channel, _ := ParseSnowflake("100000000000000002")

	p1, err := m.CreatePlayer(guild, channel, nil, DefaultPlayerOptions())
	if err != nil {
		t.Fatalf("CreatePlayer() error = %v", err)
	}
	p2, err := m.CreatePlayer(guild, channel, nil, DefaultPlayerOptions())
	if err != nil {
		t.Fatalf("CreatePlayer() second call error = %v", err)
	}
	if p1 != p2 {
		t.Errorf("CreatePlayer() should return the same *Player for an existing guild")
	}
	if m.PlayerFor(guild) != p1 {
		t.Errorf("PlayerFor() should find the created player")
	}
}

func TestIsURLDetection(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/x": true,
		"http://example.com/x":  true,
		"some search terms":     false,
		"ytsearch:foo":          false,
	}
	for in, want := range cases {
		if got := isURL(in); got != want {
			t.Errorf("isURL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSearchIdentifierEncoding(t *testing.T) {
	// Mirrors spec.md §8 scenario 8: a URL query is sent verbatim, a plain
	// query is prefixed with "<source>search:".
	q := url.Values{}
	q.Set("identifier", "https://x/y")
	if got, want := q.Encode(), "identifier=https%3A%2F%2Fx%2Fy"; got != want {
		t.Errorf("url.Values encoding = %q, want %q", got, want)
	}

	q2 := url.Values{}
	q2.Set("identifier", string(SearchSourceYouTube)+"search:foo")
	if got, want := q2.Encode(), "identifier=ytsearch%3Afoo"; got != want {
		t.Errorf("url.Values encoding = %q, want %q", got, want)
	}
}
