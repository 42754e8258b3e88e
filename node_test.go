package lavakit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{}

// newEchoWSServer starts an httptest server that upgrades every connection
// and otherwise does nothing but keep it open, mirroring the bare-minimum
// Lavalink handshake a Node.Spawn needs to reach Running.
func newEchoWSServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					conn.Close()
					return
				}
			}
		}()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func nodeConfigForServer(t *testing.T, srv *httptest.Server) NodeConfig {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}
	host, portStr, err := splitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host/port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	cfg := DefaultNodeConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.Password = "pw"
	cfg.SpawnMaxAttempts = 1
	return cfg
}

func splitHostPort(hostport string) (string, string, error) {
	idx := strings.LastIndex(hostport, ":")
	if idx < 0 {
		return hostport, "", nil
	}
	return hostport[:idx], hostport[idx+1:], nil
}

func TestNodeSpawnReachesRunning(t *testing.T) {
	srv := newEchoWSServer(t)
	cfg := nodeConfigForServer(t, srv)
	adapter := newMockAdapter(123)
	n := NewNode(0, cfg, adapter, nil)

	var states []NodeState
	done := make(chan struct{})
	go func() {
		for ev := range n.Events() {
			if ev.Kind == NodeEventStateChanged {
				states = append(states, ev.State)
				if ev.State == NodeRunning {
					close(done)
					return
				}
			}
		}
	}()

	if err := n.Spawn(context.Background()); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Running state event")
	}

	if n.State() != NodeRunning {
		t.Fatalf("State() = %v, want Running", n.State())
	}
	if len(states) < 2 || states[0] != NodeConnecting {
		t.Errorf("states = %v, want to start with Connecting", states)
	}
}

func TestNodeSendRequiresRunning(t *testing.T) {
	adapter := newMockAdapter(123)
	cfg := DefaultNodeConfig()
	cfg.Host, cfg.Password = "127.0.0.1", "pw"
	n := NewNode(0, cfg, adapter, nil)

	err := n.Send(map[string]string{"op": "stop"})
	kind, ok := KindOf(err)
	if !ok || kind != ErrNodeSendWithoutSocket {
		t.Errorf("Send() on idle node: kind=%v ok=%v, want ErrNodeSendWithoutSocket", kind, ok)
	}
}

func TestNodeSpawnAlreadyConnecting(t *testing.T) {
	adapter := newMockAdapter(123)
	cfg := DefaultNodeConfig()
	cfg.Host, cfg.Password = "127.0.0.1", "pw"
	cfg.Port = 1 // unroutable low port, spawn will block retry-sleeping
	cfg.SpawnMaxAttempts = 2
	cfg.SpawnAttemptDelay = 200 * time.Millisecond
	n := NewNode(0, cfg, adapter, nil)

	go func() { _ = n.Spawn(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	err := n.Spawn(context.Background())
	kind, ok := KindOf(err)
	if !ok || kind != ErrNodeAlreadyConnecting {
		t.Errorf("concurrent Spawn(): kind=%v ok=%v, want ErrNodeAlreadyConnecting", kind, ok)
	}
}

func TestNodeSpawnBoundedAttempts(t *testing.T) {
	adapter := newMockAdapter(123)
	cfg := DefaultNodeConfig()
	cfg.Host, cfg.Password = "127.0.0.1", "pw"
	cfg.Port = 1
	cfg.SpawnMaxAttempts = 2
	cfg.SpawnAttemptDelay = 10 * time.Millisecond
	n := NewNode(0, cfg, adapter, nil)

	err := n.Spawn(context.Background())
	kind, ok := KindOf(err)
	if !ok || kind != ErrNodeMaxSpawnAttempts {
		t.Errorf("Spawn() against unreachable host: kind=%v ok=%v, want ErrNodeMaxSpawnAttempts", kind, ok)
	}
	if n.State() != NodeIdle {
		t.Errorf("State() after exhausted spawn = %v, want Idle", n.State())
	}
}

func TestNodeKillInterruptsSpawn(t *testing.T) {
	adapter := newMockAdapter(123)
	cfg := DefaultNodeConfig()
	cfg.Host, cfg.Password = "127.0.0.1", "pw"
	cfg.Port = 1
	cfg.SpawnMaxAttempts = 5
	cfg.SpawnAttemptDelay = 2 * time.Second
	n := NewNode(0, cfg, adapter, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- n.Spawn(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	n.Kill(1000, "test kill")

	select {
	case err := <-errCh:
		kind, ok := KindOf(err)
		if !ok || kind != ErrNodeInterruptedByKill {
			t.Errorf("Spawn() after Kill: kind=%v ok=%v, want ErrNodeInterruptedByKill", kind, ok)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for Spawn to return after Kill")
	}
}

func TestNodeSelectedLoadZeroWithoutStats(t *testing.T) {
	adapter := newMockAdapter(123)
	cfg := DefaultNodeConfig()
	cfg.Host, cfg.Password = "127.0.0.1", "pw"
	n := NewNode(0, cfg, adapter, nil)

	if got := n.selectedLoad(LeastLoadSystem); got != 0 {
		t.Errorf("selectedLoad() with no stats = %v, want 0", got)
	}
}

func TestNodeApplyStatsDrivesSelectedLoad(t *testing.T) {
	adapter := newMockAdapter(123)
	cfg := DefaultNodeConfig()
	cfg.Host, cfg.Password = "127.0.0.1", "pw"
	n := NewNode(0, cfg, adapter, nil)

	n.applyStats(statsFramePayload{
		Players: 1, PlayingPlayers: 1, Uptime: 1000,
		CPU: statsCPU{Cores: 4, SystemLoad: 2.0, LavalinkLoad: 1.0},
	})

	if got, want := n.selectedLoad(LeastLoadSystem), 0.5; got != want {
		t.Errorf("selectedLoad(system) = %v, want %v", got, want)
	}
	if got, want := n.selectedLoad(LeastLoadLavalink), 0.25; got != want {
		t.Errorf("selectedLoad(lavalink) = %v, want %v", got, want)
	}
}
