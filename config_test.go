package lavakit

import "testing"

func TestNodeConfigValidate(t *testing.T) {
	valid := DefaultNodeConfig()
	valid.Host = "127.0.0.1"
	valid.Password = "pw"
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	missingHost := valid
	missingHost.Host = ""
	if err := missingHost.Validate(); err == nil {
		t.Errorf("expected error for missing host")
	}

	badPort := valid
	badPort.Port = 0
	if err := badPort.Validate(); err == nil {
		t.Errorf("expected error for port 0")
	}
}

func TestNodeConfigURLs(t *testing.T) {
	c := NodeConfig{Host: "lava.example.com", Port: 2333}
	if got, want := c.wsURL(), "ws://lava.example.com:2333/"; got != want {
		t.Errorf("wsURL() = %q, want %q", got, want)
	}
	if got, want := c.httpURL("/loadtracks"), "http://lava.example.com:2333/loadtracks"; got != want {
		t.Errorf("httpURL() = %q, want %q", got, want)
	}

	c.Secure = true
	if got, want := c.wsURL(), "wss://lava.example.com:2333/"; got != want {
		t.Errorf("wsURL() (secure) = %q, want %q", got, want)
	}
}

func TestManagerOptionsValidateRequiresNodes(t *testing.T) {
	opts := DefaultManagerOptions()
	if err := opts.Validate(); err == nil {
		t.Errorf("expected error with zero NodeConfigs")
	}

	opts.Nodes = []NodeConfig{{Host: "h", Port: 1, Password: "p", SpawnMaxAttempts: 1}}
	if err := opts.Validate(); err != nil {
		t.Errorf("expected valid options, got %v", err)
	}
}

func TestPlayerOptionsValidateRejectsBadMoveBehavior(t *testing.T) {
	opts := DefaultPlayerOptions()
	opts.MoveBehavior = "explode"
	if err := opts.Validate(); err == nil {
		t.Errorf("expected error for invalid MoveBehavior")
	}
}

func TestDefaultPlayerOptionsSplitMoveBehaviors(t *testing.T) {
	opts := DefaultPlayerOptions()
	if opts.MoveBehavior != MoveBehaviorDestroy {
		t.Errorf("MoveBehavior default = %v, want destroy", opts.MoveBehavior)
	}
	if opts.StageMoveBehavior != MoveBehaviorPause {
		t.Errorf("StageMoveBehavior default = %v, want pause", opts.StageMoveBehavior)
	}
}
