package lavakit

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var configValidator = validator.New()

// MoveBehavior controls what a Player does when the bot is moved to a
// different voice channel or loses/regains stage-speaker status.
type MoveBehavior string

const (
	MoveBehaviorDestroy MoveBehavior = "destroy"
	MoveBehaviorPause   MoveBehavior = "pause"
)

// ResumeConfig enables Lavalink session resuming across WebSocket
// reconnects.
type ResumeConfig struct {
	Key     string        `validate:"required"`
	Timeout time.Duration `validate:"gt=0"`
}

// NodeConfig describes a single Lavalink server connection. Immutable once
// passed to NewManager/a Node.
type NodeConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"required,gt=0,lte=65535"`
	Secure   bool
	Password string `validate:"required"`

	ClientName string

	Resume *ResumeConfig

	// SpawnMaxAttempts bounds the Node's reconnection loop.
	SpawnMaxAttempts int `validate:"gte=1"`
	// SpawnAttemptDelay is slept between spawn attempts.
	SpawnAttemptDelay time.Duration `validate:"gte=0"`

	DefaultRequestHeaders map[string]string
	DefaultRequestTimeout time.Duration `validate:"gte=0"`
}

// DefaultNodeConfig returns a NodeConfig with spec.md §6.3/§3 defaults
// filled in; callers still must set Host/Port/Password.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		Port:                  2333,
		ClientName:            "lavakit",
		SpawnMaxAttempts:      3,
		SpawnAttemptDelay:     5 * time.Second,
		DefaultRequestTimeout: 10 * time.Second,
	}
}

// Validate reports the first validation failure, wrapped as
// *Error{Kind: ErrInvalidArgument}.
func (c NodeConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return wrapErr(ErrInvalidArgument, "invalid node config", err)
	}
	if c.Resume != nil {
		if err := configValidator.Struct(c.Resume); err != nil {
			return wrapErr(ErrInvalidArgument, "invalid resume config", err)
		}
	}
	return nil
}

func (c NodeConfig) wsURL() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/", scheme, c.Host, c.Port)
}

func (c NodeConfig) httpURL(route string) string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, c.Host, c.Port, route)
}

// SearchSource is a default search provider prefix.
type SearchSource string

const (
	SearchSourceYouTube    SearchSource = "yt"
	SearchSourceSoundCloud SearchSource = "sc"
)

// LeastLoadSort selects which CPU load figure available_nodes() sorts by.
type LeastLoadSort string

const (
	LeastLoadSystem   LeastLoadSort = "system"
	LeastLoadLavalink LeastLoadSort = "lavalink"
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	ClientName    string
	DefaultSearch SearchSource
	LeastLoadSort LeastLoadSort
	Nodes         []NodeConfig `validate:"required,min=1,dive"`
	Logger        Logger
}

// DefaultManagerOptions returns defaults per spec.md §6.3; callers must
// still set Nodes.
func DefaultManagerOptions() ManagerOptions {
	return ManagerOptions{
		ClientName:    "lavakit",
		DefaultSearch: SearchSourceYouTube,
		LeastLoadSort: LeastLoadSystem,
	}
}

func (o ManagerOptions) Validate() error {
	if len(o.Nodes) == 0 {
		return newErr(ErrInvalidArgument, "at least one NodeConfig is required")
	}
	for i, nc := range o.Nodes {
		if err := nc.Validate(); err != nil {
			return wrapErr(ErrInvalidArgument, fmt.Sprintf("node config %d", i), err)
		}
	}
	return nil
}

// PlayerOptions configures a Player's voice-channel choreography.
type PlayerOptions struct {
	ConnectionTimeout time.Duration `validate:"gte=0"`
	SelfDeafen        bool
	SelfMute          bool
	BecomeSpeaker     bool
	MoveBehavior      MoveBehavior `validate:"omitempty,oneof=destroy pause"`
	StageMoveBehavior MoveBehavior `validate:"omitempty,oneof=destroy pause"`
}

// DefaultPlayerOptions returns defaults per spec.md §6.3.
func DefaultPlayerOptions() PlayerOptions {
	return PlayerOptions{
		ConnectionTimeout: 15 * time.Second,
		SelfDeafen:        true,
		SelfMute:          false,
		BecomeSpeaker:     true,
		MoveBehavior:      MoveBehaviorDestroy,
		StageMoveBehavior: MoveBehaviorPause,
	}
}

func (o PlayerOptions) Validate() error {
	if err := configValidator.Struct(o); err != nil {
		return wrapErr(ErrInvalidArgument, "invalid player options", err)
	}
	return nil
}
