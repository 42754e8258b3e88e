package lavakit

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a lavakit error, so callers can switch on it
// without string-matching.
type Kind string

const (
	// Manager errors.
	ErrNoNodesAvailable Kind = "no_nodes_available"
	ErrNoResponseData   Kind = "no_response_data"
	ErrInvalidArgument  Kind = "invalid_argument"

	// Node errors.
	ErrNodeAlreadyConnecting  Kind = "node_already_connecting"
	ErrNodeInterruptedByKill  Kind = "node_interrupted_by_kill"
	ErrNodeClosedDuringInit   Kind = "node_closed_during_init"
	ErrNodeMaxSpawnAttempts   Kind = "node_max_spawn_attempts"
	ErrNodeSendWithoutSocket  Kind = "node_send_without_open_socket"
	ErrNodeRest               Kind = "node_rest_error"
	ErrNodeRestParse          Kind = "node_rest_parse_error"

	// Player errors.
	ErrPlayerAlreadyConnecting Kind = "player_already_connecting"
	ErrInvalidSeek             Kind = "invalid_seek"
	ErrInvalidSkipIndex        Kind = "invalid_skip_index"
	ErrMissingPermissions      Kind = "missing_permissions"
	ErrStateConflict           Kind = "state_conflict"
	ErrConnectionTimeout       Kind = "connection_timeout"
	ErrVolumeOutOfRange        Kind = "volume_out_of_range"
	ErrInvalidTrack            Kind = "invalid_track"
	ErrNoResults               Kind = "no_results"

	// ChatAdapter prerequisite errors.
	ErrGatewayUserUndefined Kind = "gateway_user_undefined"
)

// Error is the concrete error type returned by every lavakit operation that
// fails for a reason in the taxonomy above. Status holds the HTTP status
// code where a response was received: on ErrNodeRest for 4xx/5xx replies,
// and on ErrNodeRestParse when reading the response body failed.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Cause == nil {
		return string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("lavakit: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("lavakit: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, lavakit.NewError(kind, "")) match on Kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// NewError constructs an *Error of the given kind, useful with errors.Is.
func NewError(kind Kind, msg string) error {
	return newErr(kind, msg)
}

// KindOf returns the Kind of err if it is (or wraps) a *lavakit.Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
