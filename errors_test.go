package lavakit

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesOnKindOnly(t *testing.T) {
	err := newErr(ErrStateConflict, "one message")
	target := NewError(ErrStateConflict, "a completely different message")
	if !errors.Is(err, target) {
		t.Errorf("errors.Is should match on Kind alone")
	}

	other := NewError(ErrInvalidSeek, "")
	if errors.Is(err, other) {
		t.Errorf("errors.Is should not match a different Kind")
	}
}

func TestKindOf(t *testing.T) {
	err := newErr(ErrNoResults, "no results")
	kind, ok := KindOf(err)
	if !ok || kind != ErrNoResults {
		t.Errorf("KindOf() = %v, %v, want %v, true", kind, ok, ErrNoResults)
	}

	_, ok = KindOf(fmt.Errorf("plain error"))
	if ok {
		t.Errorf("KindOf() on a non-lavakit error should return false")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := wrapErr(ErrNodeRest, "request failed", cause)
	if !errors.Is(err, cause) {
		t.Errorf("wrapped error should unwrap to cause")
	}
}

func TestErrorErrorString(t *testing.T) {
	err := newErr(ErrInvalidTrack, "bad track")
	if err.Error() == "" {
		t.Errorf("Error() should not be empty")
	}
}
