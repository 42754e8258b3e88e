package lavakit

import (
	"context"
	"sync"
)

// mockAdapter is a minimal in-memory ChatAdapter used across tests. It never
// touches a real chat gateway; callers configure permissions/stage flags
// directly before exercising a Node/Manager/Player against it.
type mockAdapter struct {
	mu sync.Mutex

	botID    Snowflake
	botIDErr error

	sessionID string
	sessionIDErr error

	perms   PermissionSet
	permErr error

	isStage bool
	stageErr error

	updateVoiceStateCalls []mockVoiceStateUpdate
	mutationCalls         []mockVoiceStateMutation

	manager *Manager
}

type mockVoiceStateUpdate struct {
	Guild    Snowflake
	Channel  *Snowflake
	SelfMute bool
	SelfDeaf bool
}

type mockVoiceStateMutation struct {
	Guild    Snowflake
	Mutation VoiceStateMutation
}

func newMockAdapter(botID Snowflake) *mockAdapter {
	return &mockAdapter{
		botID:     botID,
		sessionID: "test-session",
		perms:     NewPermissionSet(PermViewChannel, PermConnect, PermSpeak, PermMuteMembers, PermRequestToSpeak),
	}
}

func (a *mockAdapter) BotID() (Snowflake, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.botIDErr != nil {
		return 0, a.botIDErr
	}
	return a.botID, nil
}

func (a *mockAdapter) GuildShardSessionID(Snowflake) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sessionIDErr != nil {
		return "", a.sessionIDErr
	}
	return a.sessionID, nil
}

func (a *mockAdapter) HasPerms(_ context.Context, _ Snowflake, _ *Snowflake) (PermissionSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.permErr != nil {
		return nil, a.permErr
	}
	return a.perms, nil
}

func (a *mockAdapter) IsStage(_ context.Context, _ Snowflake) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stageErr != nil {
		return false, a.stageErr
	}
	return a.isStage, nil
}

func (a *mockAdapter) ModifyCurrentUserVoiceState(_ context.Context, guild Snowflake, mutation VoiceStateMutation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mutationCalls = append(a.mutationCalls, mockVoiceStateMutation{Guild: guild, Mutation: mutation})
	return nil
}

func (a *mockAdapter) UpdateVoiceState(_ context.Context, guild Snowflake, channel *Snowflake, selfMute, selfDeaf bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updateVoiceStateCalls = append(a.updateVoiceStateCalls, mockVoiceStateUpdate{
		Guild: guild, Channel: channel, SelfMute: selfMute, SelfDeaf: selfDeaf,
	})
	return nil
}

func (a *mockAdapter) SubscribeVoiceUpdates(manager *Manager) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.manager = manager
}

var _ ChatAdapter = (*mockAdapter)(nil)
