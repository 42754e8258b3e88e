// Package discordgo is lavakit's reference lavakit.ChatAdapter, built on
// github.com/bwmarrin/discordgo. It is the only place in the module that
// imports discordgo; everything else in lavakit talks to the gateway only
// through the ChatAdapter boundary (grounded on sgrbot's
// infrastructure.LavalinkAdapter, which plays the same role against
// disgolink).
package discordgo

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	dg "github.com/bwmarrin/discordgo"

	"github.com/lavakit-go/lavakit"
)

func unixMilliToRFC3339(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// Adapter implements lavakit.ChatAdapter over a single *discordgo.Session.
type Adapter struct {
	session *dg.Session

	mu         sync.Mutex
	manager    *lavakit.Manager
	sessionIDs map[lavakit.Snowflake]string // guild -> voice-gateway session id, from VOICE_STATE_UPDATE
}

// New wraps session. The caller must have already opened session (or be
// about to) — SubscribeVoiceUpdates registers handlers immediately but
// they only fire once the gateway connection is live.
func New(session *dg.Session) *Adapter {
	return &Adapter{
		session:    session,
		sessionIDs: make(map[lavakit.Snowflake]string),
	}
}

var _ lavakit.ChatAdapter = (*Adapter)(nil)

// BotID implements lavakit.ChatAdapter.
func (a *Adapter) BotID() (lavakit.Snowflake, error) {
	if a.session.State == nil || a.session.State.User == nil {
		return 0, lavakit.NewError(lavakit.ErrGatewayUserUndefined,"gateway not ready")
	}
	id, ok := lavakit.ParseSnowflake(a.session.State.User.ID)
	if !ok {
		return 0, lavakit.NewError(lavakit.ErrGatewayUserUndefined,"malformed bot user id")
	}
	return id, nil
}

// GuildShardSessionID implements lavakit.ChatAdapter. discordgo doesn't
// expose the *voice* session id directly; it arrives on each
// VOICE_STATE_UPDATE for the bot's own user, cached here (grounded on
// sgrbot's voiceEventBuffer, which holds the same field while waiting for
// the matching VOICE_SERVER_UPDATE).
func (a *Adapter) GuildShardSessionID(guild lavakit.Snowflake) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.sessionIDs[guild]
	if !ok {
		return "", fmt.Errorf("no voice session for guild %s yet", guild)
	}
	return id, nil
}

// HasPerms implements lavakit.ChatAdapter. REQUEST_TO_SPEAK has no
// corresponding Discord permission bit; any member who can VIEW_CHANNEL and
// CONNECT to a stage may request to speak, so it's reported whenever both
// are present.
func (a *Adapter) HasPerms(_ context.Context, guild lavakit.Snowflake, channel *lavakit.Snowflake) (lavakit.PermissionSet, error) {
	botID, err := a.BotID()
	if err != nil {
		return nil, err
	}

	var perms int64
	if channel != nil {
		perms, err = a.session.State.UserChannelPermissions(botID.String(), channel.String())
	} else {
		perms, err = a.session.State.UserGuildPermissions(botID.String(), guild.String())
	}
	if err != nil {
		return nil, fmt.Errorf("resolve permissions: %w", err)
	}

	set := lavakit.PermissionSet{}
	add := func(bit int64, p lavakit.Permission) {
		if perms&bit != 0 {
			set[p] = struct{}{}
		}
	}
	add(dg.PermissionViewChannel, lavakit.PermViewChannel)
	add(dg.PermissionVoiceConnect, lavakit.PermConnect)
	add(dg.PermissionVoiceSpeak, lavakit.PermSpeak)
	add(dg.PermissionVoiceMuteMembers, lavakit.PermMuteMembers)
	add(dg.PermissionSendMessages, lavakit.PermSendMessages)
	add(dg.PermissionEmbedLinks, lavakit.PermEmbedLinks)
	if set.Has(lavakit.PermViewChannel) && set.Has(lavakit.PermConnect) {
		set[lavakit.PermRequestToSpeak] = struct{}{}
	}
	return set, nil
}

// IsStage implements lavakit.ChatAdapter.
func (a *Adapter) IsStage(_ context.Context, channel lavakit.Snowflake) (bool, error) {
	ch, err := a.session.State.Channel(channel.String())
	if err != nil {
		ch, err = a.session.Channel(channel.String())
	}
	if err != nil {
		return false, fmt.Errorf("resolve channel: %w", err)
	}
	return ch.Type == dg.ChannelTypeGuildStageVoice, nil
}

// modifyCurrentUserVoiceStateBody is the Discord "Modify Current User
// Voice State" REST body. discordgo has no typed wrapper for this
// endpoint, so it's issued directly via Session.RequestWithBucketID,
// following the manual-request pattern discordgo itself uses internally
// for endpoints its typed API hasn't caught up to.
type modifyCurrentUserVoiceStateBody struct {
	ChannelID               string `json:"channel_id"`
	Suppress                *bool  `json:"suppress,omitempty"`
	RequestToSpeakTimestamp *string `json:"request_to_speak_timestamp,omitempty"`
}

// ModifyCurrentUserVoiceState implements lavakit.ChatAdapter.
func (a *Adapter) ModifyCurrentUserVoiceState(_ context.Context, guild lavakit.Snowflake, mutation lavakit.VoiceStateMutation) error {
	body := modifyCurrentUserVoiceStateBody{ChannelID: mutation.ChannelID.String()}
	if mutation.Suppress != nil {
		body.Suppress = mutation.Suppress
	}
	if mutation.RequestToSpeakTimestamp != nil {
		ts := unixMilliToRFC3339(*mutation.RequestToSpeakTimestamp)
		body.RequestToSpeakTimestamp = &ts
	}
	endpoint := dg.EndpointGuild(guild.String()) + "/voice-states/@me"
	_, err := a.session.RequestWithBucketID(http.MethodPatch, endpoint, body, endpoint)
	return err
}

// UpdateVoiceState implements lavakit.ChatAdapter, sending gateway opcode 4
// (grounded on sgrbot's LavalinkAdapter.JoinChannel/LeaveChannel, both of
// which call ChannelVoiceJoinManual).
func (a *Adapter) UpdateVoiceState(_ context.Context, guild lavakit.Snowflake, channel *lavakit.Snowflake, selfMute, selfDeaf bool) error {
	channelID := ""
	if channel != nil {
		channelID = channel.String()
	}
	return a.session.ChannelVoiceJoinManual(guild.String(), channelID, selfMute, selfDeaf)
}

// SubscribeVoiceUpdates implements lavakit.ChatAdapter.
func (a *Adapter) SubscribeVoiceUpdates(manager *lavakit.Manager) {
	a.mu.Lock()
	a.manager = manager
	a.mu.Unlock()

	a.session.AddHandler(a.onVoiceStateUpdate)
	a.session.AddHandler(a.onVoiceServerUpdate)
}

func (a *Adapter) onVoiceStateUpdate(_ *dg.Session, event *dg.VoiceStateUpdate) {
	guild, ok := lavakit.ParseSnowflake(event.GuildID)
	if !ok {
		return
	}
	user, ok := lavakit.ParseSnowflake(event.UserID)
	if !ok {
		return
	}

	botID, err := a.BotID()
	if err == nil && user == botID {
		a.mu.Lock()
		if event.ChannelID == "" {
			delete(a.sessionIDs, guild)
		} else {
			a.sessionIDs[guild] = event.SessionID
		}
		manager := a.manager
		a.mu.Unlock()

		if manager == nil {
			return
		}
		var channelID *lavakit.Snowflake
		if event.ChannelID != "" {
			if cid, ok := lavakit.ParseSnowflake(event.ChannelID); ok {
				channelID = &cid
			}
		}
		manager.HandleVoiceStateUpdate(lavakit.VoiceStateUpdatePayload{
			GuildID:   guild,
			UserID:    user,
			ChannelID: channelID,
			Suppress:  event.Suppress,
		})
		return
	}
}

func (a *Adapter) onVoiceServerUpdate(_ *dg.Session, event *dg.VoiceServerUpdate) {
	guild, ok := lavakit.ParseSnowflake(event.GuildID)
	if !ok {
		return
	}
	a.mu.Lock()
	manager := a.manager
	a.mu.Unlock()
	if manager == nil {
		return
	}
	manager.HandleVoiceServerUpdate(lavakit.VoiceServerUpdatePayload{
		GuildID:  guild,
		Token:    event.Token,
		Endpoint: event.Endpoint,
	})
}
