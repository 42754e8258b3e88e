package lavakit

import (
	"context"
	"time"
)

// Connect attaches the Player to its configured voice channel (spec.md
// §4.3 "Connect protocol"). Must be called from Disconnected.
func (p *Player) Connect(ctx context.Context) error {
	p.mu.Lock()
	if p.state != PlayerDisconnected {
		p.mu.Unlock()
		return newErr(ErrStateConflict, "connect requires state Disconnected")
	}
	if p.connectWake != nil {
		p.mu.Unlock()
		return newErr(ErrPlayerAlreadyConnecting, "connect already in progress")
	}
	wake := make(chan struct{})
	p.connectWake = wake
	channel := p.voiceChannelID
	guild := p.guildID
	opts := p.options
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.connectWake == wake {
			p.connectWake = nil
		}
		p.mu.Unlock()
	}()

	perms, err := p.manager.adapter.HasPerms(ctx, guild, &channel)
	if err != nil {
		return err
	}
	if !perms.Has(PermViewChannel) || !perms.Has(PermConnect) || !perms.Has(PermSpeak) {
		return newErr(ErrMissingPermissions, "missing VIEW_CHANNEL/CONNECT/SPEAK")
	}

	isStage, err := p.manager.adapter.IsStage(ctx, channel)
	if err != nil {
		return err
	}
	canBecomeSpeaker := perms.Has(PermMuteMembers)
	if isStage && !canBecomeSpeaker && !perms.Has(PermRequestToSpeak) {
		return newErr(ErrMissingPermissions, "stage channel requires MUTE_MEMBERS or REQUEST_TO_SPEAK")
	}

	if err := p.manager.adapter.UpdateVoiceState(ctx, guild, &channel, false, opts.SelfDeafen); err != nil {
		return err
	}

	timeout := opts.ConnectionTimeout
	if timeout <= 0 {
		timeout = DefaultPlayerOptions().ConnectionTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-wake:
	case <-p.destroyed:
		return newErr(ErrStateConflict, "player destroyed while connecting")
	case <-timer.C:
		return newErr(ErrConnectionTimeout, "timed out waiting for voice state update")
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	p.isStage = isStage
	p.mu.Unlock()

	if isStage {
		wantSpeaker := opts.BecomeSpeaker && canBecomeSpeaker
		if wantSpeaker {
			err := p.manager.adapter.ModifyCurrentUserVoiceState(ctx, guild, VoiceStateMutation{
				ChannelID: channel,
				Suppress:  boolPtr(false),
			})
			p.mu.Lock()
			p.isSpeaker = err == nil
			p.mu.Unlock()
		} else {
			ts := time.Now().UnixMilli()
			_ = p.manager.adapter.ModifyCurrentUserVoiceState(ctx, guild, VoiceStateMutation{
				ChannelID:               channel,
				RequestToSpeakTimestamp: &ts,
			})
			p.mu.Lock()
			p.isSpeaker = false
			p.mu.Unlock()
		}
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }

// handleMove processes a gateway voice-state-update for this bot in this
// guild (spec.md §4.3 "Voice-move handling").
func (p *Player) handleMove(payload VoiceStateUpdatePayload) {
	p.mu.Lock()
	state := p.state
	voiceChannelID := p.voiceChannelID
	p.mu.Unlock()

	if state == PlayerDisconnected {
		if payload.ChannelID != nil && *payload.ChannelID == voiceChannelID {
			p.mu.Lock()
			p.state = PlayerConnected
			wake := p.connectWake
			p.mu.Unlock()
			if wake != nil {
				close(wake)
			}
			p.emit(PlayerEvent{Kind: PlayerEventVoiceConnected})
			return
		}
		_ = p.Destroy("Connected to incorrect channel")
		return
	}

	ctx := context.Background()

	if payload.ChannelID == nil {
		_ = p.Destroy("Disconnected from voice channel")
		return
	}

	if *payload.ChannelID != voiceChannelID {
		p.mu.Lock()
		p.voiceChannelID = *payload.ChannelID
		newChannel := p.voiceChannelID
		p.mu.Unlock()
		p.emit(PlayerEvent{Kind: PlayerEventVoiceMoved})

		perms, err := p.manager.adapter.HasPerms(ctx, p.guildID, &newChannel)
		if err != nil {
			_ = p.Destroy("Failed to re-check permissions after move: " + err.Error())
			return
		}
		if !perms.Has(PermViewChannel) || !perms.Has(PermConnect) || !perms.Has(PermSpeak) {
			_ = p.Destroy("Missing permissions after move")
			return
		}
		isStage, err := p.manager.adapter.IsStage(ctx, newChannel)
		if err == nil {
			if isStage && !perms.Has(PermMuteMembers) && !perms.Has(PermRequestToSpeak) {
				_ = p.Destroy("Missing stage permissions after move")
				return
			}
			p.mu.Lock()
			p.isStage = isStage
			p.mu.Unlock()
		}

		p.applyMoveBehavior(ctx)
	}

	p.handleStageSuppression(ctx, payload)
}

// applyMoveBehavior toggles pause/resume (or destroys) a Player that was
// just moved to a different voice channel, per options.MoveBehavior. This
// refines spec.md §4.3's voice-move handling to match the behavior spec.md
// §8 scenario 5 describes: moving away pauses, moving back resumes.
func (p *Player) applyMoveBehavior(ctx context.Context) {
	p.mu.Lock()
	behavior := p.options.MoveBehavior
	if behavior == "" {
		behavior = MoveBehaviorDestroy
	}
	state := p.state
	pausedByMove := p.sentPausedPlay && behavior == MoveBehaviorPause
	p.mu.Unlock()

	if behavior == MoveBehaviorDestroy {
		_ = p.Destroy("Moved to a different voice channel")
		return
	}

	// MoveBehaviorPause: toggle.
	if pausedByMove && state == PlayerPaused {
		_ = p.resumeTolerant()
		p.mu.Lock()
		p.sentPausedPlay = false
		p.mu.Unlock()
		return
	}
	if state == PlayerPlaying {
		_ = p.pauseTolerant()
		p.mu.Lock()
		p.sentPausedPlay = true
		p.mu.Unlock()
	}
}

// handleStageSuppression implements spec.md §4.3's stage suppress-flag
// transitions.
func (p *Player) handleStageSuppression(ctx context.Context, payload VoiceStateUpdatePayload) {
	p.mu.Lock()
	isStage := p.isStage
	wasSpeaker := p.isSpeaker
	guild := p.guildID
	channel := p.voiceChannelID
	stageBehavior := p.options.StageMoveBehavior
	if stageBehavior == "" {
		stageBehavior = MoveBehaviorPause
	}
	p.mu.Unlock()

	if !isStage {
		return
	}

	if payload.Suppress && wasSpeaker {
		p.mu.Lock()
		p.isSpeaker = false
		p.mu.Unlock()

		if stageBehavior == MoveBehaviorDestroy {
			_ = p.Destroy("Demoted to stage listener")
			return
		}
		_ = p.pauseTolerant()

		perms, err := p.manager.adapter.HasPerms(ctx, guild, &channel)
		if err != nil {
			return
		}
		if perms.Has(PermMuteMembers) {
			if err := p.manager.adapter.ModifyCurrentUserVoiceState(ctx, guild, VoiceStateMutation{
				ChannelID: channel,
				Suppress:  boolPtr(false),
			}); err == nil {
				p.mu.Lock()
				p.isSpeaker = true
				p.mu.Unlock()
				_ = p.resumeTolerant()
				return
			}
		}
		if perms.Has(PermRequestToSpeak) {
			ts := time.Now().UnixMilli()
			_ = p.manager.adapter.ModifyCurrentUserVoiceState(ctx, guild, VoiceStateMutation{
				ChannelID:               channel,
				RequestToSpeakTimestamp: &ts,
			})
		}
		return
	}

	if !payload.Suppress && !wasSpeaker {
		p.mu.Lock()
		p.isSpeaker = true
		p.mu.Unlock()
		_ = p.resumeTolerant()
	}
}

// pauseTolerant/resumeTolerant call Pause/Resume but swallow StateConflict:
// spec.md §4.3 describes the stage-demotion pause as "tolerant".
func (p *Player) pauseTolerant() error {
	err := p.Pause()
	if k, ok := KindOf(err); ok && k == ErrStateConflict {
		return nil
	}
	return err
}

func (p *Player) resumeTolerant() error {
	err := p.Resume()
	if k, ok := KindOf(err); ok && k == ErrStateConflict {
		return nil
	}
	return err
}
