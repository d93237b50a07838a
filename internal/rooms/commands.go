package rooms

import (
	"context"
	"fmt"
	"strconv"

	"roomkeeper/internal/audit"
	"roomkeeper/internal/platform"
)

// Commands is the command surface over tracked rooms. Every operation
// resolves the requester's current voice channel, requires it to be a tracked
// temporary room, and checks ownership. Administrators bypass the ownership
// check here, never inside the transfer protocol itself. All operations are
// idempotent.
type Commands struct {
	manager  *Manager
	store    *Store
	platform platform.Platform
	audit    *audit.Logger
}

func NewCommands(manager *Manager, store *Store, p platform.Platform, auditLogger *audit.Logger) *Commands {
	return &Commands{manager: manager, store: store, platform: p, audit: auditLogger}
}

func (c *Commands) Rename(ctx context.Context, requesterID, name string) error {
	room, err := c.resolveOwned(ctx, requesterID)
	if err != nil {
		return err
	}
	if err := c.platform.Rename(ctx, room.ChannelID, name); err != nil {
		return err
	}
	c.audit.Log(ctx, audit.LevelInfo, room.ChannelID, requesterID, "room_renamed", "name="+name)
	return nil
}

// SetLimit sets the room's user limit; 0 means unlimited. The range is
// validated before any platform call is made.
func (c *Commands) SetLimit(ctx context.Context, requesterID string, limit int) error {
	if limit < 0 || limit > 99 {
		return ErrInvalidLimit
	}
	room, err := c.resolveOwned(ctx, requesterID)
	if err != nil {
		return err
	}
	if err := c.platform.SetUserLimit(ctx, room.ChannelID, limit); err != nil {
		return err
	}
	c.audit.Log(ctx, audit.LevelInfo, room.ChannelID, requesterID, "room_limit_set", "limit="+strconv.Itoa(limit))
	return nil
}

func (c *Commands) Lock(ctx context.Context, requesterID string) error {
	room, err := c.resolveOwned(ctx, requesterID)
	if err != nil {
		return err
	}
	if err := c.platform.Lock(ctx, room.ChannelID); err != nil {
		return err
	}
	c.audit.Log(ctx, audit.LevelInfo, room.ChannelID, requesterID, "room_locked", "")
	return nil
}

func (c *Commands) Unlock(ctx context.Context, requesterID string) error {
	room, err := c.resolveOwned(ctx, requesterID)
	if err != nil {
		return err
	}
	if err := c.platform.Unlock(ctx, room.ChannelID); err != nil {
		return err
	}
	c.audit.Log(ctx, audit.LevelInfo, room.ChannelID, requesterID, "room_unlocked", "")
	return nil
}

// Transfer hands the requester's room to targetID. An administrator who is
// not the owner triggers the transfer on behalf of the recorded owner, so the
// protocol's requester-must-own precondition stays intact.
func (c *Commands) Transfer(ctx context.Context, requesterID, targetID string) error {
	room, err := c.resolve(ctx, requesterID)
	if err != nil {
		return err
	}
	if room.OwnerID == requesterID {
		return c.manager.Transfer(ctx, room.ChannelID, requesterID, targetID)
	}
	admin, err := c.platform.IsAdmin(ctx, requesterID)
	if err != nil {
		return fmt.Errorf("admin check: %w", err)
	}
	if !admin {
		return ErrNotOwner
	}
	return c.manager.Transfer(ctx, room.ChannelID, room.OwnerID, targetID)
}

// Info returns the requester's current room and its live member count.
func (c *Commands) Info(ctx context.Context, requesterID string) (Room, int, error) {
	room, err := c.resolve(ctx, requesterID)
	if err != nil {
		return Room{}, 0, err
	}
	members, err := c.platform.ChannelMembers(ctx, room.ChannelID)
	if err != nil {
		return Room{}, 0, fmt.Errorf("read room members: %w", err)
	}
	return room, len(members), nil
}

func (c *Commands) resolve(ctx context.Context, requesterID string) (Room, error) {
	channelID, err := c.platform.MemberVoiceChannel(ctx, requesterID)
	if err != nil {
		return Room{}, fmt.Errorf("voice state lookup: %w", err)
	}
	if channelID == "" {
		return Room{}, ErrNotInVoice
	}
	room, ok := c.store.Get(channelID)
	if !ok {
		return Room{}, ErrNotTemporaryRoom
	}
	return room, nil
}

func (c *Commands) resolveOwned(ctx context.Context, requesterID string) (Room, error) {
	room, err := c.resolve(ctx, requesterID)
	if err != nil {
		return Room{}, err
	}
	if room.OwnerID == requesterID {
		return room, nil
	}
	admin, err := c.platform.IsAdmin(ctx, requesterID)
	if err != nil {
		return Room{}, fmt.Errorf("admin check: %w", err)
	}
	if !admin {
		return Room{}, ErrNotOwner
	}
	return room, nil
}
