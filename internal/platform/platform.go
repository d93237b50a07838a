// Package platform abstracts the chat platform operations the room
// lifecycle depends on, so the core can be tested against a fake.
package platform

import "context"

// Platform is the set of guild operations consumed by the room manager and
// command surface. Implementations target a single guild. DeleteChannel on a
// channel the platform no longer knows is a successful no-op.
type Platform interface {
	// CreateRoomChannel creates a voice channel under parentID with the
	// owner-elevated overwrite for ownerID and the default-member overwrite
	// for the everyone role already applied. A userLimit of 0 means
	// unlimited. Returns the new channel ID.
	CreateRoomChannel(ctx context.Context, name, parentID, ownerID string, userLimit int) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	MoveMember(ctx context.Context, memberID, channelID string) error

	GrantOwner(ctx context.Context, channelID, memberID string) error
	RevokeOwner(ctx context.Context, channelID, memberID string) error

	Lock(ctx context.Context, channelID string) error
	Unlock(ctx context.Context, channelID string) error
	Rename(ctx context.Context, channelID, name string) error
	SetUserLimit(ctx context.Context, channelID string, limit int) error

	ChannelMembers(ctx context.Context, channelID string) ([]string, error)
	MemberVoiceChannel(ctx context.Context, memberID string) (string, error)
	CategoryVoiceChannels(ctx context.Context, parentID string) ([]string, error)
	MemberDisplayName(ctx context.Context, memberID string) (string, error)
	IsAdmin(ctx context.Context, memberID string) (bool, error)
}
