package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// The two named permission sets applied to temporary rooms. The owner set is
// granted to exactly one member at a time; the member set is the everyone
// role's overwrite while the room is unlocked.
const (
	ownerAllow = discordgo.PermissionManageChannels |
		discordgo.PermissionVoiceMoveMembers |
		discordgo.PermissionVoiceMuteMembers |
		discordgo.PermissionVoiceDeafenMembers |
		discordgo.PermissionViewChannel |
		discordgo.PermissionVoiceConnect

	memberAllow = discordgo.PermissionViewChannel | discordgo.PermissionVoiceConnect
)

// Discord implements Platform over a discordgo session for a single guild.
type Discord struct {
	session *discordgo.Session
	guildID string
	logger  *zap.Logger
}

func NewDiscord(session *discordgo.Session, guildID string, logger *zap.Logger) *Discord {
	return &Discord{session: session, guildID: guildID, logger: logger}
}

func (d *Discord) CreateRoomChannel(ctx context.Context, name, parentID, ownerID string, userLimit int) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		{
			ID:    ownerID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: ownerAllow,
		},
		{
			ID:    d.guildID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: memberAllow,
		},
	}
	channel, err := d.session.GuildChannelCreateComplex(d.guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildVoice,
		ParentID:             parentID,
		UserLimit:            userLimit,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create voice channel: %w", err)
	}
	return channel.ID, nil
}

func (d *Discord) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := d.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	if err != nil && !isUnknownChannel(err) {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}

func (d *Discord) MoveMember(ctx context.Context, memberID, channelID string) error {
	if err := d.session.GuildMemberMove(d.guildID, memberID, &channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("move member: %w", err)
	}
	return nil
}

func (d *Discord) GrantOwner(ctx context.Context, channelID, memberID string) error {
	err := d.session.ChannelPermissionSet(channelID, memberID, discordgo.PermissionOverwriteTypeMember, ownerAllow, 0, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("grant owner permissions: %w", err)
	}
	return nil
}

func (d *Discord) RevokeOwner(ctx context.Context, channelID, memberID string) error {
	err := d.session.ChannelPermissionDelete(channelID, memberID, discordgo.WithContext(ctx))
	if err != nil && !isUnknownChannel(err) {
		return fmt.Errorf("revoke owner permissions: %w", err)
	}
	return nil
}

func (d *Discord) Lock(ctx context.Context, channelID string) error {
	err := d.session.ChannelPermissionSet(channelID, d.guildID, discordgo.PermissionOverwriteTypeRole,
		discordgo.PermissionViewChannel, discordgo.PermissionVoiceConnect, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("lock channel: %w", err)
	}
	return nil
}

func (d *Discord) Unlock(ctx context.Context, channelID string) error {
	err := d.session.ChannelPermissionDelete(channelID, d.guildID, discordgo.WithContext(ctx))
	if err != nil && !isUnknownChannel(err) {
		return fmt.Errorf("unlock channel: %w", err)
	}
	return nil
}

func (d *Discord) Rename(ctx context.Context, channelID, name string) error {
	_, err := d.session.ChannelEditComplex(channelID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("rename channel: %w", err)
	}
	return nil
}

// userLimitBody carries user_limit without omitempty. ChannelEdit drops the
// field at zero, and zero is exactly the value that clears an existing limit.
type userLimitBody struct {
	UserLimit int `json:"user_limit"`
}

func (d *Discord) SetUserLimit(ctx context.Context, channelID string, limit int) error {
	endpoint := discordgo.EndpointChannel(channelID)
	_, err := d.session.RequestWithBucketID("PATCH", endpoint, userLimitBody{UserLimit: limit}, endpoint, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("set user limit: %w", err)
	}
	return nil
}

func (d *Discord) ChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	_ = ctx
	guild, err := d.session.State.Guild(d.guildID)
	if err != nil {
		return nil, fmt.Errorf("guild state: %w", err)
	}
	var members []string
	for _, state := range guild.VoiceStates {
		if state != nil && state.ChannelID == channelID {
			members = append(members, state.UserID)
		}
	}
	return members, nil
}

func (d *Discord) MemberVoiceChannel(ctx context.Context, memberID string) (string, error) {
	_ = ctx
	guild, err := d.session.State.Guild(d.guildID)
	if err != nil {
		return "", fmt.Errorf("guild state: %w", err)
	}
	for _, state := range guild.VoiceStates {
		if state != nil && state.UserID == memberID {
			return state.ChannelID, nil
		}
	}
	return "", nil
}

func (d *Discord) CategoryVoiceChannels(ctx context.Context, parentID string) ([]string, error) {
	channels, err := d.session.GuildChannels(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("guild channels: %w", err)
	}
	var ids []string
	for _, channel := range channels {
		if channel == nil || channel.Type != discordgo.ChannelTypeGuildVoice {
			continue
		}
		if parentID != "" && channel.ParentID != parentID {
			continue
		}
		ids = append(ids, channel.ID)
	}
	return ids, nil
}

func (d *Discord) MemberDisplayName(ctx context.Context, memberID string) (string, error) {
	member := d.member(ctx, memberID)
	if member == nil {
		return "", fmt.Errorf("member %s not found", memberID)
	}
	if member.Nick != "" {
		return member.Nick, nil
	}
	if member.User != nil && member.User.GlobalName != "" {
		return member.User.GlobalName, nil
	}
	if member.User != nil {
		return member.User.Username, nil
	}
	return "", fmt.Errorf("member %s has no user", memberID)
}

func (d *Discord) IsAdmin(ctx context.Context, memberID string) (bool, error) {
	guild, err := d.session.State.Guild(d.guildID)
	if err != nil || guild == nil {
		guild, err = d.session.Guild(d.guildID, discordgo.WithContext(ctx))
		if err != nil {
			return false, fmt.Errorf("guild lookup: %w", err)
		}
	}
	if guild.OwnerID == memberID {
		return true, nil
	}

	member := d.member(ctx, memberID)
	if member == nil {
		return false, nil
	}
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
	}
	perms := int64(0)
	if role := roleMap[guild.ID]; role != nil {
		perms |= role.Permissions
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	return perms&discordgo.PermissionAdministrator != 0, nil
}

func (d *Discord) member(ctx context.Context, memberID string) *discordgo.Member {
	member, err := d.session.State.Member(d.guildID, memberID)
	if err == nil && member != nil {
		return member
	}
	member, err = d.session.GuildMember(d.guildID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		d.logger.Debug("member lookup failed", zap.String("member_id", memberID), zap.Error(err))
		return nil
	}
	return member
}

func isUnknownChannel(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == discordgo.ErrCodeUnknownChannel
	}
	return false
}
