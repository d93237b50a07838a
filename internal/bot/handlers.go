package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"roomkeeper/internal/rooms"

	"github.com/bwmarrin/discordgo"
)

const (
	embedColorAction = 0x3B82F6
	embedColorError  = 0xEF4444
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := interaction.ApplicationCommandData()
	if data.Name != "room" {
		return
	}
	if interaction.GuildID == "" || interaction.Member == nil || interaction.Member.User == nil {
		b.respondEmbed(session, interaction, b.commandEmbed("Room", "This command only works in a server.", embedColorError, nil), true)
		return
	}

	ctx := context.Background()
	requesterID := interaction.Member.User.ID
	if len(data.Options) == 0 {
		b.respondEmbed(session, interaction, b.commandEmbed("Room", "Missing subcommand.", embedColorError, nil), true)
		return
	}
	sub := data.Options[0]

	switch sub.Name {
	case "rename":
		name := strings.TrimSpace(sub.Options[0].StringValue())
		if name == "" {
			b.respondEmbed(session, interaction, b.commandEmbed("Room", "The name cannot be empty.", embedColorError, nil), true)
			return
		}
		if err := b.commands.Rename(ctx, requesterID, name); err != nil {
			b.respondError(session, interaction, err)
			return
		}
		fields := []*discordgo.MessageEmbedField{{Name: "Name", Value: name, Inline: true}}
		b.respondEmbed(session, interaction, b.commandEmbed("Room", "Room renamed.", embedColorAction, fields), true)
	case "limit":
		limit := int(sub.Options[0].IntValue())
		if err := b.commands.SetLimit(ctx, requesterID, limit); err != nil {
			b.respondError(session, interaction, err)
			return
		}
		value := fmt.Sprintf("%d", limit)
		if limit == 0 {
			value = "unlimited"
		}
		fields := []*discordgo.MessageEmbedField{{Name: "Limit", Value: value, Inline: true}}
		b.respondEmbed(session, interaction, b.commandEmbed("Room", "User limit updated.", embedColorAction, fields), true)
	case "lock":
		if err := b.commands.Lock(ctx, requesterID); err != nil {
			b.respondError(session, interaction, err)
			return
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Room", "Room locked.", embedColorAction, nil), true)
	case "unlock":
		if err := b.commands.Unlock(ctx, requesterID); err != nil {
			b.respondError(session, interaction, err)
			return
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Room", "Room unlocked.", embedColorAction, nil), true)
	case "transfer":
		target := sub.Options[0].UserValue(session)
		if target == nil {
			b.respondEmbed(session, interaction, b.commandEmbed("Room", "Pick a member to transfer to.", embedColorError, nil), true)
			return
		}
		if err := b.commands.Transfer(ctx, requesterID, target.ID); err != nil {
			b.respondError(session, interaction, err)
			return
		}
		fields := []*discordgo.MessageEmbedField{{Name: "New owner", Value: "<@" + target.ID + ">", Inline: true}}
		b.respondEmbed(session, interaction, b.commandEmbed("Room", "Ownership transferred.", embedColorAction, fields), true)
	case "info":
		room, count, err := b.commands.Info(ctx, requesterID)
		if err != nil {
			b.respondError(session, interaction, err)
			return
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Owner", Value: "<@" + room.OwnerID + ">", Inline: true},
			{Name: "Members", Value: fmt.Sprintf("%d", count), Inline: true},
			{Name: "Created", Value: room.CreatedAt.Format(time.RFC3339), Inline: true},
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Room", "Your current room.", embedColorAction, fields), true)
	case "stats":
		period := sub.Options[0].StringValue()
		start := time.Now().Add(-24 * time.Hour)
		if period == "week" {
			start = time.Now().Add(-7 * 24 * time.Hour)
		}
		report, err := b.analytics.Report(ctx, start)
		if err != nil {
			b.respondEmbed(session, interaction, b.commandEmbed("Room", "Report unavailable.", embedColorError, nil), true)
			return
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Total", Value: fmt.Sprintf("%d", report.Total), Inline: true},
			{Name: "Breakdown", Value: formatBreakdown(report.ByEvent), Inline: false},
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Room", "Activity since "+start.Format(time.RFC3339), embedColorAction, fields), true)
	default:
		b.respondEmbed(session, interaction, b.commandEmbed("Room", "Unknown subcommand.", embedColorError, nil), true)
	}
}

// respondError translates the command surface's typed errors into short
// user-facing messages.
func (b *Bot) respondError(session *discordgo.Session, interaction *discordgo.InteractionCreate, err error) {
	message := "Something went wrong, try again."
	switch {
	case errors.Is(err, rooms.ErrNotInVoice):
		message = "Join a voice channel first."
	case errors.Is(err, rooms.ErrNotTemporaryRoom):
		message = "You are not in a temporary room."
	case errors.Is(err, rooms.ErrNotOwner):
		message = "Only the room owner can do that."
	case errors.Is(err, rooms.ErrTargetNotPresent):
		message = "That member is not in your room."
	case errors.Is(err, rooms.ErrInvalidLimit):
		message = "The user limit must be between 0 and 99."
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Room", message, embedColorError, nil), true)
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func formatBreakdown(byEvent map[string]int) string {
	if len(byEvent) == 0 {
		return "none"
	}
	names := make([]string, 0, len(byEvent))
	for name := range byEvent {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %d", name, byEvent[name]))
	}
	return strings.Join(lines, "\n")
}
