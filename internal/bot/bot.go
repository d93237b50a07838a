package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"roomkeeper/internal/analytics"
	"roomkeeper/internal/audit"
	"roomkeeper/internal/config"
	"roomkeeper/internal/platform"
	"roomkeeper/internal/rooms"
	"roomkeeper/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	session   *discordgo.Session
	manager   *rooms.Manager
	commands  *rooms.Commands
	events    *storage.Store
	analytics *analytics.Service

	reconcileOnce sync.Once
}

func New(cfg config.Config, logger *zap.Logger, ownership *rooms.Store, events *storage.Store, auditLogger *audit.Logger, analyticsService *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildVoiceStates

	// Rooms land in the trigger channel's category unless one is configured.
	if cfg.CategoryID == "" {
		channel, err := session.Channel(cfg.TriggerChannelID)
		if err != nil {
			return nil, fmt.Errorf("resolve trigger channel: %w", err)
		}
		cfg.CategoryID = channel.ParentID
	}

	adapter := platform.NewDiscord(session, cfg.GuildID, logger)
	manager := rooms.NewManager(rooms.Config{
		TriggerChannelID: cfg.TriggerChannelID,
		CategoryID:       cfg.CategoryID,
		NameTemplate:     cfg.RoomNameTemplate,
		GraceDelay:       time.Duration(cfg.GraceDelaySeconds) * time.Second,
		DefaultUserLimit: cfg.DefaultUserLimit,
	}, adapter, ownership, rooms.NewScheduler(), auditLogger, logger)

	return &Bot{
		cfg:       cfg,
		logger:    logger,
		session:   session,
		manager:   manager,
		commands:  rooms.NewCommands(manager, ownership, adapter, auditLogger),
		events:    events,
		analytics: analyticsService,
	}, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onVoiceStateUpdate)
	b.session.AddHandler(b.onChannelDelete)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.startRetentionCleanup()

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
	go b.startupReconcile()
}

// startupReconcile runs the sweep once per process. The gateway re-emits
// Ready after every re-identify, and resetting the ownership store mid-session
// would orphan live rooms.
func (b *Bot) startupReconcile() {
	b.reconcileOnce.Do(func() {
		if err := b.manager.Reconcile(context.Background()); err != nil {
			b.logger.Error("startup reconciliation failed", zap.Error(err))
		}
	})
}

func (b *Bot) onVoiceStateUpdate(session *discordgo.Session, event *discordgo.VoiceStateUpdate) {
	_ = session
	if event.GuildID != b.cfg.GuildID || event.UserID == "" {
		return
	}
	previous := ""
	if event.BeforeUpdate != nil {
		previous = event.BeforeUpdate.ChannelID
	}
	b.manager.HandlePresenceUpdate(context.Background(), event.UserID, previous, event.ChannelID)
}

func (b *Bot) onChannelDelete(session *discordgo.Session, event *discordgo.ChannelDelete) {
	_ = session
	if event.Channel == nil || event.Channel.GuildID != b.cfg.GuildID {
		return
	}
	b.manager.HandleChannelDelete(context.Background(), event.Channel.ID)
}

func (b *Bot) startRetentionCleanup() {
	if b.cfg.RetentionDays <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := b.events.CleanupRoomEvents(context.Background(), b.cfg.RetentionDays); err != nil {
				b.logger.Warn("event cleanup failed", zap.Error(err))
			}
		}
	}()
}
