package rooms

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"roomkeeper/internal/audit"
	"roomkeeper/internal/platform"

	"go.uber.org/zap"
)

const readRetryBackoff = 250 * time.Millisecond

type Config struct {
	// TriggerChannelID is the always-present voice channel whose join event
	// allocates a new room.
	TriggerChannelID string
	// CategoryID is the category new rooms are created under, normally the
	// trigger channel's own category.
	CategoryID string
	// NameTemplate names new rooms; "{name}" is replaced with the joining
	// member's display name.
	NameTemplate string
	// GraceDelay is the debounce window between a room becoming empty and
	// its deletion.
	GraceDelay time.Duration
	// DefaultUserLimit is applied to new rooms; 0 means unlimited.
	DefaultUserLimit int
}

// Manager owns the room lifecycle: it reacts to voice presence changes,
// creates and destroys temporary channels, and is (with the transfer path)
// the only writer of the ownership store. One mutex serializes presence
// handling so a join and a subsequent leave for the same member are always
// processed in arrival order.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	platform platform.Platform
	store    *Store
	sched    Scheduler
	audit    *audit.Logger
	logger   *zap.Logger
}

func NewManager(cfg Config, p platform.Platform, store *Store, sched Scheduler, auditLogger *audit.Logger, logger *zap.Logger) *Manager {
	if cfg.GraceDelay <= 0 {
		cfg.GraceDelay = time.Second
	}
	if cfg.NameTemplate == "" {
		cfg.NameTemplate = "{name}'s room"
	}
	if cfg.DefaultUserLimit < 0 || cfg.DefaultUserLimit > 99 {
		cfg.DefaultUserLimit = 0
	}
	return &Manager{
		cfg:      cfg,
		platform: p,
		store:    store,
		sched:    sched,
		audit:    auditLogger,
		logger:   logger,
	}
}

// HandlePresenceUpdate processes one voice presence change. Channel IDs are
// empty when the member was not connected before or disconnected entirely.
func (m *Manager) HandlePresenceUpdate(ctx context.Context, memberID, prevChannelID, newChannelID string) {
	if prevChannelID == newChannelID {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if newChannelID == m.cfg.TriggerChannelID {
		m.createRoom(ctx, memberID)
	} else if newChannelID != "" {
		if _, ok := m.store.Get(newChannelID); ok {
			// Rejoin before the grace timer fired: the room goes back to
			// active and the pending deletion is cancelled, not ignored.
			m.sched.Cancel(newChannelID)
		}
	}

	if prevChannelID == "" {
		return
	}
	if _, ok := m.store.Get(prevChannelID); !ok {
		return
	}
	members, err := m.channelMembers(ctx, prevChannelID)
	if err != nil {
		m.logger.Warn("member count read failed", zap.String("channel_id", prevChannelID), zap.Error(err))
		return
	}
	if len(members) == 0 {
		m.scheduleDeletion(prevChannelID)
	}
}

// createRoom allocates a channel for memberID and moves them into it. A
// failed move must not leave an orphaned channel, so the channel is deleted
// and the registration discarded on any failure past creation.
func (m *Manager) createRoom(ctx context.Context, memberID string) {
	displayName, err := m.platform.MemberDisplayName(ctx, memberID)
	if err != nil {
		m.logger.Warn("display name lookup failed", zap.String("member_id", memberID), zap.Error(err))
		displayName = memberID
	}
	name := roomName(m.cfg.NameTemplate, displayName)

	channelID, err := m.platform.CreateRoomChannel(ctx, name, m.cfg.CategoryID, memberID, m.cfg.DefaultUserLimit)
	if err != nil {
		m.logger.Error("room creation failed", zap.String("member_id", memberID), zap.Error(err))
		return
	}

	if err := m.platform.MoveMember(ctx, memberID, channelID); err != nil {
		m.logger.Warn("move into new room failed, rolling back",
			zap.String("member_id", memberID), zap.String("channel_id", channelID), zap.Error(err))
		m.rollbackChannel(ctx, channelID)
		return
	}

	room := Room{ChannelID: channelID, OwnerID: memberID, CreatedAt: time.Now()}
	if err := m.store.Put(room); err != nil {
		m.logger.Error("ownership registration failed, rolling back",
			zap.String("channel_id", channelID), zap.Error(err))
		m.rollbackChannel(ctx, channelID)
		return
	}

	m.audit.Log(ctx, audit.LevelInfo, channelID, memberID, "room_created", "name="+name)
}

func (m *Manager) rollbackChannel(ctx context.Context, channelID string) {
	if err := m.platform.DeleteChannel(ctx, channelID); err != nil {
		m.logger.Error("rollback delete failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (m *Manager) scheduleDeletion(channelID string) {
	m.sched.Schedule(channelID, m.cfg.GraceDelay, func() {
		m.finalizeDeletion(context.Background(), channelID)
	})
}

// finalizeDeletion runs at the grace deadline. The live member count is
// re-read at this moment; the room is only deleted if still empty. A timer
// firing after the room was reconciled away finds no store entry and does
// nothing.
func (m *Manager) finalizeDeletion(ctx context.Context, channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.store.Get(channelID); !ok {
		return
	}
	members, err := m.channelMembers(ctx, channelID)
	if err != nil {
		m.logger.Warn("deletion check read failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	if len(members) > 0 {
		return
	}
	if err := m.platform.DeleteChannel(ctx, channelID); err != nil {
		m.logger.Error("room deletion failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	if err := m.store.Remove(channelID); err != nil {
		// The channel is gone but the entry survived; the next
		// reconciliation sweep corrects it.
		m.logger.Error("ownership removal failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	m.audit.Log(ctx, audit.LevelInfo, channelID, "", "room_deleted", "empty after grace delay")
}

// HandleChannelDelete reacts to a room being deleted outside the manager,
// e.g. by an administrator. The grace timer is cancelled so it cannot fire
// against the vanished channel, and the stale entry is dropped.
func (m *Manager) HandleChannelDelete(ctx context.Context, channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.store.Get(channelID); !ok {
		return
	}
	m.sched.Cancel(channelID)
	if err := m.store.Remove(channelID); err != nil {
		m.logger.Error("ownership removal failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	m.audit.Log(ctx, audit.LevelInfo, channelID, "", "room_deleted", "channel removed externally")
}

// Reconcile is the startup sweep: the ownership store is cleared (metadata
// for rooms that survived a restart is lost) and empty voice channels left in
// the category by a previous crash are deleted. Failures are logged, never
// fatal.
func (m *Manager) Reconcile(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Reset(); err != nil {
		return fmt.Errorf("reset ownership store: %w", err)
	}

	channels, err := m.platform.CategoryVoiceChannels(ctx, m.cfg.CategoryID)
	if err != nil {
		if err := waitBackoff(ctx); err != nil {
			return err
		}
		channels, err = m.platform.CategoryVoiceChannels(ctx, m.cfg.CategoryID)
		if err != nil {
			return fmt.Errorf("list category channels: %w", err)
		}
	}

	swept := 0
	for _, channelID := range channels {
		if channelID == m.cfg.TriggerChannelID {
			continue
		}
		members, err := m.channelMembers(ctx, channelID)
		if err != nil {
			m.logger.Warn("reconcile member read failed", zap.String("channel_id", channelID), zap.Error(err))
			continue
		}
		if len(members) > 0 {
			continue
		}
		if err := m.platform.DeleteChannel(ctx, channelID); err != nil {
			m.logger.Warn("reconcile delete failed", zap.String("channel_id", channelID), zap.Error(err))
			continue
		}
		swept++
		m.audit.Log(ctx, audit.LevelInfo, channelID, "", "room_reconciled", "orphaned empty room deleted")
	}
	m.logger.Info("reconciliation sweep complete", zap.Int("checked", len(channels)), zap.Int("deleted", swept))
	return nil
}

// channelMembers reads the live member list, retrying the read once. Reads
// are idempotent; writes are never blindly retried.
func (m *Manager) channelMembers(ctx context.Context, channelID string) ([]string, error) {
	members, err := m.platform.ChannelMembers(ctx, channelID)
	if err == nil {
		return members, nil
	}
	if err := waitBackoff(ctx); err != nil {
		return nil, err
	}
	return m.platform.ChannelMembers(ctx, channelID)
}

// waitBackoff pauses before a retry, giving up when the context is done.
func waitBackoff(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(readRetryBackoff):
		return nil
	}
}

func roomName(template, displayName string) string {
	name := strings.ReplaceAll(template, "{name}", displayName)
	runes := []rune(name)
	if len(runes) > 100 {
		name = string(runes[:100])
	}
	return name
}
