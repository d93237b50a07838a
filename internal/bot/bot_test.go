package bot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"roomkeeper/internal/audit"
	"roomkeeper/internal/rooms"

	"go.uber.org/zap"
)

// sweepCountingPlatform satisfies platform.Platform and counts category
// listings, the first call every reconciliation sweep makes.
type sweepCountingPlatform struct {
	sweeps int
}

func (p *sweepCountingPlatform) CreateRoomChannel(ctx context.Context, name, parentID, ownerID string, userLimit int) (string, error) {
	return "", nil
}
func (p *sweepCountingPlatform) DeleteChannel(ctx context.Context, channelID string) error { return nil }
func (p *sweepCountingPlatform) MoveMember(ctx context.Context, memberID, channelID string) error {
	return nil
}
func (p *sweepCountingPlatform) GrantOwner(ctx context.Context, channelID, memberID string) error {
	return nil
}
func (p *sweepCountingPlatform) RevokeOwner(ctx context.Context, channelID, memberID string) error {
	return nil
}
func (p *sweepCountingPlatform) Lock(ctx context.Context, channelID string) error   { return nil }
func (p *sweepCountingPlatform) Unlock(ctx context.Context, channelID string) error { return nil }
func (p *sweepCountingPlatform) Rename(ctx context.Context, channelID, name string) error {
	return nil
}
func (p *sweepCountingPlatform) SetUserLimit(ctx context.Context, channelID string, limit int) error {
	return nil
}
func (p *sweepCountingPlatform) ChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	return nil, nil
}
func (p *sweepCountingPlatform) MemberVoiceChannel(ctx context.Context, memberID string) (string, error) {
	return "", nil
}
func (p *sweepCountingPlatform) CategoryVoiceChannels(ctx context.Context, parentID string) ([]string, error) {
	p.sweeps++
	return nil, nil
}
func (p *sweepCountingPlatform) MemberDisplayName(ctx context.Context, memberID string) (string, error) {
	return memberID, nil
}
func (p *sweepCountingPlatform) IsAdmin(ctx context.Context, memberID string) (bool, error) {
	return false, nil
}

func TestStartupReconcileRunsOncePerProcess(t *testing.T) {
	store, err := rooms.Open(filepath.Join(t.TempDir(), "rooms.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	fp := &sweepCountingPlatform{}
	manager := rooms.NewManager(rooms.Config{
		TriggerChannelID: "trigger",
		CategoryID:       "cat",
		GraceDelay:       time.Second,
	}, fp, store, rooms.NewScheduler(), audit.NewLogger(nil, zap.NewNop()), zap.NewNop())

	b := &Bot{logger: zap.NewNop(), manager: manager}

	// The gateway re-emits Ready after every re-identify; only the first
	// one may reset the ownership store and sweep the category.
	b.startupReconcile()
	b.startupReconcile()

	if fp.sweeps != 1 {
		t.Fatalf("expected exactly one sweep, got %d", fp.sweeps)
	}
}
