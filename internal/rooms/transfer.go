package rooms

import (
	"context"
	"fmt"

	"roomkeeper/internal/audit"

	"go.uber.org/zap"
)

// Transfer hands control of channelID from requesterID to targetID. The two
// permission edits and the store update succeed together or the store is left
// unchanged: after any error exactly one member, the original owner, holds
// the elevated set.
func (m *Manager) Transfer(ctx context.Context, channelID, requesterID, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.store.Get(channelID)
	if !ok {
		return ErrNotTemporaryRoom
	}
	if room.OwnerID != requesterID {
		return ErrNotOwner
	}
	if targetID == room.OwnerID {
		// Transferring to oneself changes nothing. Running the grant and
		// revoke edits here would strip the owner's own elevated set.
		return nil
	}

	members, err := m.channelMembers(ctx, channelID)
	if err != nil {
		return fmt.Errorf("read room members: %w", err)
	}
	present := false
	for _, id := range members {
		if id == targetID {
			present = true
			break
		}
	}
	if !present {
		return ErrTargetNotPresent
	}

	if err := m.platform.GrantOwner(ctx, channelID, targetID); err != nil {
		return fmt.Errorf("grant target permissions: %w", err)
	}
	if err := m.platform.RevokeOwner(ctx, channelID, requesterID); err != nil {
		if rbErr := m.platform.RevokeOwner(ctx, channelID, targetID); rbErr != nil {
			m.logger.Error("transfer rollback failed", zap.String("channel_id", channelID), zap.Error(rbErr))
		}
		return fmt.Errorf("revoke requester permissions: %w", err)
	}

	room.OwnerID = targetID
	if err := m.store.Put(room); err != nil {
		if rbErr := m.platform.GrantOwner(ctx, channelID, requesterID); rbErr != nil {
			m.logger.Error("transfer rollback failed", zap.String("channel_id", channelID), zap.Error(rbErr))
		}
		if rbErr := m.platform.RevokeOwner(ctx, channelID, targetID); rbErr != nil {
			m.logger.Error("transfer rollback failed", zap.String("channel_id", channelID), zap.Error(rbErr))
		}
		return fmt.Errorf("record new owner: %w", err)
	}

	m.audit.Log(ctx, audit.LevelInfo, channelID, requesterID, "room_transferred", "new_owner="+targetID)
	return nil
}
