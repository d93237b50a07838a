package rooms

import (
	"context"
	"errors"
	"testing"
)

func setupRoom(t *testing.T) (*Manager, *fakePlatform, *Store) {
	t.Helper()
	manager, fp, _, store := newTestManager(t)
	fp.setVoice("owner", "trigger")
	manager.HandlePresenceUpdate(context.Background(), "owner", "", "trigger")
	if _, ok := store.Get("room-1"); !ok {
		t.Fatalf("room setup failed")
	}
	return manager, fp, store
}

func TestTransferMovesElevatedSet(t *testing.T) {
	manager, fp, store := setupRoom(t)
	fp.setVoice("target", "room-1")

	if err := manager.Transfer(context.Background(), "room-1", "owner", "target"); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	channel := fp.channels["room-1"]
	if !channel.owners["target"] {
		t.Fatalf("expected target to hold the elevated set")
	}
	if channel.owners["owner"] {
		t.Fatalf("expected previous owner's elevated set revoked")
	}
	room, _ := store.Get("room-1")
	if room.OwnerID != "target" {
		t.Fatalf("expected recorded owner target, got %q", room.OwnerID)
	}
}

func TestSelfTransferKeepsElevatedSet(t *testing.T) {
	manager, fp, store := setupRoom(t)
	before := fp.callCount()

	if err := manager.Transfer(context.Background(), "room-1", "owner", "owner"); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	if !fp.channels["room-1"].owners["owner"] {
		t.Fatalf("expected owner to keep the elevated set")
	}
	if room, _ := store.Get("room-1"); room.OwnerID != "owner" {
		t.Fatalf("expected recorded owner unchanged, got %q", room.OwnerID)
	}
	if fp.callCount() != before {
		t.Fatalf("self transfer must not touch the platform")
	}
}

func TestTransferRequiresOwnership(t *testing.T) {
	manager, fp, _ := setupRoom(t)
	fp.setVoice("target", "room-1")
	fp.setVoice("other", "room-1")

	err := manager.Transfer(context.Background(), "room-1", "other", "target")
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestTransferRequiresTargetPresence(t *testing.T) {
	manager, fp, store := setupRoom(t)
	fp.setVoice("target", "trigger")

	err := manager.Transfer(context.Background(), "room-1", "owner", "target")
	if !errors.Is(err, ErrTargetNotPresent) {
		t.Fatalf("expected ErrTargetNotPresent, got %v", err)
	}
	if fp.channels["room-1"].owners["target"] {
		t.Fatalf("failed precondition must not grant anything")
	}
	if room, _ := store.Get("room-1"); room.OwnerID != "owner" {
		t.Fatalf("expected recorded owner unchanged, got %q", room.OwnerID)
	}
}

func TestTransferUntrackedChannel(t *testing.T) {
	manager, fp, _ := setupRoom(t)
	fp.addChannel("plain", "cat")
	fp.setVoice("owner", "plain")
	fp.setVoice("target", "plain")

	err := manager.Transfer(context.Background(), "plain", "owner", "target")
	if !errors.Is(err, ErrNotTemporaryRoom) {
		t.Fatalf("expected ErrNotTemporaryRoom, got %v", err)
	}
}

func TestTransferRevokeFailureRollsBack(t *testing.T) {
	manager, fp, store := setupRoom(t)
	fp.setVoice("target", "room-1")
	fp.revokeErr["owner"] = errors.New("permission edit rejected")

	err := manager.Transfer(context.Background(), "room-1", "owner", "target")
	if err == nil {
		t.Fatalf("expected transfer to fail")
	}

	channel := fp.channels["room-1"]
	if !channel.owners["owner"] {
		t.Fatalf("expected original owner to keep the elevated set")
	}
	if channel.owners["target"] {
		t.Fatalf("expected target's grant rolled back")
	}
	if room, _ := store.Get("room-1"); room.OwnerID != "owner" {
		t.Fatalf("expected recorded owner unchanged, got %q", room.OwnerID)
	}
}

func TestTransferGrantFailureLeavesStateIntact(t *testing.T) {
	manager, fp, store := setupRoom(t)
	fp.setVoice("target", "room-1")
	fp.grantErr["target"] = errors.New("permission edit rejected")

	err := manager.Transfer(context.Background(), "room-1", "owner", "target")
	if err == nil {
		t.Fatalf("expected transfer to fail")
	}
	if !fp.channels["room-1"].owners["owner"] {
		t.Fatalf("expected original owner to keep the elevated set")
	}
	if room, _ := store.Get("room-1"); room.OwnerID != "owner" {
		t.Fatalf("expected recorded owner unchanged, got %q", room.OwnerID)
	}
}
