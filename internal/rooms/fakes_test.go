package rooms

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"roomkeeper/internal/audit"

	"go.uber.org/zap"
)

type fakeChannel struct {
	name   string
	parent string
	limit  int
	locked bool
	owners map[string]bool
}

// fakePlatform implements platform.Platform in memory. Every method bumps
// calls so tests can assert that precondition failures touch the platform
// not at all.
type fakePlatform struct {
	mu     sync.Mutex
	nextID int
	calls  int

	channels map[string]*fakeChannel
	voice    map[string]string
	names    map[string]string
	admins   map[string]bool
	deleted  []string

	createErr  error
	moveErr    error
	membersErr error
	grantErr   map[string]error
	revokeErr  map[string]error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		channels:  make(map[string]*fakeChannel),
		voice:     make(map[string]string),
		names:     make(map[string]string),
		admins:    make(map[string]bool),
		grantErr:  make(map[string]error),
		revokeErr: make(map[string]error),
	}
}

func (f *fakePlatform) addChannel(id, parent string) {
	f.channels[id] = &fakeChannel{name: id, parent: parent, owners: make(map[string]bool)}
}

func (f *fakePlatform) setVoice(member, channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if channel == "" {
		delete(f.voice, member)
		return
	}
	f.voice[member] = channel
}

func (f *fakePlatform) CreateRoomChannel(ctx context.Context, name, parentID, ownerID string, userLimit int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("room-%d", f.nextID)
	f.channels[id] = &fakeChannel{name: name, parent: parentID, limit: userLimit, owners: map[string]bool{ownerID: true}}
	return id, nil
}

func (f *fakePlatform) DeleteChannel(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if _, ok := f.channels[channelID]; !ok {
		return nil
	}
	delete(f.channels, channelID)
	for member, channel := range f.voice {
		if channel == channelID {
			delete(f.voice, member)
		}
	}
	f.deleted = append(f.deleted, channelID)
	return nil
}

func (f *fakePlatform) MoveMember(ctx context.Context, memberID, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.moveErr != nil {
		return f.moveErr
	}
	if _, ok := f.channels[channelID]; !ok {
		return fmt.Errorf("no such channel %s", channelID)
	}
	f.voice[memberID] = channelID
	return nil
}

func (f *fakePlatform) GrantOwner(ctx context.Context, channelID, memberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.grantErr[memberID]; err != nil {
		return err
	}
	channel, ok := f.channels[channelID]
	if !ok {
		return fmt.Errorf("no such channel %s", channelID)
	}
	channel.owners[memberID] = true
	return nil
}

func (f *fakePlatform) RevokeOwner(ctx context.Context, channelID, memberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.revokeErr[memberID]; err != nil {
		return err
	}
	if channel, ok := f.channels[channelID]; ok {
		delete(channel.owners, memberID)
	}
	return nil
}

func (f *fakePlatform) Lock(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	channel, ok := f.channels[channelID]
	if !ok {
		return fmt.Errorf("no such channel %s", channelID)
	}
	channel.locked = true
	return nil
}

func (f *fakePlatform) Unlock(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	channel, ok := f.channels[channelID]
	if !ok {
		return fmt.Errorf("no such channel %s", channelID)
	}
	channel.locked = false
	return nil
}

func (f *fakePlatform) Rename(ctx context.Context, channelID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	channel, ok := f.channels[channelID]
	if !ok {
		return fmt.Errorf("no such channel %s", channelID)
	}
	channel.name = name
	return nil
}

func (f *fakePlatform) SetUserLimit(ctx context.Context, channelID string, limit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	channel, ok := f.channels[channelID]
	if !ok {
		return fmt.Errorf("no such channel %s", channelID)
	}
	channel.limit = limit
	return nil
}

func (f *fakePlatform) ChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	var members []string
	for member, channel := range f.voice {
		if channel == channelID {
			members = append(members, member)
		}
	}
	sort.Strings(members)
	return members, nil
}

func (f *fakePlatform) MemberVoiceChannel(ctx context.Context, memberID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.voice[memberID], nil
}

func (f *fakePlatform) CategoryVoiceChannels(ctx context.Context, parentID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var ids []string
	for id, channel := range f.channels {
		if channel.parent == parentID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakePlatform) MemberDisplayName(ctx context.Context, memberID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if name, ok := f.names[memberID]; ok {
		return name, nil
	}
	return memberID, nil
}

func (f *fakePlatform) IsAdmin(ctx context.Context, memberID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.admins[memberID], nil
}

func (f *fakePlatform) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// manualScheduler collects callbacks so tests fire grace timers explicitly.
type manualScheduler struct {
	mu      sync.Mutex
	pending map[string]func()
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{pending: make(map[string]func())}
}

func (s *manualScheduler) Schedule(channelID string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[channelID] = fn
}

func (s *manualScheduler) Cancel(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, channelID)
}

func (s *manualScheduler) fire(channelID string) bool {
	s.mu.Lock()
	fn := s.pending[channelID]
	delete(s.pending, channelID)
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

func (s *manualScheduler) has(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[channelID]
	return ok
}

func newTestManager(t *testing.T) (*Manager, *fakePlatform, *manualScheduler, *Store) {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "rooms.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	fp := newFakePlatform()
	fp.addChannel("trigger", "cat")
	sched := newManualScheduler()
	manager := NewManager(Config{
		TriggerChannelID: "trigger",
		CategoryID:       "cat",
		NameTemplate:     "{name}'s room",
		GraceDelay:       time.Second,
	}, fp, store, sched, audit.NewLogger(nil, zap.NewNop()), zap.NewNop())
	return manager, fp, sched, store
}
