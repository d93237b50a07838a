package rooms

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Room is one tracked temporary voice channel. Member count is never stored;
// it is re-read from the platform at the moment of every lifecycle decision.
type Room struct {
	ChannelID string    `json:"channel_id"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the ownership store: channel ID to owner, mirrored to a flat JSON
// file on every mutation. Only the lifecycle manager and the transfer path
// mutate it; the command surface reads it to authorize actions.
type Store struct {
	mu    sync.Mutex
	path  string
	rooms map[string]Room
}

// Open loads the store file at path if it exists. A missing file is an empty
// store. The loaded contents are only trusted for startup reconciliation.
func Open(path string) (*Store, error) {
	s := &Store{path: path, rooms: make(map[string]Room)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if err := json.Unmarshal(data, &s.rooms); err != nil {
		return nil, fmt.Errorf("decode store %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) Get(channelID string) (Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[channelID]
	return room, ok
}

// Rooms returns all tracked rooms, ordered by channel ID.
func (s *Store) Rooms() []Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ChannelID < rooms[j].ChannelID })
	return rooms
}

func (s *Store) Put(room Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, had := s.rooms[room.ChannelID]
	s.rooms[room.ChannelID] = room
	if err := s.persist(); err != nil {
		if had {
			s.rooms[room.ChannelID] = previous
		} else {
			delete(s.rooms, room.ChannelID)
		}
		return err
	}
	return nil
}

func (s *Store) Remove(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, had := s.rooms[channelID]
	if !had {
		return nil
	}
	delete(s.rooms, channelID)
	if err := s.persist(); err != nil {
		s.rooms[channelID] = previous
		return err
	}
	return nil
}

// Reset drops every entry. Used by the startup reconciliation sweep, which
// rebuilds nothing: ownership of rooms that survived a restart is lost.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = make(map[string]Room)
	return s.persist()
}

// persist writes the full map to a uniquely named temp file in the same
// directory and renames it over the store file, so a crash mid-write never
// leaves a truncated store. Caller holds s.mu.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.rooms, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store dir: %w", err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(s.path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
