package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store persists the room event history in SQLite. The ownership store is a
// separate flat file; this database only records what happened, for audit and
// the stats report.
type Store struct {
	db *sql.DB
}

type RoomEvent struct {
	ID        int64
	ChannelID string
	ActorID   string
	Level     string
	Event     string
	Details   string
	CreatedAt time.Time
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) AddRoomEvent(ctx context.Context, event RoomEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO room_events (channel_id, actor_id, level, event, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.ChannelID, event.ActorID, event.Level, event.Event, event.Details, event.CreatedAt.Unix())
	return err
}

func (s *Store) ListRoomEvents(ctx context.Context, since time.Time) ([]RoomEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, actor_id, level, event, details, created_at
		FROM room_events
		WHERE created_at >= ?
		ORDER BY created_at DESC
	`, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []RoomEvent
	for rows.Next() {
		var event RoomEvent
		var created int64
		if err := rows.Scan(&event.ID, &event.ChannelID, &event.ActorID, &event.Level, &event.Event, &event.Details, &created); err != nil {
			return nil, err
		}
		event.CreatedAt = time.Unix(created, 0)
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Store) CleanupRoomEvents(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := s.db.ExecContext(ctx, `DELETE FROM room_events WHERE created_at < ?`, cutoff.Unix())
	return err
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
