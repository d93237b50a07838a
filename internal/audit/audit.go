package audit

import (
	"context"
	"time"

	"roomkeeper/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
)

// Logger records room lifecycle events to the event store and to the process
// log. A nil store is allowed; events then only reach zap.
type Logger struct {
	store  *storage.Store
	logger *zap.Logger
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

func (l *Logger) Log(ctx context.Context, level, channelID, actorID, event, details string) {
	entry := storage.RoomEvent{
		ChannelID: channelID,
		ActorID:   actorID,
		Level:     level,
		Event:     event,
		Details:   details,
		CreatedAt: time.Now(),
	}
	if l.store != nil {
		_ = l.store.AddRoomEvent(ctx, entry)
	}
	l.logger.Info("room event",
		zap.String("level", level),
		zap.String("channel_id", channelID),
		zap.String("actor_id", actorID),
		zap.String("event", event),
		zap.String("details", details))
}
