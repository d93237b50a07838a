package analytics

import (
	"context"
	"time"

	"roomkeeper/internal/storage"
)

type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

type Report struct {
	Total   int
	ByEvent map[string]int
}

// Report counts room events since the cutoff, grouped by event type.
func (s *Service) Report(ctx context.Context, since time.Time) (Report, error) {
	events, err := s.store.ListRoomEvents(ctx, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByEvent: make(map[string]int)}
	for _, event := range events {
		report.Total++
		report.ByEvent[event.Event]++
	}
	return report, nil
}
