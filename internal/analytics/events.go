package analytics

import (
	"context"
	"slices"
	"time"
)

// EventKind distinguishes single-period from bulk recompute notifications.
type EventKind string

const (
	EventRecomputeCompleted     EventKind = "recompute-completed"
	EventBulkRecomputeCompleted EventKind = "bulk-recompute-completed"
)

// Event announces that fresh snapshots were persisted for a tenant.
type Event struct {
	Kind        EventKind `json:"kind"`
	UserID      string    `json:"userId"`
	Period      Period    `json:"period,omitempty"`
	Periods     []Period  `json:"periods,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Covers reports whether the event refreshed the given period.
func (e Event) Covers(period Period) bool {
	switch e.Kind {
	case EventRecomputeCompleted:
		return e.Period == period
	case EventBulkRecomputeCompleted:
		return slices.Contains(e.Periods, period)
	}
	return false
}

// Handler receives published events. Handlers must not block for long.
type Handler func(ctx context.Context, evt Event)

// Bus carries analytics events to in-process subscribers. Delivery is
// at-most-once with no replay.
type Bus interface {
	Publish(ctx context.Context, evt Event) error
	Subscribe(h Handler) (cancel func())
}
