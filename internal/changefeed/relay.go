package changefeed

import (
	"context"
	"encoding/json"

	"github.com/asperus/agenda/internal/events"
)

// OutboxRelay forwards outbox entries to a publisher. It is the delivery
// handler of the outbox deliverer.
type OutboxRelay struct {
	publisher Publisher
}

func NewOutboxRelay(publisher Publisher) *OutboxRelay {
	return &OutboxRelay{publisher: publisher}
}

func (r *OutboxRelay) Handle(ctx context.Context, entry events.OutboxEntry) error {
	evt := Event{
		ID:      entry.ID.String(),
		Kind:    entry.Type,
		StoreID: entry.StoreID,
		At:      entry.CreatedAt,
	}
	var changed events.ReservationChangedV1
	if err := json.Unmarshal(entry.Payload, &changed); err == nil {
		evt.Day = changed.Day
	}
	return r.publisher.Publish(ctx, evt)
}
