package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []Event
	d.Subscribe(EventTicketIngested, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})

	event := Event{ID: "ev-1", Type: EventTicketIngested, Source: "servicenow"}
	require.NoError(t, d.Publish(context.Background(), event))
	require.Len(t, got, 1)
	assert.Equal(t, "ev-1", got[0].ID)
}

func TestDispatcherIsolatesEventTypes(t *testing.T) {
	d := NewInMemoryDispatcher()

	var ingested, updated int
	d.Subscribe(EventTicketIngested, func(context.Context, Event) error {
		ingested++
		return nil
	})
	d.Subscribe(EventTicketUpdated, func(context.Context, Event) error {
		updated++
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketUpdated}))
	assert.Equal(t, 0, ingested)
	assert.Equal(t, 1, updated)
}

func TestDispatcherFailingHandlerDoesNotStarveOthers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var reached bool
	d.Subscribe(EventSyncHealthChanged, func(context.Context, Event) error {
		return assert.AnError
	})
	d.Subscribe(EventSyncHealthChanged, func(context.Context, Event) error {
		reached = true
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventSyncHealthChanged}))
	assert.True(t, reached)
}

func TestDispatcherNoSubscribersIsNoop(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketIngested}))
}
