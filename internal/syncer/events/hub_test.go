package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishWithoutSubscribersDropsEvent(t *testing.T) {
	hub := NewHub()
	hub.Publish("guid-1", Event{Type: TypeProgress, Current: 1, Total: 3})

	sub, buffer, err := hub.Subscribe("guid-1")
	assert.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, buffer)
}

func TestSubscribeReceivesBufferedAndLiveEvents(t *testing.T) {
	hub := NewHub()

	first, _, err := hub.Subscribe("guid-1")
	assert.NoError(t, err)
	defer first.Close()

	hub.Publish("guid-1", Event{Type: TypeProgress, Current: 1, Total: 2})
	hub.Publish("guid-1", Event{Type: TypeProgress, Current: 2, Total: 2})

	second, buffer, err := hub.Subscribe("guid-1")
	assert.NoError(t, err)
	defer second.Close()
	assert.Len(t, buffer, 2)
	assert.Equal(t, 2, buffer[1].Current)

	hub.Publish("guid-1", Event{Type: TypeDownloadComplete, Records: 10})
	got := <-second.Events()
	assert.Equal(t, TypeDownloadComplete, got.Type)
	assert.Equal(t, 10, got.Records)
}

func TestStreamsAreIsolatedByGuid(t *testing.T) {
	hub := NewHub()

	subA, _, err := hub.Subscribe("guid-a")
	assert.NoError(t, err)
	defer subA.Close()
	subB, _, err := hub.Subscribe("guid-b")
	assert.NoError(t, err)
	defer subB.Close()

	hub.Publish("guid-a", Event{Type: TypeError, Message: "chunk failed"})

	select {
	case got := <-subA.Events():
		assert.Equal(t, TypeError, got.Type)
	default:
		t.Fatal("expected event on guid-a subscription")
	}
	select {
	case <-subB.Events():
		t.Fatal("guid-b must not observe guid-a events")
	default:
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub()
	sub, _, err := hub.Subscribe("guid-1")
	assert.NoError(t, err)
	defer sub.Close()

	for i := 0; i < DefaultSubscriberBuffer*2; i++ {
		hub.Publish("guid-1", Event{Type: TypeProgress, Current: i})
	}
	assert.Len(t, sub.ch, DefaultSubscriberBuffer)
}

func TestSubscribeRejectsEmptyGuid(t *testing.T) {
	hub := NewHub()
	_, _, err := hub.Subscribe("  ")
	assert.EqualError(t, err, "invalid_guid")
}
