package statusbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesSubscriber(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(Event{Source: "usage", Status: 200})

	select {
	case ev := <-ch:
		assert.Equal(t, "usage", ev.Source)
		assert.True(t, ev.OK())
		assert.False(t, ev.Time.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	cancel()
	cancel() // idempotent

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic or block.
	b.Publish(Event{Source: "tts:question", Status: 500})
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := New()
	_, cancel := b.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < recentSize*3; i++ {
			b.Publish(Event{Source: "improve", Status: 200})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestRecentKeepsBoundedWindow(t *testing.T) {
	b := New()
	for i := 0; i < recentSize+5; i++ {
		b.Publish(Event{Source: "usage", Status: 200 + i})
	}
	recent := b.Recent()
	require.Len(t, recent, recentSize)
	// Oldest retained event is the sixth published one.
	assert.Equal(t, 205, recent[0].Status)
	assert.Equal(t, 200+recentSize+4, recent[len(recent)-1].Status)
}

func TestNilBusIsInert(t *testing.T) {
	var b *Bus
	b.Publish(Event{Source: "usage"})
	assert.Nil(t, b.Recent())
}
