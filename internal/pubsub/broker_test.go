package pubsub_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openjudge-dev/openjudge/internal/pubsub"
)

// drainUntilClosed consumes the channel until it closes, failing the test if
// it never does.
func drainUntilClosed(t *testing.T, ch <-chan []byte) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscriber channel was not closed")
		}
	}
}

func TestSubscribeReplaysCacheThenStreamsLive(t *testing.T) {
	b := pubsub.NewBroker()
	b.Publish("topic", []byte("one"))
	b.Publish("topic", []byte("two"))

	ch, unsubscribe := b.Subscribe("topic")
	require.Equal(t, "one", string(<-ch))
	require.Equal(t, "two", string(<-ch))

	b.Publish("topic", []byte("three"))
	require.Equal(t, "three", string(<-ch))

	unsubscribe()
	drainUntilClosed(t, ch)
}

func TestUnsubscribeDuringReplay(t *testing.T) {
	b := pubsub.NewBroker()
	// More history than the subscriber buffer holds, so the replay goroutine
	// is still sending when the client walks away.
	for i := 0; i < 300; i++ {
		b.Publish("busy", []byte("msg"))
	}

	ch, unsubscribe := b.Subscribe("busy")
	<-ch
	unsubscribe()
	drainUntilClosed(t, ch)
}

func TestCloseTopicDuringReplay(t *testing.T) {
	b := pubsub.NewBroker()
	for i := 0; i < 300; i++ {
		b.Publish("busy", []byte("msg"))
	}

	ch, unsubscribe := b.Subscribe("busy")
	<-ch
	b.CloseTopic("busy")
	drainUntilClosed(t, ch)

	// Unsubscribing after the topic shut down is a no-op.
	unsubscribe()

	// The cache is gone: a late subscriber sees no history.
	late, lateUnsubscribe := b.Subscribe("busy")
	select {
	case msg, ok := <-late:
		if ok {
			t.Fatalf("expected no replay after CloseTopic, got %q", msg)
		}
	case <-time.After(50 * time.Millisecond):
	}
	lateUnsubscribe()
	drainUntilClosed(t, late)
}

func TestPublishTransientSkipsCache(t *testing.T) {
	b := pubsub.NewBroker()
	b.PublishTransient("feed", pubsub.Event{Kind: "judged"})

	ch, unsubscribe := b.Subscribe("feed")
	select {
	case msg := <-ch:
		t.Fatalf("expected empty replay, got %q", msg)
	case <-time.After(50 * time.Millisecond):
	}

	b.PublishTransient("feed", pubsub.Event{Kind: "judged", SubmissionID: "sub-1"})
	select {
	case msg := <-ch:
		require.Contains(t, string(msg), "sub-1")
	case <-time.After(2 * time.Second):
		t.Fatal("live transient message never arrived")
	}

	unsubscribe()
	drainUntilClosed(t, ch)
}
