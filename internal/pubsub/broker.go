package pubsub

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Broker is a simple in-memory pub/sub system. The judging engine publishes
// per-submission progress events (topic = submission id) that websocket
// clients stream, and lifecycle events on SubmissionsTopic that the activity
// tracker consumes.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscriber // topic -> list of subscribers
	cache       map[string][][]byte      // topic -> list of cached messages
}

// subscriber pairs a delivery channel with a quit signal. The replay goroutine
// started in Subscribe is the channel's sole closer; quit tells it to stop, so
// no send can ever race against the close.
type subscriber struct {
	ch       chan []byte
	quit     chan struct{}
	stopOnce sync.Once
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.quit) })
}

// SubmissionsTopic carries one event per completed judging pass.
const SubmissionsTopic = "submissions"

// Event is the wire shape of every broker message.
type Event struct {
	Kind         string `json:"kind"` // case_result, verdict, accepted, error
	SubmissionID string `json:"submission_id,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	ProblemID    string `json:"problem_id,omitempty"`
	Data         string `json:"data,omitempty"`
}

var (
	once   sync.Once
	broker *Broker
)

// NewBroker creates an empty broker. Most callers share the GetBroker singleton.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string][]*subscriber),
		cache:       make(map[string][][]byte),
	}
}

// GetBroker returns the singleton instance of the Broker.
func GetBroker() *Broker {
	once.Do(func() {
		broker = NewBroker()
	})
	return broker
}

// Subscribe subscribes to a topic. It first sends all cached messages to the
// new subscriber, then adds the subscriber to receive live messages. The
// returned function removes the subscription; the channel closes once the
// replay goroutine has wound down.
func (b *Broker) Subscribe(topic string) (<-chan []byte, func()) {
	b.mu.Lock()

	sub := &subscriber{
		ch:   make(chan []byte, 128),
		quit: make(chan struct{}),
	}

	// Snapshot the history under the lock; deliver it without blocking the broker.
	history := b.cache[topic]

	go func() {
		defer close(sub.ch)
		for _, msg := range history {
			select {
			case sub.ch <- msg:
			case <-sub.quit:
				return
			}
		}
		<-sub.quit
	}()

	b.subscribers[topic] = append(b.subscribers[topic], sub)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		subscribers := b.subscribers[topic]
		for i, s := range subscribers {
			if s == sub {
				b.subscribers[topic] = append(subscribers[:i], subscribers[i+1:]...)
				break
			}
		}
		b.mu.Unlock()

		// Removed from the map first, so nothing publishes to the channel
		// after the replay goroutine closes it.
		sub.stop()
		zap.S().Debugf("unsubscribed from topic %s", topic)
	}

	zap.S().Debugf("new subscription to topic %s, replaying %d cached messages", topic, len(history))
	return sub.ch, unsubscribe
}

// Publish publishes a message to all subscribers of a topic and caches it.
func (b *Broker) Publish(topic string, msg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cache[topic] = append(b.cache[topic], msg)

	// Broadcast to live subscribers without blocking: a slow client loses
	// messages instead of stalling the judging path.
	for _, sub := range b.subscribers[topic] {
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// PublishEvent marshals and publishes an Event.
func (b *Broker) PublishEvent(topic string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		zap.S().Errorf("failed to marshal broker event: %v", err)
		return
	}
	b.Publish(topic, data)
}

// PublishTransient publishes without caching. Used for long-lived feeds such
// as SubmissionsTopic where replaying history makes no sense.
func (b *Broker) PublishTransient(topic string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		zap.S().Errorf("failed to marshal broker event: %v", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers[topic] {
		select {
		case sub.ch <- data:
		default:
		}
	}
}

// CloseTopic ends every subscription and clears the cache for a topic. Each
// subscriber channel is closed by its own replay goroutine once the quit
// signal lands, never while a send may still be in flight.
func (b *Broker) CloseTopic(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers[topic] {
		sub.stop()
	}
	delete(b.subscribers, topic)
	delete(b.cache, topic)
	zap.S().Debugf("closed pubsub topic %s and cleared cache", topic)
}
