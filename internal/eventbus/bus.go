package eventbus

import "sync"

// Topic names preserve the cross-component custom-event names so payload
// shapes stay recognizable across the cart, carousel and upload surfaces.
const (
	TopicCartAddItem          = "cart:addItem"
	TopicShowProductCarousel  = "marine:showProductCarousel"
	TopicOpenImageUpload      = "marine:openImageUpload"
	TopicClearFilteredResults = "marine:clearFilteredResults"
	TopicCartOpened           = "drawer:cartOpened"
)

// Event is one published message.
type Event struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload,omitempty"`
}

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus is an in-process publish/subscribe service, constructed once at
// application start and passed by reference to every component that needs
// to react to another surface without holding a reference to it.
//
// Delivery within a single Publish call is synchronous and in listener
// registration order. No ordering is guaranteed between independent
// publishes. By convention each topic has a single producer group; the bus
// does not enforce that.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[string][]subscription
}

// wildcard receives every publish regardless of topic.
const wildcard = "*"

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Publish delivers the payload to all currently-registered listeners for
// the topic, then to all wildcard listeners. Fire-and-forget: there is no
// queue and no delivery guarantee beyond "listeners registered at time of
// publish".
func (b *Bus) Publish(topic string, payload any) {
	ev := Event{Topic: topic, Payload: payload}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic])+len(b.subs[wildcard]))
	for _, s := range b.subs[topic] {
		handlers = append(handlers, s.fn)
	}
	for _, s := range b.subs[wildcard] {
		handlers = append(handlers, s.fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Subscribe registers a handler for a topic and returns its unsubscribe
// token. Unsubscribing twice is harmless.
func (b *Bus) Subscribe(topic string, fn Handler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		current := b.subs[topic]
		for i, s := range current {
			if s.id == id {
				b.subs[topic] = append(current[:i:i], current[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers a handler for every topic. Used by the event
// stream endpoint so detached UI surfaces can follow the bus over HTTP.
func (b *Bus) SubscribeAll(fn Handler) func() {
	return b.Subscribe(wildcard, fn)
}
