package events

import (
	"time"

	"github.com/kelindar/event"
)

// Publisher is the publishing half of Bus.
type Publisher interface {
	Publish(ev Event)
}

// Bus delivers device events to the filters registered for their category.
// kelindar/event runs each subscriber on its own goroutine, so handlers see
// events of one category in order but categories interleave freely.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish delivers ev to every filter of its category. Events of unknown
// concrete types are dropped.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case KeyEvent:
		event.Publish(b.dispatcher, e)
	case WiFiEvent:
		event.Publish(b.dispatcher, e)
	case CloudEvent:
		event.Publish(b.dispatcher, e)
	case LinkkitEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler as a filter for the category named by its
// parameter type, e.g. func(events.WiFiEvent). The returned function removes
// the filter; handlers of any other type are not registered.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(KeyEvent):
		return on(b, h)
	case func(WiFiEvent):
		return on(b, h)
	case func(CloudEvent):
		return on(b, h)
	case func(LinkkitEvent):
		return on(b, h)
	default:
		return func() {}
	}
}

// Tap copies every event into ch until the returned function is called.
// Events are dropped while ch is full so a slow reader never stalls the bus.
func (b *Bus) Tap(ch chan<- Event) func() {
	cancels := []func(){
		on(b, forward[KeyEvent](ch)),
		on(b, forward[WiFiEvent](ch)),
		on(b, forward[CloudEvent](ch)),
		on(b, forward[LinkkitEvent](ch)),
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

func on[T Event](b *Bus, fn func(T)) func() {
	cancel := event.Subscribe(b.dispatcher, fn)
	return func() { cancel() }
}

func forward[T Event](ch chan<- Event) func(T) {
	return func(e T) {
		select {
		case ch <- e:
		default:
		}
	}
}

// Now formats the current time the way event timestamps are carried.
func Now() string {
	return time.Now().Format(time.RFC3339)
}
