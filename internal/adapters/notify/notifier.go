// Package notify delivers desktop notifications for coordinator events.
// Delivery runs on a background worker so a slow or broken notification
// backend can never stall the control loop.
package notify

import (
	"fmt"
	"log"
	"sync"

	"github.com/example/dlqwatch/internal/ports/secondary"
)

const queueDepth = 32

// DeliverFunc sends one rendered notification. Implementations may block;
// they run on the worker goroutine, not the caller's.
type DeliverFunc func(title, body string) error

// AsyncNotifier queues events to a worker goroutine. When the buffer is
// full the event is dropped and logged; notifications are best-effort.
type AsyncNotifier struct {
	deliver DeliverFunc
	events  chan secondary.Event
	done    chan struct{}
	once    sync.Once
}

// New creates an AsyncNotifier using the platform notification command.
func New() *AsyncNotifier {
	return NewWithDeliver(platformDeliver)
}

// NewWithDeliver creates an AsyncNotifier with a custom delivery function.
func NewWithDeliver(deliver DeliverFunc) *AsyncNotifier {
	n := &AsyncNotifier{
		deliver: deliver,
		events:  make(chan secondary.Event, queueDepth),
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify queues an event for delivery. Never blocks.
func (n *AsyncNotifier) Notify(e secondary.Event) {
	select {
	case n.events <- e:
	default:
		log.Printf("notify: buffer full, dropping %s event for %s", e.Kind, e.Queue)
	}
}

// Close stops accepting events and waits for queued ones to drain.
func (n *AsyncNotifier) Close() {
	n.once.Do(func() {
		close(n.events)
		<-n.done
	})
}

func (n *AsyncNotifier) run() {
	defer close(n.done)
	for e := range n.events {
		title, body := render(e)
		if err := n.deliver(title, body); err != nil {
			log.Printf("notify: delivery failed for %s event on %s: %v", e.Kind, e.Queue, err)
		}
	}
}

func render(e secondary.Event) (title, body string) {
	switch e.Kind {
	case secondary.EventTriggered:
		title = "DLQ investigation started"
		body = fmt.Sprintf("%s: %d message(s) in queue", e.Queue, e.MessageCount)
	case secondary.EventCompleted:
		title = "DLQ investigation completed"
		body = fmt.Sprintf("%s: %s", e.Queue, e.Detail)
	case secondary.EventFailed:
		title = "DLQ investigation failed"
		body = fmt.Sprintf("%s: %s", e.Queue, e.Detail)
	case secondary.EventTimedOut:
		title = "DLQ investigation timed out"
		body = fmt.Sprintf("%s: %s", e.Queue, e.Detail)
	case secondary.EventDegraded:
		title = "DLQ monitor degraded"
		body = fmt.Sprintf("%s: %s", e.Queue, e.Detail)
	default:
		title = "DLQ monitor"
		body = fmt.Sprintf("%s: %s", e.Queue, e.Detail)
	}
	return title, body
}

// NopNotifier discards all events. Used when notifications are disabled.
type NopNotifier struct{}

func (NopNotifier) Notify(secondary.Event) {}

// Ensure both implement the interface.
var (
	_ secondary.Notifier = (*AsyncNotifier)(nil)
	_ secondary.Notifier = NopNotifier{}
)
