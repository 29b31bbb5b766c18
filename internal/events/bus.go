package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vadiminshakov/pulsgram/internal/entity"
)

// ChatMessage is an inbound text message from the chat collaborator.
type ChatMessage struct {
	PeerID int64
	Text   string
}

// ErrorEvent carries a human-readable diagnostic plus an origin tag. Errors
// on the bus are reported, never retried.
type ErrorEvent struct {
	Source      string
	MessageText string
}

// Event is the union of everything that travels over the bus. Exactly one
// field is non-nil. Payloads are carried by pointer so fan-out clones the
// handle, not the payload.
type Event struct {
	Chat          *ChatMessage
	Error         *ErrorEvent
	TradeApproved *entity.TradeApproved
	TradeRejected *entity.TradeRejected
}

// ErrClosed reports that the bus is gone; the subscriber loop must exit.
var ErrClosed = errors.New("event bus closed")

// LagError reports that a subscriber fell behind and missed events. The
// subscriber is expected to report the lag and keep consuming.
type LagError struct {
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("subscriber lagged, missed %d events", e.Missed)
}

// Receiver is one subscriber's independent view of the bus. It observes only
// events published after Subscribe, in publish order.
type Receiver struct {
	ch      chan Event
	dropped atomic.Uint64
}

// Recv blocks until the next event, the context ends, or the bus closes.
// A pending lag is surfaced before further events are delivered.
func (r *Receiver) Recv(ctx context.Context) (Event, error) {
	if n := r.dropped.Swap(0); n > 0 {
		return Event{}, &LagError{Missed: n}
	}

	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case ev, ok := <-r.ch:
		if !ok {
			return Event{}, ErrClosed
		}
		return ev, nil
	}
}

// Bus fans out events to all subscribers via bounded buffered channels.
// Publishing never blocks: a full subscriber queue counts a drop for that
// subscriber only.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Receiver]struct{}
	buffer int
	closed bool
}

// DefaultCapacity is the per-subscriber in-flight event buffer.
const DefaultCapacity = 1024

// NewBus creates a bus with the given per-subscriber buffer.
func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = DefaultCapacity
	}
	return &Bus{
		subs:   make(map[*Receiver]struct{}),
		buffer: buffer,
	}
}

// Publish delivers the event to every current subscriber. It never fails from
// the caller's point of view: with no subscribers, or for any subscriber whose
// queue is full, the event is simply dropped.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for r := range b.subs {
		select {
		case r.ch <- ev:
		default:
			r.dropped.Add(1)
		}
	}
}

// Subscribe registers a new independent receiver. Subscribing to a closed bus
// yields a receiver that immediately reports ErrClosed.
func (b *Bus) Subscribe() *Receiver {
	r := &Receiver{ch: make(chan Event, b.buffer)}

	b.mu.Lock()
	if b.closed {
		close(r.ch)
	} else {
		b.subs[r] = struct{}{}
	}
	b.mu.Unlock()

	return r
}

// Close terminates the bus. Receivers drain their buffered events and then
// observe ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for r := range b.subs {
		close(r.ch)
		delete(b.subs, r)
	}
}

// HandleRecvError classifies a Recv failure for a worker loop. Lag is
// republished as an ErrorEvent and the worker continues; a closed bus or a
// canceled context stops the loop.
func HandleRecvError(source string, err error, bus *Bus) (stop bool) {
	var lag *LagError
	if errors.As(err, &lag) {
		bus.Publish(Event{Error: &ErrorEvent{
			Source:      source,
			MessageText: lag.Error(),
		}})
		return false
	}

	return true
}
