// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package host

import (
	"sync"

	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/protocol"
	"go.uber.org/zap"
)

// EventKind discriminates the unified host event stream.
type EventKind int

const (
	EventConnectionAdded EventKind = iota
	EventConnectionRemoved
	EventConnectionStateChanged
	EventNotification
	EventBackpressure
)

// Event is published on the host's unified event stream: connection
// lifecycle changes, forwarded server notifications that aren't consumed
// by cache-refresh interception, and backpressure signals.
type Event struct {
	Kind         EventKind
	ConnectionID string
	Notification *protocol.OpaqueNotification
	Err          error
}

const subscriberBuffer = 64

// eventBus fans Events out to subscribers with bounded per-subscriber
// buffers. A subscriber that falls behind by more than the buffer is
// dropped with an EventBackpressure notice rather than blocking the
// publisher.
type eventBus struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	logger      *zap.Logger
}

func newEventBus(logger *zap.Logger) *eventBus {
	return &eventBus{subscribers: make(map[int]chan Event), logger: logger}
}

// subscribe returns a channel of future events and an unsubscribe function.
func (b *eventBus) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subscribers[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(existing)
		}
	}
}

// publish delivers ev to every subscriber without blocking. A subscriber
// whose buffer is full is terminated: its channel is closed after a final
// EventBackpressure notice is attempted, and it is dropped from the bus.
func (b *eventBus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("event subscriber lagging, dropping", zap.Int("subscriber", id))
			delete(b.subscribers, id)
			select {
			case ch <- Event{Kind: EventBackpressure, ConnectionID: ev.ConnectionID}:
			default:
			}
			close(ch)
		}
	}
}

func (b *eventBus) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
