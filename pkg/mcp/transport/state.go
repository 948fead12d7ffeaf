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
package transport

import "sync"

// State is the lifecycle state of a Transport. It is distinct from the
// endpoint's protocol-level state machine, which layers Initializing/Running
// on top of Connected.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

// String renders the state for logging.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateTracker holds the current transport state and fans out transitions to
// subscribers. Transports embed one to implement State()/StateChanges().
type StateTracker struct {
	mu          sync.Mutex
	state       State
	lastErr     error
	subscribers []chan State
}

// NewStateTracker creates a tracker starting in StateDisconnected.
func NewStateTracker() *StateTracker {
	return &StateTracker{state: StateDisconnected}
}

// State returns the current state.
func (t *StateTracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LastError returns the error associated with a StateFailed transition, if any.
func (t *StateTracker) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Set transitions to a new state and notifies subscribers. Transitions are
// expected to be monotonic in practice (the caller owns the sequencing); Set
// itself does not enforce an ordering.
func (t *StateTracker) Set(s State, err error) {
	t.mu.Lock()
	t.state = s
	t.lastErr = err
	subs := append([]chan State(nil), t.subscribers...)
	t.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// StateChanges returns a channel that receives subsequent state transitions.
// The channel is buffered; slow subscribers drop intermediate values rather
// than block transitions.
func (t *StateTracker) StateChanges() <-chan State {
	ch := make(chan State, 8)
	t.mu.Lock()
	t.subscribers = append(t.subscribers, ch)
	t.mu.Unlock()
	return ch
}
