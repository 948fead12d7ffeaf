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
// Package endpoint implements the MCP client endpoint: the state machine,
// request multiplexer, and inbound dispatch for a single connected server.
package endpoint

import (
	"sync"

	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/protocol"
)

// State is the endpoint's protocol-level lifecycle, a superset of the
// underlying transport's state: it adds the Initializing/Running phases
// that only make sense once an MCP session has been negotiated.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateInitializing
	StateRunning
	StateFailed
)

// String renders the state for logging.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SessionInfo is the initialize response, immutable for the lifetime of a
// Running state.
type SessionInfo struct {
	ProtocolVersion string
	ServerInfo      protocol.Implementation
	Capabilities    protocol.ServerCapabilities
	Features        protocol.FeatureFlags
}

// ConnectionEvent is published whenever the endpoint's state changes.
type ConnectionEvent struct {
	State   State
	Session *SessionInfo // non-nil only when State == StateRunning
	Err     error        // non-nil only when State == StateFailed
}

// stateTracker holds the endpoint's current state and fans transitions out
// to subscribers, mirroring transport.StateTracker's shape one layer up.
type stateTracker struct {
	mu          sync.Mutex
	state       State
	session     *SessionInfo
	lastErr     error
	subscribers []chan ConnectionEvent
}

func newStateTracker() *stateTracker {
	return &stateTracker{state: StateDisconnected}
}

func (t *stateTracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *stateTracker) Session() *SessionInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

func (t *stateTracker) set(s State, session *SessionInfo, err error) {
	t.mu.Lock()
	t.state = s
	t.session = session
	t.lastErr = err
	subs := append([]chan ConnectionEvent(nil), t.subscribers...)
	t.mu.Unlock()

	ev := ConnectionEvent{State: s, Session: session, Err: err}
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (t *stateTracker) subscribe() <-chan ConnectionEvent {
	ch := make(chan ConnectionEvent, 16)
	t.mu.Lock()
	t.subscribers = append(t.subscribers, ch)
	t.mu.Unlock()
	return ch
}
