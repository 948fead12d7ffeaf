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
package endpoint

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/protocol"
	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/transport"
	"go.uber.org/zap"
)

// mockTransport implements transport.Transport, queuing inbound frames on a
// channel and recording outbound ones for assertions.
type mockTransport struct {
	mu      sync.Mutex
	inbound chan []byte
	sent    [][]byte
	state   transport.State
	changes chan transport.State
	closed  bool

	sendFunc func(ctx context.Context, data []byte) error
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		inbound: make(chan []byte, 32),
		state:   transport.StateConnected,
		changes: make(chan transport.State, 4),
	}
}

func (m *mockTransport) Send(ctx context.Context, data []byte) error {
	m.mu.Lock()
	m.sent = append(m.sent, data)
	fn := m.sendFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, data)
	}
	return nil
}

func (m *mockTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-m.inbound:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.inbound)
	return nil
}

func (m *mockTransport) State() transport.State { return m.state }

func (m *mockTransport) StateChanges() <-chan transport.State { return m.changes }

func (m *mockTransport) push(msg interface{}) {
	data, _ := json.Marshal(msg)
	m.inbound <- data
}

func (m *mockTransport) lastSent() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

// startedEndpoint starts an Endpoint against a mockTransport, auto-answering
// the initialize handshake, and returns both once Running.
func startedEndpoint(t *testing.T, cfg Config) (*Endpoint, *mockTransport) {
	t.Helper()
	cfg.Logger = zap.NewNop()
	ep := New(cfg)
	tr := newMockTransport()

	// Outbound sends are routed here; a background goroutine plays the part
	// of the server, answering initialize on tr.inbound (the endpoint's own
	// Receive loop).
	serverInbox := make(chan []byte, 32)
	tr.sendFunc = func(ctx context.Context, data []byte) error {
		serverInbox <- data
		return nil
	}

	go func() {
		for data := range serverInbox {
			var req protocol.Request
			if err := json.Unmarshal(data, &req); err != nil || req.ID == nil {
				continue
			}
			if req.Method == protocol.MethodInitialize {
				result := protocol.InitializeResult{
					ProtocolVersion: protocol.CurrentVersion,
					ServerInfo:      protocol.Implementation{Name: "mock-server", Version: "0.0.1"},
					Capabilities: protocol.ServerCapabilities{
						Tools: &protocol.ToolsCapability{},
					},
				}
				raw, _ := json.Marshal(result)
				tr.push(protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: req.ID, Result: raw})
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ep.Start(ctx, tr); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return ep, tr
}

func TestStartNegotiatesAndReachesRunning(t *testing.T) {
	ep, _ := startedEndpoint(t, Config{ClientName: "test", ClientVersion: "1.0"})
	defer ep.Stop(true)

	if ep.State() != StateRunning {
		t.Fatalf("expected StateRunning, got %s", ep.State())
	}
	session := ep.Session()
	if session == nil || session.ServerInfo.Name != "mock-server" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestSendRejectsUnsupportedCapability(t *testing.T) {
	ep, _ := startedEndpoint(t, Config{ClientName: "test", ClientVersion: "1.0"})
	defer ep.Stop(true)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := ep.Send(ctx, protocol.MethodPromptsList, nil, nil)
	if err == nil {
		t.Fatal("expected capability error for prompts/list (server advertised no prompts capability)")
	}
}

func TestSendDeliversProgressBeforeResponse(t *testing.T) {
	ep, tr := startedEndpoint(t, Config{ClientName: "test", ClientVersion: "1.0"})
	defer ep.Stop(true)

	var mu sync.Mutex
	var progressSeen bool
	var responseAfterProgress bool

	go func() {
		for data := range pluckRequests(tr, "tools/call") {
			var req protocol.Request
			_ = json.Unmarshal(data, &req)

			var params map[string]interface{}
			_ = json.Unmarshal(req.Params, &params)
			meta, _ := params["_meta"].(map[string]interface{})
			token, _ := meta["progressToken"].(string)

			tr.push(protocol.Notification{
				JSONRPC: protocol.JSONRPCVersion,
				Method:  protocol.NotificationProgress,
				Params:  mustMarshal(protocol.ProgressParams{ProgressToken: protocol.NewStringRequestID(token), Progress: 0.5}),
			})

			time.Sleep(10 * time.Millisecond)
			raw, _ := json.Marshal(map[string]interface{}{"ok": true})
			tr.push(protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: req.ID, Result: raw})
			return
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := ep.Send(ctx, "tools/call", map[string]interface{}{"name": "x"}, func(progress float64, total *float64, message *string) {
		mu.Lock()
		progressSeen = true
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	mu.Lock()
	if progressSeen {
		responseAfterProgress = true
	}
	mu.Unlock()

	if resp == nil {
		t.Fatal("expected a response")
	}
	if !responseAfterProgress {
		t.Fatal("expected progress handler invoked before the terminal response")
	}
}

func TestCancelCompletesWaiterAndNotifiesServer(t *testing.T) {
	ep, tr := startedEndpoint(t, Config{ClientName: "test", ClientVersion: "1.0"})
	defer ep.Stop(true)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sent := pluckRequests(tr, "tools/call")

	done := make(chan error, 1)
	go func() {
		// tools/call is allowed (server advertised Tools capability).
		_, err := ep.Send(ctx, "tools/call", map[string]interface{}{"name": "slow"}, nil)
		done <- err
	}()

	var id *protocol.RequestID
	select {
	case data := <-sent:
		var req protocol.Request
		_ = json.Unmarshal(data, &req)
		id = req.ID
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound tools/call")
	}

	if err := ep.Cancel(ctx, id, "user requested"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	var notif protocol.Notification
	if err := json.Unmarshal(tr.lastSent(), &notif); err != nil || notif.Method != protocol.NotificationCancelled {
		t.Fatalf("expected notifications/cancelled as the last outbound message, got %s", tr.lastSent())
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected Send to complete with a cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatal("Send never completed after Cancel")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	ep, _ := startedEndpoint(t, Config{ClientName: "test", ClientVersion: "1.0"})
	if err := ep.Stop(true); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := ep.Stop(true); err == nil {
		t.Fatal("expected ErrAlreadyClosed on second Stop")
	}
	if ep.State() != StateDisconnected {
		t.Fatalf("expected StateDisconnected after Stop, got %s", ep.State())
	}
}

func TestSetRootsEmitsListChangedOnlyWhenSetChanges(t *testing.T) {
	ep, tr := startedEndpoint(t, Config{ClientName: "test", ClientVersion: "1.0", SupportsRoots: true})
	defer ep.Stop(true)

	before := len(tr.sent)

	changed := ep.SetRoots([]protocol.Root{{URI: "file:///a", Name: "a"}})
	if !changed {
		t.Fatal("expected SetRoots to report a change on first call")
	}
	waitForSentCount(t, tr, before+1)

	// Re-setting the identical single-root set must not notify again.
	changed = ep.SetRoots([]protocol.Root{{URI: "file:///a", Name: "a"}})
	if changed {
		t.Fatal("expected SetRoots to report no change for an identical set")
	}
}

func TestUnknownNotificationPublishedOpaquely(t *testing.T) {
	ep, tr := startedEndpoint(t, Config{ClientName: "test", ClientVersion: "1.0"})
	defer ep.Stop(true)

	tr.push(protocol.Notification{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  "notifications/tools/list_changed",
		Params:  json.RawMessage(`{}`),
	})

	select {
	case n := <-ep.Notifications():
		if n.Method != "notifications/tools/list_changed" {
			t.Fatalf("unexpected notification method: %s", n.Method)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a published notification")
	}
}

func TestServerRootsListRequestAnsweredFromCurrentSet(t *testing.T) {
	ep, tr := startedEndpoint(t, Config{ClientName: "test", ClientVersion: "1.0", SupportsRoots: true})
	defer ep.Stop(true)

	ep.SetRoots([]protocol.Root{{URI: "file:///work", Name: "work"}})
	waitForSentCount(t, tr, 3) // initialize request + initialized notification + roots notification

	reqID := protocol.NewStringRequestID("srv-1")
	tr.push(protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      reqID,
		Method:  protocol.MethodRootsList,
	})

	deadline := time.After(time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for roots/list response")
		default:
		}
		data := tr.lastSent()
		var resp protocol.Response
		if err := json.Unmarshal(data, &resp); err == nil && resp.ID != nil && resp.ID.String() == "srv-1" {
			var result protocol.ListRootsResult
			if err := json.Unmarshal(resp.Result, &result); err != nil {
				t.Fatalf("unmarshal result: %v", err)
			}
			if len(result.Roots) != 1 || result.Roots[0].URI != "file:///work" {
				t.Fatalf("unexpected roots in response: %+v", result.Roots)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func mustMarshal(v interface{}) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func waitForSentCount(t *testing.T, tr *mockTransport, n int) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		tr.mu.Lock()
		count := len(tr.sent)
		tr.mu.Unlock()
		if count >= n {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d sent messages, have %d", n, count)
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// pluckRequests filters the mock transport's send hook for outbound requests
// matching method, forwarding matches on the returned channel.
func pluckRequests(tr *mockTransport, method string) <-chan []byte {
	out := make(chan []byte, 8)
	prev := tr.sendFunc
	tr.mu.Lock()
	tr.sendFunc = func(ctx context.Context, data []byte) error {
		var req protocol.Request
		if json.Unmarshal(data, &req) == nil && req.Method == method {
			select {
			case out <- data:
			default:
			}
		}
		if prev != nil {
			return prev(ctx, data)
		}
		return nil
	}
	tr.mu.Unlock()
	return out
}
