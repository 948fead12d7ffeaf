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
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/endpoint"
	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/protocol"
	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/transport"
	"go.uber.org/zap"
)

// fakeTransport is a minimal transport.Transport that answers initialize
// and tools/list from a canned script, standing in for a real MCP server.
type fakeTransport struct {
	mu      sync.Mutex
	inbound chan []byte
	sent    [][]byte
	closed  bool
	changes chan transport.State

	tools []protocol.Tool
}

func newFakeTransport(tools []protocol.Tool) *fakeTransport {
	ft := &fakeTransport{
		inbound: make(chan []byte, 32),
		changes: make(chan transport.State, 4),
		tools:   tools,
	}
	return ft
}

func (f *fakeTransport) Send(ctx context.Context, data []byte) error {
	f.mu.Lock()
	f.sent = append(f.sent, data)
	f.mu.Unlock()

	var req protocol.Request
	if json.Unmarshal(data, &req) != nil || req.ID == nil {
		return nil
	}

	switch req.Method {
	case protocol.MethodInitialize:
		result := protocol.InitializeResult{
			ProtocolVersion: protocol.CurrentVersion,
			ServerInfo:      protocol.Implementation{Name: "fake-server", Version: "0.0.1"},
			Capabilities: protocol.ServerCapabilities{
				Tools: &protocol.ToolsCapability{},
			},
		}
		raw, _ := json.Marshal(result)
		f.push(protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: req.ID, Result: raw})
	case protocol.MethodToolsList:
		raw, _ := json.Marshal(protocol.ToolListResult{Tools: f.tools})
		f.push(protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: req.ID, Result: raw})
	}
	return nil
}

func (f *fakeTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-f.inbound:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.inbound)
	return nil
}

func (f *fakeTransport) State() transport.State               { return transport.StateConnected }
func (f *fakeTransport) StateChanges() <-chan transport.State { return f.changes }

func (f *fakeTransport) push(msg interface{}) {
	data, _ := json.Marshal(msg)
	f.inbound <- data
}

func (f *fakeTransport) emitToolsListChanged() {
	f.push(protocol.Notification{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  protocol.NotificationToolsListChanged,
	})
}

func testHost(t *testing.T) *Host {
	t.Helper()
	h, err := New(Config{ClientInfo: ClientInfo{Name: "test", Version: "0.1.0"}}, zap.NewNop())
	require.NoError(t, err)
	return h
}

func TestConnectReachesRunningAndRejectsDuplicateID(t *testing.T) {
	h := testHost(t)
	defer h.Stop()

	tr := newFakeTransport(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, h.connect(ctx, "srv1", tr))

	rec, ok := h.Connection("srv1")
	require.True(t, ok)
	assert.Equal(t, endpoint.StateRunning, rec.Endpoint.State())
	assert.Equal(t, "fake-server", rec.ServerInfo().Name)

	err := h.connect(ctx, "srv1", newFakeTransport(nil))
	assert.Error(t, err)
}

func TestRefreshToolsPopulatesCacheAndTouchesActivity(t *testing.T) {
	h := testHost(t)
	defer h.Stop()

	want := []protocol.Tool{{Name: "read_file"}, {Name: "write_file"}}
	tr := newFakeTransport(want)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.connect(ctx, "srv1", tr))

	rec, _ := h.Connection("srv1")
	before := rec.LastActivity()
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, rec.refreshTools(ctx, zap.NewNop()))
	assert.Len(t, rec.Tools(), 2)
	assert.True(t, rec.LastActivity().After(before))
}

func TestToolsListChangedNotificationTriggersRefresh(t *testing.T) {
	h := testHost(t)
	defer h.Stop()

	want := []protocol.Tool{{Name: "read_file"}}
	tr := newFakeTransport(want)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.connect(ctx, "srv1", tr))

	tr.emitToolsListChanged()

	deadline := time.After(time.Second)
	for {
		rec, _ := h.Connection("srv1")
		if len(rec.Tools()) == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for tools cache to refresh from list_changed")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestAvailableToolsUnionsAcrossConnectionsByName(t *testing.T) {
	h := testHost(t)
	defer h.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr1 := newFakeTransport([]protocol.Tool{{Name: "shared"}, {Name: "only_one"}})
	tr2 := newFakeTransport([]protocol.Tool{{Name: "shared"}, {Name: "only_two"}})
	require.NoError(t, h.connect(ctx, "one", tr1))
	require.NoError(t, h.connect(ctx, "two", tr2))

	rec1, _ := h.Connection("one")
	rec2, _ := h.Connection("two")
	require.NoError(t, rec1.refreshTools(ctx, zap.NewNop()))
	require.NoError(t, rec2.refreshTools(ctx, zap.NewNop()))

	names := make(map[string]bool)
	for _, tool := range h.AvailableTools() {
		names[tool.Name] = true
	}
	assert.True(t, names["shared"])
	assert.True(t, names["only_one"])
	assert.True(t, names["only_two"])
	assert.Len(t, names, 3)
}

func TestDisconnectRemovesConnectionAndEmitsEvent(t *testing.T) {
	h := testHost(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.connect(ctx, "srv1", newFakeTransport(nil)))

	events, unsubscribe := h.Subscribe()
	defer unsubscribe()

	require.NoError(t, h.disconnect("srv1"))

	_, ok := h.Connection("srv1")
	assert.False(t, ok)

	select {
	case ev := <-events:
		assert.Equal(t, EventConnectionRemoved, ev.Kind)
		assert.Equal(t, "srv1", ev.ConnectionID)
	case <-time.After(time.Second):
		t.Fatal("expected a connectionRemoved event")
	}
}

func TestConnectionsSupportingFiltersByCapability(t *testing.T) {
	h := testHost(t)
	defer h.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.connect(ctx, "srv1", newFakeTransport(nil)))

	supporting := h.ConnectionsSupporting(FeatureTools)
	require.Len(t, supporting, 1)

	none := h.ConnectionsSupporting(FeaturePrompts)
	assert.Empty(t, none)
}

func TestUnrecognizedNotificationForwardedOnEventBus(t *testing.T) {
	h := testHost(t)
	defer h.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tr := newFakeTransport(nil)
	require.NoError(t, h.connect(ctx, "srv1", tr))

	events, unsubscribe := h.Subscribe()
	defer unsubscribe()

	tr.push(protocol.Notification{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  "notifications/message",
		Params:  json.RawMessage(`{"level":"info"}`),
	})

	select {
	case ev := <-events:
		require.Equal(t, EventNotification, ev.Kind)
		require.NotNil(t, ev.Notification)
		assert.Equal(t, "notifications/message", ev.Notification.Method)
	case <-time.After(time.Second):
		t.Fatal("expected the unknown notification forwarded on the event bus")
	}
}
