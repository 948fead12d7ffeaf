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

	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/protocol"
)

// handleRootsList answers a server-initiated roots/list request with the
// endpoint's current root set.
func (e *Endpoint) handleRootsList(req *protocol.Request) *protocol.Response {
	e.rootsMu.RLock()
	roots := make([]protocol.Root, len(e.roots))
	copy(roots, e.roots)
	e.rootsMu.RUnlock()

	return resultResponse(req.ID, protocol.ListRootsResult{Roots: roots})
}

// handleSampling answers a server-initiated sampling/createMessage request by
// invoking the application-supplied handler, or methodNotFound if none was
// registered.
func (e *Endpoint) handleSampling(ctx context.Context, req *protocol.Request, handler SamplingHandler) *protocol.Response {
	if handler == nil {
		return errorResponse(req.ID, protocol.MethodNotFound, "sampling/createMessage: no handler registered")
	}

	var params protocol.SamplingParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, protocol.InvalidParams, "invalid sampling/createMessage params: "+err.Error())
		}
	}

	result, err := handler(ctx, params)
	if err != nil {
		if mcpErr, ok := err.(*protocol.Error); ok {
			return &protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: req.ID, Error: mcpErr}
		}
		return errorResponse(req.ID, protocol.InternalError, err.Error())
	}

	return resultResponse(req.ID, result)
}

// SetRoots replaces the client's advertised root set. If the effective set
// changed (set-equality on {uri, name}), notifications/roots/list_changed is
// emitted and SetRoots returns true; otherwise it is a no-op and returns
// false. Safe to call before Start or while Running.
func (e *Endpoint) SetRoots(roots []protocol.Root) bool {
	next := make([]protocol.Root, len(roots))
	copy(next, roots)

	e.rootsMu.Lock()
	changed := !sameRootSet(e.roots, next)
	if changed {
		e.roots = next
	}
	e.rootsMu.Unlock()

	if !changed {
		return false
	}

	e.emitRootsListChanged()
	return true
}

func (e *Endpoint) emitRootsListChanged() {
	if e.tracker.State() != StateRunning {
		return
	}

	notif := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  protocol.NotificationRootsListChanged,
	}
	data, err := json.Marshal(notif)
	if err != nil {
		e.logger.Warn("failed to marshal roots/list_changed notification")
		return
	}

	e.mu.Lock()
	ctx := e.ctx
	tr := e.transport
	e.mu.Unlock()
	if ctx == nil || tr == nil {
		return
	}

	if err := tr.Send(ctx, data); err != nil {
		e.logger.Warn("failed to send notifications/roots/list_changed")
	}
}

// sameRootSet compares two root sets for set-equality on {uri, name},
// ignoring order.
func sameRootSet(a, b []protocol.Root) bool {
	if len(a) != len(b) {
		return false
	}
	type key struct{ uri, name string }
	counts := make(map[key]int, len(a))
	for _, r := range a {
		counts[key{r.URI, r.Name}]++
	}
	for _, r := range b {
		k := key{r.URI, r.Name}
		if counts[k] == 0 {
			return false
		}
		counts[k]--
	}
	return true
}
