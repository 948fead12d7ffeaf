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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/protocol"
	"go.uber.org/zap"
)

func newTimeoutErr(method string) error {
	return fmt.Errorf("%w: %s", ErrRequestTimeout, method)
}

func newCancelledErr(method string) error {
	return fmt.Errorf("%w: %s", ErrRequestCancelled, method)
}

// marshalParams renders params as JSON, substituting an empty object for nil.
func marshalParams(params interface{}) (json.RawMessage, error) {
	if params == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(params)
}

// injectProgressToken marshals params and sets params._meta.progressToken to
// id's wire form, per the send contract's progress-token wiring. params must
// marshal to a JSON object (or be nil, treated as {}).
func injectProgressToken(params interface{}, id *protocol.RequestID) (json.RawMessage, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}

	m := map[string]interface{}{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("progress token requires object-shaped params: %w", err)
		}
	}
	m["_meta"] = map[string]interface{}{"progressToken": id.String()}
	return json.Marshal(m)
}

// roundTrip registers a pending entry, sends req, and waits for its
// correlated response, error, context cancellation, or timeout — whichever
// comes first. The pending entry is always removed before this returns.
func (e *Endpoint) roundTrip(ctx context.Context, req *protocol.Request, timeout time.Duration) (*protocol.Response, error) {
	key := req.ID.String()
	ch := make(chan sendOutcome, 1)
	pr := &pendingRequest{id: req.ID, method: req.Method, ch: ch}

	e.pendingMu.Lock()
	e.pending[key] = pr
	e.pendingMu.Unlock()

	cleanup := func() {
		e.pendingMu.Lock()
		delete(e.pending, key)
		e.pendingMu.Unlock()
	}

	data, err := json.Marshal(req)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := e.transport.Send(ctx, data); err != nil {
		cleanup()
		return nil, fmt.Errorf("send request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		cleanup()
		return nil, ctx.Err()
	case <-timer.C:
		cleanup()
		return nil, newTimeoutErr(req.Method)
	case outcome := <-ch:
		return outcome.resp, outcome.err
	}
}

// Send implements the send() contract: capability-gates method against the
// negotiated session, allocates a fresh request id, optionally wires a
// progress token/handler, and waits for the correlated response.
func (e *Endpoint) Send(ctx context.Context, method string, params interface{}, progressHandler ProgressHandler) (*protocol.Response, error) {
	session := e.tracker.Session()
	if e.tracker.State() != StateRunning || session == nil {
		return nil, ErrInvalidState
	}
	if !protocol.IsAllowed(method, e.clientCaps, session.Capabilities, session.Features) {
		return nil, fmt.Errorf("%w: %s", ErrCapabilityNotSupported, method)
	}

	id := protocol.NewStringRequestID(uuid.NewString())

	var paramsJSON json.RawMessage
	var err error
	if progressHandler != nil {
		paramsJSON, err = injectProgressToken(params, id)
	} else {
		paramsJSON, err = marshalParams(params)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	if progressHandler != nil {
		e.progress.register(id, progressHandler)
		defer e.progress.unregister(id)
	}

	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  paramsJSON,
	}

	return e.roundTrip(ctx, req, e.cfg.SendTimeout)
}

// Cancel cancels an outstanding request by id: removes the pending entry,
// completes it with ErrRequestCancelled, unregisters any progress handler,
// and emits notifications/cancelled to the server on a best-effort basis.
func (e *Endpoint) Cancel(ctx context.Context, id *protocol.RequestID, reason string) error {
	key := id.String()

	e.pendingMu.Lock()
	pr, ok := e.pending[key]
	if ok {
		delete(e.pending, key)
	}
	e.pendingMu.Unlock()

	if !ok {
		return nil
	}

	e.progress.unregister(pr.id)
	select {
	case pr.ch <- sendOutcome{err: newCancelledErr(pr.method)}:
	default:
	}

	params := protocol.CancelledParams{RequestID: id, Reason: reason}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal cancelled notification: %w", err)
	}

	notif := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  protocol.NotificationCancelled,
		Params:  paramsJSON,
	}
	notifJSON, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal cancelled notification: %w", err)
	}

	if err := e.transport.Send(ctx, notifJSON); err != nil {
		e.logger.Warn("failed to send notifications/cancelled", zap.Error(err))
	}
	return nil
}
