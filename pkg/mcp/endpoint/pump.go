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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/protocol"
	"go.uber.org/zap"
)

// pump receives decoded messages from the transport for the lifetime of the
// endpoint's current session, dispatching each to the response correlator,
// the notification router, or the server-request handler set.
func (e *Endpoint) pump() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		default:
		}

		data, err := e.transport.Receive(e.ctx)
		if err != nil {
			if e.ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			e.fail(fmt.Errorf("transport receive: %w", err))
			return
		}
		if len(data) == 0 {
			continue
		}

		msg, err := protocol.Classify(data)
		if err != nil {
			e.logger.Warn("dropping unclassifiable message", zap.Error(err), zap.ByteString("data", data))
			continue
		}

		switch m := msg.(type) {
		case *protocol.Response:
			e.handleResponse(m)
		case *protocol.Notification:
			e.handleNotification(m)
		case *protocol.Request:
			e.handleServerRequest(m)
		}
	}
}

func (e *Endpoint) handleResponse(resp *protocol.Response) {
	key := resp.ID.String()

	e.pendingMu.Lock()
	pr, ok := e.pending[key]
	if ok {
		delete(e.pending, key)
	}
	e.pendingMu.Unlock()

	if !ok {
		e.logger.Warn("received response for unknown request", zap.String("id", key))
		return
	}

	e.progress.unregister(pr.id)

	outcome := sendOutcome{resp: resp}
	if resp.Error != nil {
		outcome.resp = nil
		outcome.err = resp.Error
	}

	select {
	case pr.ch <- outcome:
	default:
		e.logger.Warn("response channel full, dropping", zap.String("id", key))
	}
}

func (e *Endpoint) handleNotification(n *protocol.Notification) {
	switch n.Method {
	case protocol.NotificationCancelled:
		e.handleCancelledNotification(n)
	case protocol.NotificationProgress:
		var params protocol.ProgressParams
		if err := json.Unmarshal(n.Params, &params); err != nil {
			e.logger.Warn("invalid notifications/progress params", zap.Error(err))
			return
		}
		e.progress.dispatch(params)
	default:
		e.publishNotification(n)
	}
}

func (e *Endpoint) handleCancelledNotification(n *protocol.Notification) {
	var params protocol.CancelledParams
	if err := json.Unmarshal(n.Params, &params); err != nil {
		e.logger.Warn("invalid notifications/cancelled params", zap.Error(err))
		return
	}
	if params.RequestID == nil {
		return
	}

	key := params.RequestID.String()
	e.pendingMu.Lock()
	pr, ok := e.pending[key]
	if ok {
		delete(e.pending, key)
	}
	e.pendingMu.Unlock()

	if !ok {
		return
	}

	e.progress.unregister(pr.id)
	select {
	case pr.ch <- sendOutcome{err: newCancelledErr(pr.method)}:
	default:
	}
}

// publishNotification forwards an unrecognized (to the pump) notification
// onto the public stream as an opaque, losslessly-preserved payload. Slow
// subscribers drop the newest notification rather than block the pump.
func (e *Endpoint) publishNotification(n *protocol.Notification) {
	value, err := protocol.NewValue(n.Params)
	if err != nil {
		value = protocol.Value{}
	}

	e.notifMu.RLock()
	ch := e.notifications
	e.notifMu.RUnlock()

	select {
	case ch <- protocol.OpaqueNotification{Method: n.Method, Params: value}:
	default:
		e.logger.Warn("notification stream full, dropping", zap.String("method", n.Method))
	}
}

// handleServerRequest resolves and invokes the handler for an inbound
// server→client request, replying methodNotFound if no handler is
// registered (or the endpoint's handler set was cleared after a failure).
func (e *Endpoint) handleServerRequest(req *protocol.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		e.handlersMu.RLock()
		active := e.handlersActive
		samplingHandler := e.samplingHandler
		e.handlersMu.RUnlock()

		var resp *protocol.Response
		switch {
		case !active:
			resp = errorResponse(req.ID, protocol.MethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
		case req.Method == protocol.MethodRootsList:
			resp = e.handleRootsList(req)
		case req.Method == protocol.MethodSamplingCreateMessage:
			resp = e.handleSampling(ctx, req, samplingHandler)
		default:
			resp = errorResponse(req.ID, protocol.MethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
		}

		data, err := json.Marshal(resp)
		if err != nil {
			e.logger.Error("failed to marshal server-request response", zap.Error(err))
			return
		}
		if err := e.transport.Send(ctx, data); err != nil {
			e.logger.Error("failed to send server-request response", zap.Error(err))
		}
	}()
}

func errorResponse(id *protocol.RequestID, code int, message string) *protocol.Response {
	return &protocol.Response{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      id,
		Error:   protocol.NewError(code, message, nil),
	}
}

func resultResponse(id *protocol.RequestID, result interface{}) *protocol.Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, protocol.InternalError, fmt.Sprintf("failed to marshal result: %v", err))
	}
	return &protocol.Response{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      id,
		Result:  raw,
	}
}
