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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/protocol"
	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/transport"
	"go.uber.org/zap"
)

// SamplingHandler answers server-initiated sampling/createMessage requests.
type SamplingHandler func(ctx context.Context, params protocol.SamplingParams) (*protocol.SamplingResult, error)

type sendOutcome struct {
	resp *protocol.Response
	err  error
}

type pendingRequest struct {
	id     *protocol.RequestID
	method string
	ch     chan sendOutcome
}

// Endpoint is a single connected MCP peer session: the state machine,
// request multiplexer, and inbound dispatch described by the runtime this
// package implements. One Endpoint wraps exactly one transport.Transport at
// a time.
type Endpoint struct {
	cfg    Config
	logger *zap.Logger

	clientInfo protocol.Implementation
	clientCaps protocol.ClientCapabilities

	tracker  *stateTracker
	progress *progressManager

	transport transport.Transport
	checker   *transport.HealthChecker

	pendingMu sync.Mutex
	pending   map[string]*pendingRequest

	rootsMu sync.RWMutex
	roots   []protocol.Root

	handlersMu     sync.RWMutex
	handlersActive bool
	samplingHandler SamplingHandler

	notifMu       sync.RWMutex
	notifications chan protocol.OpaqueNotification

	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Endpoint that has not yet been started.
func New(cfg Config) *Endpoint {
	cfg = cfg.withDefaults()
	caps := protocol.ClientCapabilities{}
	if cfg.SupportsRoots {
		caps.Roots = &protocol.RootsCapability{}
	}
	if cfg.SupportsSampling {
		caps.Sampling = &protocol.SamplingCapability{}
	}

	e := &Endpoint{
		cfg:             cfg,
		logger:          cfg.Logger,
		clientInfo:      protocol.Implementation{Name: cfg.ClientName, Version: cfg.ClientVersion},
		clientCaps:      caps,
		tracker:         newStateTracker(),
		progress:        newProgressManager(),
		pending:         make(map[string]*pendingRequest),
		samplingHandler: cfg.SamplingHandler,
		notifications:   make(chan protocol.OpaqueNotification, cfg.NotificationBuffer),
	}
	return e
}

// State returns the endpoint's current lifecycle state.
func (e *Endpoint) State() State { return e.tracker.State() }

// Session returns the negotiated session info, or nil outside Running.
func (e *Endpoint) Session() *SessionInfo { return e.tracker.Session() }

// Events returns a channel of subsequent connection state transitions.
func (e *Endpoint) Events() <-chan ConnectionEvent { return e.tracker.subscribe() }

// Notifications returns the public stream of server notifications that
// aren't consumed internally (progress and cancellation are intercepted by
// the message pump and never appear here).
func (e *Endpoint) Notifications() <-chan protocol.OpaqueNotification {
	e.notifMu.RLock()
	defer e.notifMu.RUnlock()
	return e.notifications
}

// SetSamplingHandler registers (or clears, with nil) the callback used to
// answer server-initiated sampling/createMessage requests.
func (e *Endpoint) SetSamplingHandler(handler SamplingHandler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.samplingHandler = handler
}

func (e *Endpoint) setHandlersActive(active bool) {
	e.handlersMu.Lock()
	e.handlersActive = active
	e.handlersMu.Unlock()
}

// Start establishes transport and performs the MCP initialization handshake.
// If the endpoint is already Running, it is stopped (cancelling any pending
// requests) before the new transport is started — see DESIGN.md's Open
// Question decision on restart semantics.
func (e *Endpoint) Start(ctx context.Context, tr transport.Transport) error {
	if e.tracker.State() == StateRunning {
		if err := e.Stop(true); err != nil && !errors.Is(err, ErrAlreadyClosed) {
			return fmt.Errorf("stopping previous session: %w", err)
		}
	}

	e.mu.Lock()
	e.closed = false
	e.transport = tr
	pumpCtx, cancel := context.WithCancel(context.Background())
	e.ctx = pumpCtx
	e.cancel = cancel
	e.mu.Unlock()

	e.notifMu.Lock()
	e.notifications = make(chan protocol.OpaqueNotification, e.cfg.NotificationBuffer)
	e.notifMu.Unlock()

	e.pendingMu.Lock()
	e.pending = make(map[string]*pendingRequest)
	e.pendingMu.Unlock()

	e.tracker.set(StateConnecting, nil, nil)

	if starter, ok := tr.(interface {
		Start(context.Context) error
	}); ok {
		startCtx, cancelStart := context.WithTimeout(ctx, e.cfg.ConnectTimeout)
		err := starter.Start(startCtx)
		cancelStart()
		if err != nil {
			e.tracker.set(StateFailed, nil, err)
			return fmt.Errorf("transport start: %w", err)
		}
	}

	if err := e.awaitConnected(ctx, tr); err != nil {
		e.tracker.set(StateFailed, nil, err)
		return err
	}

	e.wg.Add(1)
	go e.pump()
	e.setHandlersActive(true)

	e.tracker.set(StateInitializing, nil, nil)

	if err := e.initialize(ctx); err != nil {
		e.tracker.set(StateFailed, nil, err)
		return err
	}

	if e.cfg.HealthCheck != nil {
		e.checker = transport.NewHealthChecker(*e.cfg.HealthCheck, e.Ping, func(err error) {
			e.fail(fmt.Errorf("health check exhausted: %w", err))
		}, e.logger)
		e.checker.Start()
	}

	return nil
}

// awaitConnected blocks until tr reports StateConnected, StateFailed, the
// connect timeout elapses, or ctx is cancelled.
func (e *Endpoint) awaitConnected(ctx context.Context, tr transport.Transport) error {
	if tr.State() == transport.StateConnected {
		return nil
	}

	changes := tr.StateChanges()
	timer := time.NewTimer(e.cfg.ConnectTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("transport did not connect within %s", e.cfg.ConnectTimeout)
		case s := <-changes:
			if s == transport.StateConnected {
				return nil
			}
			if s == transport.StateFailed {
				return fmt.Errorf("transport failed to connect")
			}
		}
	}
}

// initialize performs the MCP handshake: send initialize, validate the
// negotiated version, emit notifications/initialized, and set Running.
func (e *Endpoint) initialize(ctx context.Context) error {
	id := protocol.NewStringRequestID(uuid.NewString())

	params := protocol.InitializeParams{
		ProtocolVersion: protocol.CurrentVersion,
		Capabilities:    e.clientCaps,
		ClientInfo:      e.clientInfo,
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal initialize params: %w", err)
	}

	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      id,
		Method:  protocol.MethodInitialize,
		Params:  paramsJSON,
	}

	resp, err := e.roundTrip(ctx, req, e.cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return fmt.Errorf("parse initialize result: %w", err)
	}

	version, ok := protocol.NegotiateVersion(result.ProtocolVersion)
	if !ok {
		return fmt.Errorf("%w: server offered %q", ErrUnsupportedVersion, result.ProtocolVersion)
	}

	session := &SessionInfo{
		ProtocolVersion: version,
		ServerInfo:      result.ServerInfo,
		Capabilities:    result.Capabilities,
		Features:        protocol.DeriveFeatureFlags(version),
	}

	notif := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  protocol.NotificationInitialized,
	}
	notifJSON, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal initialized notification: %w", err)
	}
	if err := e.transport.Send(ctx, notifJSON); err != nil {
		return fmt.Errorf("send initialized notification: %w", err)
	}

	e.tracker.set(StateRunning, session, nil)
	e.logger.Info("MCP endpoint running",
		zap.String("server", session.ServerInfo.Name),
		zap.String("protocolVersion", session.ProtocolVersion),
	)
	return nil
}

// Ping sends a ping and waits for the empty response; used as the health
// check's probe function.
func (e *Endpoint) Ping(ctx context.Context) error {
	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      protocol.NewStringRequestID(uuid.NewString()),
		Method:  protocol.MethodPing,
		Params:  json.RawMessage(`{}`),
	}
	_, err := e.roundTrip(ctx, req, e.cfg.SendTimeout)
	return err
}

// Stop tears down the endpoint: cancels the message pump and health check,
// optionally completes pending requests with ErrConnectionClosed, closes the
// transport, and transitions to Disconnected. It is an error to call Stop
// twice without an intervening Start.
func (e *Endpoint) Stop(cancelPending bool) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrAlreadyClosed
	}
	e.closed = true
	cancel := e.cancel
	tr := e.transport
	e.mu.Unlock()

	e.setHandlersActive(false)

	if e.checker != nil {
		e.checker.Stop()
		e.checker = nil
	}

	if cancel != nil {
		cancel()
	}

	if cancelPending {
		e.cancelAllPending(ErrConnectionClosed)
	}

	if tr != nil {
		if err := tr.Close(); err != nil {
			e.logger.Warn("error closing transport", zap.Error(err))
		}
	}

	e.wg.Wait()

	e.tracker.set(StateDisconnected, nil, nil)
	e.logger.Info("MCP endpoint stopped")
	return nil
}

func (e *Endpoint) cancelAllPending(err error) {
	e.pendingMu.Lock()
	pending := e.pending
	e.pending = make(map[string]*pendingRequest)
	e.pendingMu.Unlock()

	for _, pr := range pending {
		e.progress.unregister(pr.id)
		select {
		case pr.ch <- sendOutcome{err: err}:
		default:
		}
	}
}

// fail transitions the endpoint to Failed, cancelling pending requests and
// clearing server-request handlers, per the runtime's error-handling design.
func (e *Endpoint) fail(err error) {
	e.setHandlersActive(false)
	e.cancelAllPending(err)
	e.tracker.set(StateFailed, nil, err)
	e.logger.Error("MCP endpoint failed", zap.Error(err))
}
