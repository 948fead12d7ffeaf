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
	"fmt"
	"sync"
	"time"

	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/endpoint"
	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/protocol"
	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/transport"
	"go.uber.org/zap"
)

// Host supervises a fleet of MCP connections, one ConnectionRecord per
// connectionId, fanning list-changed notifications into targeted cache
// refreshes and exposing a unified event stream to the application.
type Host struct {
	cfg    Config
	logger *zap.Logger

	mu          sync.RWMutex
	connections map[string]*ConnectionRecord
	cancelSubs  map[string]context.CancelFunc

	bus     *eventBus
	metrics *Metrics
}

// New creates a Host from cfg. It does not validate cfg; Config.Validate
// (called by LoadConfig) does that.
func New(cfg Config, logger *zap.Logger) (*Host, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		cfg:         cfg,
		logger:      logger,
		connections: make(map[string]*ConnectionRecord),
		cancelSubs:  make(map[string]context.CancelFunc),
		bus:         newEventBus(logger),
		metrics:     NewMetrics(),
	}, nil
}

// Subscribe returns the host's unified event stream.
func (h *Host) Subscribe() (<-chan Event, func()) {
	return h.bus.subscribe()
}

// Start connects every enabled server in the configuration. Partial
// failure is tolerated unless every server fails to connect.
func (h *Host) Start(ctx context.Context) error {
	var failures []error
	connected := 0
	for id, sc := range h.cfg.Servers {
		if !sc.Enabled {
			h.logger.Debug("skipping disabled server", zap.String("connection", id))
			continue
		}
		tr, err := h.buildTransport(id, sc)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", id, err))
			continue
		}
		if err := h.connect(ctx, id, tr); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", id, err))
			continue
		}
		connected++
	}
	if len(failures) > 0 && connected == 0 && len(h.cfg.Servers) > 0 {
		return fmt.Errorf("all servers failed to start: %v", failures)
	}
	if len(failures) > 0 {
		h.logger.Warn("some servers failed to start",
			zap.Int("failed", len(failures)), zap.Int("connected", connected))
	}
	return nil
}

// buildTransport constructs a transport.Transport for a ServerConfig.
func (h *Host) buildTransport(id string, sc ServerConfig) (transport.Transport, error) {
	named := h.logger.With(zap.String("connection", id))
	switch sc.Transport {
	case "", "stdio":
		return transport.NewStdioTransport(transport.StdioConfig{
			Command:        sc.Command,
			Args:           sc.Args,
			Env:            sc.Env,
			Logger:         named,
			MaxMessageSize: h.cfg.Endpoint.MaxMessageSize,
		})
	case "http", "sse":
		policy := h.cfg.Endpoint.Retry.RetryPolicy()
		validateCerts := h.cfg.Endpoint.ValidateCertificates
		return transport.NewStreamableHTTPTransport(transport.StreamableHTTPConfig{
			Endpoint:             sc.URL,
			DiscoverPostURL:      sc.DiscoverPostURL,
			EnableSessions:       true,
			EnableResumption:     h.cfg.Endpoint.AutoResumeStreams,
			RetryPolicy:          &policy,
			Logger:               named,
			MaxMessageSize:       h.cfg.Endpoint.MaxMessageSize,
			ValidateCertificates: &validateCerts,
		})
	default:
		return nil, fmt.Errorf("unsupported transport: %s (supported: stdio, http, sse)", sc.Transport)
	}
}

// connect builds an Endpoint over tr, starts it, and on reaching Running
// installs the record and its notification/state subscribers. Rejects a
// duplicate id.
func (h *Host) connect(ctx context.Context, id string, tr transport.Transport) error {
	h.mu.Lock()
	if _, exists := h.connections[id]; exists {
		h.mu.Unlock()
		return fmt.Errorf("connection %s already exists", id)
	}
	h.mu.Unlock()

	connCtx := ctx
	if h.cfg.Endpoint.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, h.cfg.Endpoint.ConnectTimeout)
		defer cancel()
	}

	var healthCfg *transport.HealthCheckConfig
	if h.cfg.Endpoint.HealthCheck.Enabled {
		hc := h.cfg.Endpoint.HealthCheck.TransportConfig()
		healthCfg = &hc
	}

	ep := endpoint.New(endpoint.Config{
		Logger:           h.logger.With(zap.String("connection", id)),
		ClientName:       h.cfg.ClientInfo.Name,
		ClientVersion:    h.cfg.ClientInfo.Version,
		SupportsRoots:    true,
		SupportsSampling: true,
		SendTimeout:      h.cfg.Endpoint.SendTimeout,
		ConnectTimeout:   h.cfg.Endpoint.ConnectTimeout,
		HealthCheck:      healthCfg,
	})

	if err := ep.Start(connCtx, tr); err != nil {
		return fmt.Errorf("start endpoint: %w", err)
	}
	if ep.State() != endpoint.StateRunning {
		ep.Stop(true)
		return fmt.Errorf("endpoint did not reach running state: %s", ep.State())
	}

	record := newConnectionRecord(id, ep)
	record.setSession(ep.Session())

	subCtx, cancel := context.WithCancel(context.Background())

	h.mu.Lock()
	h.connections[id] = record
	h.cancelSubs[id] = cancel
	h.mu.Unlock()

	go h.watchNotifications(subCtx, record)
	go h.watchState(subCtx, record)

	h.metrics.ConnectionsGauge.Inc()
	h.bus.publish(Event{Kind: EventConnectionAdded, ConnectionID: id})
	return nil
}

// AddServer connects a new, previously-unconfigured connectionId and, on
// success, stores its ServerConfig for future reference.
func (h *Host) AddServer(ctx context.Context, id string, sc ServerConfig) error {
	tr, err := h.buildTransport(id, sc)
	if err != nil {
		return err
	}
	if err := h.connect(ctx, id, tr); err != nil {
		return err
	}
	h.mu.Lock()
	if h.cfg.Servers == nil {
		h.cfg.Servers = make(map[string]ServerConfig)
	}
	h.cfg.Servers[id] = sc
	h.mu.Unlock()
	return nil
}

// disconnect stops the endpoint, cancels its subscribers, and removes the
// record.
func (h *Host) disconnect(id string) error {
	h.mu.Lock()
	record, exists := h.connections[id]
	if !exists {
		h.mu.Unlock()
		return fmt.Errorf("connection not found: %s", id)
	}
	cancel := h.cancelSubs[id]
	delete(h.connections, id)
	delete(h.cancelSubs, id)
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	err := record.Endpoint.Stop(true)
	h.metrics.ConnectionsGauge.Dec()
	h.bus.publish(Event{Kind: EventConnectionRemoved, ConnectionID: id})
	return err
}

// Disconnect is the exported form of disconnect.
func (h *Host) Disconnect(id string) error { return h.disconnect(id) }

// Stop disconnects every connection.
func (h *Host) Stop() error {
	h.mu.RLock()
	ids := make([]string, 0, len(h.connections))
	for id := range h.connections {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if err := h.disconnect(id); err != nil {
			errs = append(errs, err)
		}
	}
	h.bus.closeAll()
	if len(errs) > 0 {
		return fmt.Errorf("errors stopping connections: %v", errs)
	}
	return nil
}

// Connection returns the record for id.
func (h *Host) Connection(id string) (*ConnectionRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.connections[id]
	return r, ok
}

// AllConnections returns every currently-tracked record.
func (h *Host) AllConnections() []*ConnectionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*ConnectionRecord, 0, len(h.connections))
	for _, r := range h.connections {
		out = append(out, r)
	}
	return out
}

// ConnectionsSupporting returns every record whose negotiated capabilities
// or feature flags include feature.
func (h *Host) ConnectionsSupporting(feature string) []*ConnectionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*ConnectionRecord
	for _, r := range h.connections {
		if r.supports(feature) {
			out = append(out, r)
		}
	}
	return out
}

// InactiveConnections returns every record whose lastActivity is older
// than timeout.
func (h *Host) InactiveConnections(timeout time.Duration) []*ConnectionRecord {
	cutoff := time.Now().Add(-timeout)
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*ConnectionRecord
	for _, r := range h.connections {
		if r.LastActivity().Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// FailedConnections returns every record whose endpoint has transitioned
// to Failed.
func (h *Host) FailedConnections() []*ConnectionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*ConnectionRecord
	for _, r := range h.connections {
		if r.Endpoint.State() == endpoint.StateFailed {
			out = append(out, r)
		}
	}
	return out
}

// AvailableTools returns the union of every connection's cached tools,
// keyed by tool name; when several connections advertise the same name,
// which connection's Tool is returned is not defined.
func (h *Host) AvailableTools() []protocol.Tool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]bool)
	var out []protocol.Tool
	for _, r := range h.connections {
		for _, t := range r.Tools() {
			if seen[t.Name] {
				continue
			}
			seen[t.Name] = true
			out = append(out, t)
		}
	}
	return out
}

// SendRequest issues method on the named connection's endpoint, recording
// the round trip's latency on the host's request-latency histogram.
func (h *Host) SendRequest(ctx context.Context, id, method string, params interface{}) (*protocol.Response, error) {
	h.mu.RLock()
	record, exists := h.connections[id]
	h.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("connection not found: %s", id)
	}

	start := time.Now()
	resp, err := record.Endpoint.Send(ctx, method, params, nil)
	h.metrics.ObserveRequest(method, time.Since(start))
	if err == nil {
		record.touch()
	}
	return resp, err
}

// Reconnect increments the record's reconnectCount and delegates to the
// underlying endpoint's Start over a freshly supplied transport.
func (h *Host) Reconnect(ctx context.Context, id string, tr transport.Transport) error {
	h.mu.RLock()
	record, exists := h.connections[id]
	h.mu.RUnlock()
	if !exists {
		return fmt.Errorf("connection not found: %s", id)
	}
	n := record.incrementReconnect()
	h.metrics.ReconnectsCounter.Inc()
	h.logger.Info("reconnecting", zap.String("connection", id), zap.Int("attempt", n))

	if err := record.Endpoint.Start(ctx, tr); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	record.setSession(record.Endpoint.Session())
	return nil
}

// watchNotifications drains a record's endpoint notification stream,
// intercepting list-changed/updated notifications to trigger a targeted
// cache refresh and forwarding everything else unchanged onto the host's
// event bus.
func (h *Host) watchNotifications(ctx context.Context, record *ConnectionRecord) {
	notifications := record.Endpoint.Notifications()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			record.touch()
			h.routeNotification(ctx, record, n)
		}
	}
}

func (h *Host) routeNotification(ctx context.Context, record *ConnectionRecord, n protocol.OpaqueNotification) {
	switch n.Method {
	case protocol.NotificationToolsListChanged:
		if err := record.refreshTools(ctx, h.logger); err != nil {
			h.logger.Warn("tools refresh after list_changed failed", zap.String("connection", record.ID), zap.Error(err))
		}
	case protocol.NotificationResourcesListChanged:
		if err := record.refreshResources(ctx, h.logger); err != nil {
			h.logger.Warn("resources refresh after list_changed failed", zap.String("connection", record.ID), zap.Error(err))
		}
	case protocol.NotificationPromptsListChanged:
		if err := record.refreshPrompts(ctx, h.logger); err != nil {
			h.logger.Warn("prompts refresh after list_changed failed", zap.String("connection", record.ID), zap.Error(err))
		}
	case protocol.NotificationResourcesUpdated:
		if err := record.refreshResources(ctx, h.logger); err != nil {
			h.logger.Warn("resources refresh after updated failed", zap.String("connection", record.ID), zap.Error(err))
		}
	default:
		nCopy := n
		h.bus.publish(Event{Kind: EventNotification, ConnectionID: record.ID, Notification: &nCopy})
	}
}

// watchState republishes the endpoint's own connection-state transitions
// (e.g. a health-check-driven Failed) on the host's unified event stream.
func (h *Host) watchState(ctx context.Context, record *ConnectionRecord) {
	events := record.Endpoint.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.State == endpoint.StateRunning && ev.Session != nil {
				record.setSession(ev.Session)
			}
			h.bus.publish(Event{Kind: EventConnectionStateChanged, ConnectionID: record.ID, Err: ev.Err})
		}
	}
}
