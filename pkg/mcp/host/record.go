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
	"sync"
	"time"

	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/endpoint"
	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/protocol"
	"go.uber.org/zap"
)

// Feature names used with connectionsSupporting and capability gating.
const (
	FeatureTools     = "tools"
	FeatureResources = "resources"
	FeaturePrompts   = "prompts"
	FeatureLogging   = "logging"

	FeatureCompletions     = "completions"
	FeatureAudioContent    = "audio_content"
	FeatureToolAnnotations = "tool_annotations"
	FeatureBatchRequests   = "batch_requests"
)

// ConnectionRecord is the host's view of one connected MCP server: the
// endpoint it owns, the negotiated session, and caches of the server's
// tools/resources/prompts refreshed on demand or by list-changed
// notifications.
type ConnectionRecord struct {
	ID       string
	Endpoint *endpoint.Endpoint

	mu             sync.RWMutex
	serverInfo     protocol.Implementation
	capabilities   protocol.ServerCapabilities
	features       protocol.FeatureFlags
	tools          []protocol.Tool
	resources      []protocol.Resource
	prompts        []protocol.Prompt
	lastActivity   time.Time
	reconnectCount int
	refreshing     map[string]bool
}

func newConnectionRecord(id string, ep *endpoint.Endpoint) *ConnectionRecord {
	return &ConnectionRecord{
		ID:           id,
		Endpoint:     ep,
		lastActivity: time.Now(),
		refreshing:   make(map[string]bool),
	}
}

// touch updates lastActivity, called on every successful request or
// notification observed for this connection.
func (c *ConnectionRecord) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *ConnectionRecord) setSession(session *endpoint.SessionInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if session == nil {
		return
	}
	c.serverInfo = session.ServerInfo
	c.capabilities = session.Capabilities
	c.features = session.Features
}

// incrementReconnect records a reconnect attempt against this connection.
func (c *ConnectionRecord) incrementReconnect() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectCount++
	return c.reconnectCount
}

// ServerInfo returns the negotiated server implementation info.
func (c *ConnectionRecord) ServerInfo() protocol.Implementation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// Capabilities returns the negotiated server capabilities.
func (c *ConnectionRecord) Capabilities() protocol.ServerCapabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities
}

// Tools returns a snapshot of the cached tool list.
func (c *ConnectionRecord) Tools() []protocol.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]protocol.Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// Resources returns a snapshot of the cached resource list.
func (c *ConnectionRecord) Resources() []protocol.Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]protocol.Resource, len(c.resources))
	copy(out, c.resources)
	return out
}

// Prompts returns a snapshot of the cached prompt list.
func (c *ConnectionRecord) Prompts() []protocol.Prompt {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]protocol.Prompt, len(c.prompts))
	copy(out, c.prompts)
	return out
}

// LastActivity returns the time of the most recent successful request or
// notification observed for this connection.
func (c *ConnectionRecord) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

// ReconnectCount returns the number of times reconnect() has been invoked
// for this connection.
func (c *ConnectionRecord) ReconnectCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconnectCount
}

// supports reports whether the negotiated server capabilities include the
// named feature.
func (c *ConnectionRecord) supports(feature string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch feature {
	case FeatureTools:
		return c.capabilities.Tools != nil
	case FeatureResources:
		return c.capabilities.Resources != nil
	case FeaturePrompts:
		return c.capabilities.Prompts != nil
	case FeatureLogging:
		return c.capabilities.Logging != nil
	case FeatureCompletions:
		return c.features.Completions
	case FeatureAudioContent:
		return c.features.AudioContent
	case FeatureToolAnnotations:
		return c.features.ToolAnnotations
	case FeatureBatchRequests:
		return c.features.BatchRequests
	default:
		return false
	}
}

// Supports reports whether this connection's negotiated capabilities or
// protocol feature set include the named feature.
func (c *ConnectionRecord) Supports(feature string) bool {
	return c.supports(feature)
}

func (c *ConnectionRecord) beginRefresh(kind string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshing[kind] {
		return false
	}
	c.refreshing[kind] = true
	return true
}

func (c *ConnectionRecord) endRefresh(kind string) {
	c.mu.Lock()
	delete(c.refreshing, kind)
	c.mu.Unlock()
}

// refreshTools re-fetches the connection's tool list, subject to the
// server's tools capability. Failure is logged and leaves the cache
// unchanged. The refreshing flag is cleared on every exit path.
func (c *ConnectionRecord) refreshTools(ctx context.Context, logger *zap.Logger) error {
	if !c.beginRefresh(FeatureTools) {
		return nil
	}
	defer c.endRefresh(FeatureTools)

	if !c.supports(FeatureTools) {
		return nil
	}

	resp, err := c.Endpoint.Send(ctx, protocol.MethodToolsList, nil, nil)
	if err != nil {
		logger.Warn("refresh tools failed", zap.String("connection", c.ID), zap.Error(err))
		return err
	}

	var result protocol.ToolListResult
	if err := unmarshalResult(resp, &result); err != nil {
		logger.Warn("decode tools/list result failed", zap.String("connection", c.ID), zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.tools = result.Tools
	c.lastActivity = time.Now()
	c.mu.Unlock()
	return nil
}

// refreshResources re-fetches the connection's resource list.
func (c *ConnectionRecord) refreshResources(ctx context.Context, logger *zap.Logger) error {
	if !c.beginRefresh(FeatureResources) {
		return nil
	}
	defer c.endRefresh(FeatureResources)

	if !c.supports(FeatureResources) {
		return nil
	}

	resp, err := c.Endpoint.Send(ctx, protocol.MethodResourcesList, nil, nil)
	if err != nil {
		logger.Warn("refresh resources failed", zap.String("connection", c.ID), zap.Error(err))
		return err
	}

	var result protocol.ResourceListResult
	if err := unmarshalResult(resp, &result); err != nil {
		logger.Warn("decode resources/list result failed", zap.String("connection", c.ID), zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.resources = result.Resources
	c.lastActivity = time.Now()
	c.mu.Unlock()
	return nil
}

// refreshPrompts re-fetches the connection's prompt list.
func (c *ConnectionRecord) refreshPrompts(ctx context.Context, logger *zap.Logger) error {
	if !c.beginRefresh(FeaturePrompts) {
		return nil
	}
	defer c.endRefresh(FeaturePrompts)

	if !c.supports(FeaturePrompts) {
		return nil
	}

	resp, err := c.Endpoint.Send(ctx, protocol.MethodPromptsList, nil, nil)
	if err != nil {
		logger.Warn("refresh prompts failed", zap.String("connection", c.ID), zap.Error(err))
		return err
	}

	var result protocol.PromptListResult
	if err := unmarshalResult(resp, &result); err != nil {
		logger.Warn("decode prompts/list result failed", zap.String("connection", c.ID), zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.prompts = result.Prompts
	c.lastActivity = time.Now()
	c.mu.Unlock()
	return nil
}
