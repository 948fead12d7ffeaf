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
	"time"

	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/transport"
	"go.uber.org/zap"
)

// Config configures an Endpoint.
type Config struct {
	Logger *zap.Logger

	// ClientInfo identifies this client during initialize.
	ClientName    string
	ClientVersion string

	// Capabilities this client declares during initialize.
	SupportsSampling bool
	SupportsRoots    bool

	// SendTimeout bounds how long a single send() waits for its correlated
	// response before completing with ErrRequestTimeout. Default: 30s.
	SendTimeout time.Duration

	// ConnectTimeout bounds transport establishment in Start. Default: 30s.
	ConnectTimeout time.Duration

	// SamplingHandler, if set, answers server-initiated sampling/createMessage
	// requests. If nil, the endpoint replies methodNotFound to that method.
	SamplingHandler SamplingHandler

	// NotificationBuffer sizes the public notification channel. Default: 100.
	NotificationBuffer int

	// HealthCheck, when set, runs a background ping loop; after
	// MaxReconnectAttempts consecutive failures the endpoint transitions to
	// Failed. Nil disables health checking.
	HealthCheck *transport.HealthCheckConfig
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.NotificationBuffer <= 0 {
		c.NotificationBuffer = 100
	}
	return c
}
