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
package config

import "github.com/teradata-labs/mcp-endpoint/pkg/mcp/transport"

// RetryPolicy converts the configuration surface's RetryConfig into the
// transport package's RetryPolicy.
func (r RetryConfig) RetryPolicy() transport.RetryPolicy {
	kind := transport.RetryExponential
	switch r.Policy {
	case "constant":
		kind = transport.RetryConstant
	case "linear":
		kind = transport.RetryLinear
	}
	return transport.RetryPolicy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		MaxDelay:    r.MaxDelay,
		Jitter:      r.Jitter,
		Kind:        kind,
	}
}

// TransportConfig converts the configuration surface's HealthCheckConfig
// into the transport package's HealthCheckConfig.
func (h HealthCheckConfig) TransportConfig() transport.HealthCheckConfig {
	return transport.HealthCheckConfig{
		Enabled:              h.Enabled,
		Interval:             h.Interval,
		MaxReconnectAttempts: h.MaxReconnectAttempts,
	}
}
