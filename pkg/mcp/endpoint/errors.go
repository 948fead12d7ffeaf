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

import "errors"

// Sentinel errors for exhaustively-enumerable conditions; wrapped with
// fmt.Errorf("...: %w", err) at call boundaries where more context helps.
var (
	// ErrInvalidState is returned by send when the endpoint is not Running.
	ErrInvalidState = errors.New("endpoint: invalid state for this operation")
	// ErrConnectionClosed is used to complete pending requests on stop/teardown.
	ErrConnectionClosed = errors.New("endpoint: connection closed")
	// ErrCapabilityNotSupported is returned when the server's capabilities
	// don't gate in the requested method.
	ErrCapabilityNotSupported = errors.New("endpoint: server does not support this capability")
	// ErrUnsupportedVersion is returned when the server's negotiated
	// protocolVersion is not in the supported set.
	ErrUnsupportedVersion = errors.New("endpoint: unsupported protocol version")
	// ErrRequestTimeout is returned when sendTimeout elapses with no response.
	ErrRequestTimeout = errors.New("endpoint: request timed out")
	// ErrRequestCancelled is returned when a request is cancelled locally or
	// by a notifications/cancelled from the server.
	ErrRequestCancelled = errors.New("endpoint: request cancelled")
	// ErrAlreadyClosed is returned by Stop when called after a prior Stop.
	ErrAlreadyClosed = errors.New("endpoint: already stopped")
)
