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
	"sync"

	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/protocol"
)

// ProgressHandler is invoked for each notifications/progress update
// associated with a request's progress token, in arrival order, strictly
// before the request's terminal response or error.
type ProgressHandler func(progress float64, total *float64, message *string)

// progressManager maps progress tokens to the handler registered by send,
// for the lifetime of the associated request.
type progressManager struct {
	mu       sync.Mutex
	handlers map[string]ProgressHandler
}

func newProgressManager() *progressManager {
	return &progressManager{handlers: make(map[string]ProgressHandler)}
}

// register associates a handler with a token, keyed by its string form.
func (p *progressManager) register(token *protocol.RequestID, handler ProgressHandler) {
	if token == nil || handler == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[token.String()] = handler
}

// unregister removes the handler for a token; called on any terminal
// outcome of the associated request.
func (p *progressManager) unregister(token *protocol.RequestID) {
	if token == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.handlers, token.String())
}

// dispatch looks up the handler for params.ProgressToken and invokes it.
// Unknown tokens are silently ignored per spec.
func (p *progressManager) dispatch(params protocol.ProgressParams) {
	if params.ProgressToken == nil {
		return
	}
	p.mu.Lock()
	handler, ok := p.handlers[params.ProgressToken.String()]
	p.mu.Unlock()
	if !ok {
		return
	}
	handler(params.Progress, params.Total, params.Message)
}
