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
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message is the tagged union over the wire: *Request, *Response, or
// *Notification. Classify returns the concrete type; callers type-switch.
type Message interface {
	isMessage()
}

func (*Request) isMessage()      {}
func (*Response) isMessage()     {}
func (*Notification) isMessage() {}

// envelope peeks at the fields present on a raw message without committing
// to a shape, so Classify can decide which concrete type to decode into.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// Classify decodes a raw JSON-RPC message and returns the concrete shape it
// matches: Request (id+method), Notification (method, no id), or Response
// (id+result or id+error). Ambiguous or malformed input is a ParseError;
// a non-"2.0" jsonrpc field is an InvalidRequest error.
func Classify(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, NewError(ParseError, fmt.Sprintf("invalid JSON-RPC message: %v", err), nil)
	}

	if env.JSONRPC != JSONRPCVersion {
		return nil, NewError(InvalidRequest, fmt.Sprintf("unsupported jsonrpc version %q", env.JSONRPC), nil)
	}

	hasID := len(env.ID) > 0 && string(env.ID) != "null"
	hasMethod := env.Method != ""
	hasResult := len(env.Result) > 0
	hasError := len(env.Error) > 0

	switch {
	case hasMethod && hasID:
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, NewError(ParseError, fmt.Sprintf("invalid request: %v", err), nil)
		}
		return &req, nil

	case hasMethod && !hasID:
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, NewError(ParseError, fmt.Sprintf("invalid notification: %v", err), nil)
		}
		return &n, nil

	case hasID && (hasResult || hasError):
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, NewError(ParseError, fmt.Sprintf("invalid response: %v", err), nil)
		}
		return &resp, nil

	default:
		return nil, NewError(ParseError, "cannot classify message: ambiguous field presence", nil)
	}
}
