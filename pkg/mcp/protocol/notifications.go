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

// CancelledParams is the payload of notifications/cancelled.
type CancelledParams struct {
	RequestID *RequestID `json:"requestId"`
	Reason    string     `json:"reason,omitempty"`
}

// ProgressParams is the payload of notifications/progress. Message is a
// pointer so callers can distinguish "the server sent no message" (nil) from
// "the server sent an empty message" ("").
type ProgressParams struct {
	ProgressToken *RequestID `json:"progressToken"`
	Progress      float64    `json:"progress"`
	Total         *float64   `json:"total,omitempty"`
	Message       *string    `json:"message,omitempty"`
}

// ResourceUpdatedParams is the payload of notifications/resources/updated.
type ResourceUpdatedParams struct {
	URI string `json:"uri"`
}

// LogMessageParams is the payload of notifications/message.
type LogMessageParams struct {
	Level  string `json:"level"`
	Logger string `json:"logger,omitempty"`
	Data   Value  `json:"data"`
}

// OpaqueNotification wraps an inbound notification whose method this
// implementation doesn't recognize. Unknown notifications are preserved and
// surfaced to the application rather than discarded.
type OpaqueNotification struct {
	Method string `json:"method"`
	Params Value  `json:"params,omitempty"`
}
