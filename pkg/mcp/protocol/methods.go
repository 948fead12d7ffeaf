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

// Method names used on the wire.
const (
	MethodInitialize             = "initialize"
	MethodPing                   = "ping"
	MethodPromptsList            = "prompts/list"
	MethodPromptsGet             = "prompts/get"
	MethodResourcesList          = "resources/list"
	MethodResourcesTemplatesList = "resources/templates/list"
	MethodResourcesRead          = "resources/read"
	MethodResourcesSubscribe     = "resources/subscribe"
	MethodResourcesUnsubscribe   = "resources/unsubscribe"
	MethodToolsList              = "tools/list"
	MethodToolsCall              = "tools/call"
	MethodLoggingSetLevel        = "logging/setLevel"
	MethodCompletionComplete     = "completion/complete"
	MethodRootsList              = "roots/list"
	MethodSamplingCreateMessage  = "sampling/createMessage"
)

// Notification method names used on the wire.
const (
	NotificationInitialized          = "notifications/initialized"
	NotificationCancelled            = "notifications/cancelled"
	NotificationProgress             = "notifications/progress"
	NotificationRootsListChanged     = "notifications/roots/list_changed"
	NotificationResourcesListChanged = "notifications/resources/list_changed"
	NotificationPromptsListChanged   = "notifications/prompts/list_changed"
	NotificationToolsListChanged     = "notifications/tools/list_changed"
	NotificationResourcesUpdated     = "notifications/resources/updated"
	NotificationMessage              = "notifications/message"
)

// Direction identifies which side of a connection originates a method call.
type Direction int

const (
	// ClientToServer methods are sent by this endpoint to the remote server.
	ClientToServer Direction = iota
	// ServerToClient methods arrive from the remote server and are dispatched
	// to locally registered handlers.
	ServerToClient
)

// Gate decides whether a method may be used given the negotiated
// capabilities and feature flags. A nil Gate means the method is always
// allowed (e.g. initialize, ping).
type Gate func(client ClientCapabilities, server ServerCapabilities, features FeatureFlags) bool

// MethodSpec describes one typed MCP method: its direction and the
// capability gate that must pass before it may be invoked.
type MethodSpec struct {
	Name      string
	Direction Direction
	Gate      Gate
}

func gateServerTools(_ ClientCapabilities, server ServerCapabilities, _ FeatureFlags) bool {
	return server.Tools != nil
}

func gateServerResources(_ ClientCapabilities, server ServerCapabilities, _ FeatureFlags) bool {
	return server.Resources != nil
}

func gateServerResourcesSubscribe(_ ClientCapabilities, server ServerCapabilities, _ FeatureFlags) bool {
	return server.Resources != nil && server.Resources.Subscribe
}

func gateServerPrompts(_ ClientCapabilities, server ServerCapabilities, _ FeatureFlags) bool {
	return server.Prompts != nil
}

func gateServerLogging(_ ClientCapabilities, server ServerCapabilities, _ FeatureFlags) bool {
	return server.Logging != nil
}

func gateCompletions(_ ClientCapabilities, _ ServerCapabilities, features FeatureFlags) bool {
	return features.Completions
}

func gateClientRoots(client ClientCapabilities, _ ServerCapabilities, _ FeatureFlags) bool {
	return client.Roots != nil
}

func gateClientSampling(client ClientCapabilities, _ ServerCapabilities, _ FeatureFlags) bool {
	return client.Sampling != nil
}

// Methods is the method table: every typed MCP method this implementation
// knows how to send or dispatch, keyed by wire name.
var Methods = map[string]MethodSpec{
	MethodInitialize: {Name: MethodInitialize, Direction: ClientToServer, Gate: nil},
	MethodPing:       {Name: MethodPing, Direction: ClientToServer, Gate: nil},

	MethodPromptsList: {Name: MethodPromptsList, Direction: ClientToServer, Gate: gateServerPrompts},
	MethodPromptsGet:  {Name: MethodPromptsGet, Direction: ClientToServer, Gate: gateServerPrompts},

	MethodResourcesList:          {Name: MethodResourcesList, Direction: ClientToServer, Gate: gateServerResources},
	MethodResourcesTemplatesList: {Name: MethodResourcesTemplatesList, Direction: ClientToServer, Gate: gateServerResources},
	MethodResourcesRead:          {Name: MethodResourcesRead, Direction: ClientToServer, Gate: gateServerResources},
	MethodResourcesSubscribe:     {Name: MethodResourcesSubscribe, Direction: ClientToServer, Gate: gateServerResourcesSubscribe},
	MethodResourcesUnsubscribe:   {Name: MethodResourcesUnsubscribe, Direction: ClientToServer, Gate: gateServerResourcesSubscribe},

	MethodToolsList: {Name: MethodToolsList, Direction: ClientToServer, Gate: gateServerTools},
	MethodToolsCall: {Name: MethodToolsCall, Direction: ClientToServer, Gate: gateServerTools},

	MethodLoggingSetLevel: {Name: MethodLoggingSetLevel, Direction: ClientToServer, Gate: gateServerLogging},

	MethodCompletionComplete: {Name: MethodCompletionComplete, Direction: ClientToServer, Gate: gateCompletions},

	MethodRootsList:             {Name: MethodRootsList, Direction: ServerToClient, Gate: gateClientRoots},
	MethodSamplingCreateMessage: {Name: MethodSamplingCreateMessage, Direction: ServerToClient, Gate: gateClientSampling},
}

// IsAllowed reports whether method may be invoked given the current
// capabilities and feature flags. Unknown methods are never allowed.
func IsAllowed(method string, client ClientCapabilities, server ServerCapabilities, features FeatureFlags) bool {
	spec, ok := Methods[method]
	if !ok {
		return false
	}
	if spec.Gate == nil {
		return true
	}
	return spec.Gate(client, server, features)
}
