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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllowedUngatedMethods(t *testing.T) {
	assert.True(t, IsAllowed(MethodInitialize, ClientCapabilities{}, ServerCapabilities{}, FeatureFlags{}))
	assert.True(t, IsAllowed(MethodPing, ClientCapabilities{}, ServerCapabilities{}, FeatureFlags{}))
}

func TestIsAllowedUnknownMethod(t *testing.T) {
	assert.False(t, IsAllowed("bogus/method", ClientCapabilities{}, ServerCapabilities{}, FeatureFlags{}))
}

func TestIsAllowedToolsGate(t *testing.T) {
	assert.False(t, IsAllowed(MethodToolsList, ClientCapabilities{}, ServerCapabilities{}, FeatureFlags{}))
	assert.True(t, IsAllowed(MethodToolsList, ClientCapabilities{}, ServerCapabilities{Tools: &ToolsCapability{}}, FeatureFlags{}))
	assert.True(t, IsAllowed(MethodToolsCall, ClientCapabilities{}, ServerCapabilities{Tools: &ToolsCapability{}}, FeatureFlags{}))
}

func TestIsAllowedResourcesSubscribeGate(t *testing.T) {
	withResources := ServerCapabilities{Resources: &ResourcesCapability{}}
	withSubscribe := ServerCapabilities{Resources: &ResourcesCapability{Subscribe: true}}

	assert.True(t, IsAllowed(MethodResourcesList, ClientCapabilities{}, withResources, FeatureFlags{}))
	assert.False(t, IsAllowed(MethodResourcesSubscribe, ClientCapabilities{}, withResources, FeatureFlags{}))
	assert.True(t, IsAllowed(MethodResourcesSubscribe, ClientCapabilities{}, withSubscribe, FeatureFlags{}))
	assert.True(t, IsAllowed(MethodResourcesUnsubscribe, ClientCapabilities{}, withSubscribe, FeatureFlags{}))
}

func TestIsAllowedPromptsAndLoggingGates(t *testing.T) {
	assert.False(t, IsAllowed(MethodPromptsList, ClientCapabilities{}, ServerCapabilities{}, FeatureFlags{}))
	assert.True(t, IsAllowed(MethodPromptsGet, ClientCapabilities{}, ServerCapabilities{Prompts: &PromptsCapability{}}, FeatureFlags{}))

	assert.False(t, IsAllowed(MethodLoggingSetLevel, ClientCapabilities{}, ServerCapabilities{}, FeatureFlags{}))
	assert.True(t, IsAllowed(MethodLoggingSetLevel, ClientCapabilities{}, ServerCapabilities{Logging: &LoggingCapability{}}, FeatureFlags{}))
}

func TestIsAllowedCompletionGate(t *testing.T) {
	assert.False(t, IsAllowed(MethodCompletionComplete, ClientCapabilities{}, ServerCapabilities{}, FeatureFlags{Completions: false}))
	assert.True(t, IsAllowed(MethodCompletionComplete, ClientCapabilities{}, ServerCapabilities{}, FeatureFlags{Completions: true}))
}

func TestIsAllowedServerToClientGates(t *testing.T) {
	assert.False(t, IsAllowed(MethodRootsList, ClientCapabilities{}, ServerCapabilities{}, FeatureFlags{}))
	assert.True(t, IsAllowed(MethodRootsList, ClientCapabilities{Roots: &RootsCapability{}}, ServerCapabilities{}, FeatureFlags{}))

	assert.False(t, IsAllowed(MethodSamplingCreateMessage, ClientCapabilities{}, ServerCapabilities{}, FeatureFlags{}))
	assert.True(t, IsAllowed(MethodSamplingCreateMessage, ClientCapabilities{Sampling: &SamplingCapability{}}, ServerCapabilities{}, FeatureFlags{}))
}

func TestMethodDirections(t *testing.T) {
	assert.Equal(t, ClientToServer, Methods[MethodToolsCall].Direction)
	assert.Equal(t, ServerToClient, Methods[MethodRootsList].Direction)
	assert.Equal(t, ServerToClient, Methods[MethodSamplingCreateMessage].Direction)
}
