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
	"encoding/json"
	"fmt"

	"github.com/teradata-labs/mcp-endpoint/pkg/mcp/protocol"
)

// unmarshalResult decodes a successful response's raw result payload into
// out, surfacing any wire-level error carried on the response itself.
func unmarshalResult(resp *protocol.Response, out interface{}) error {
	if resp == nil {
		return fmt.Errorf("nil response")
	}
	if resp.Error != nil {
		return fmt.Errorf("%s", resp.Error.Message)
	}
	return json.Unmarshal(resp.Result, out)
}
