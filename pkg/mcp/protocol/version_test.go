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

func TestIsValidVersionFormat(t *testing.T) {
	cases := []struct {
		v     string
		valid bool
	}{
		{"2025-03-26", true},
		{"2024-11-05", true},
		{"2024-02-29", true},  // leap year
		{"2025-02-29", false}, // not a leap year
		{"2025-02-31", false}, // no such day
		{"2025-13-01", false}, // no such month
		{"2025-00-10", false},
		{"2025-03-00", false},
		{"25-03-26", false},
		{"2025/03/26", false},
		{"", false},
		{"not-a-date", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.valid, IsValidVersionFormat(c.v), "version=%q", c.v)
	}
}

func TestIsSupportedVersion(t *testing.T) {
	assert.True(t, IsSupportedVersion("2025-03-26"))
	assert.True(t, IsSupportedVersion("2024-11-05"))
	assert.False(t, IsSupportedVersion("2023-01-01"))
	assert.False(t, IsSupportedVersion("2025-02-31")) // malformed is never supported
}

func TestNegotiateVersion(t *testing.T) {
	v, ok := NegotiateVersion("2024-11-05")
	assert.True(t, ok)
	assert.Equal(t, "2024-11-05", v)

	_, ok = NegotiateVersion("1999-01-01")
	assert.False(t, ok)

	_, ok = NegotiateVersion("2025-02-31")
	assert.False(t, ok)
}

func TestDeriveFeatureFlags(t *testing.T) {
	newFlags := DeriveFeatureFlags("2025-03-26")
	assert.True(t, newFlags.Completions)
	assert.True(t, newFlags.AudioContent)
	assert.True(t, newFlags.ToolAnnotations)
	assert.True(t, newFlags.BatchRequests)

	oldFlags := DeriveFeatureFlags("2024-11-05")
	assert.False(t, oldFlags.Completions)
	assert.False(t, oldFlags.AudioContent)
	assert.False(t, oldFlags.ToolAnnotations)
	assert.True(t, oldFlags.BatchRequests)
}
