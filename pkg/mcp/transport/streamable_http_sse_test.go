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
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseServer builds a test server whose GET handler streams the given raw SSE
// body once, flushing immediately, then blocks until the request context is
// cancelled (mimicking a long-lived stream).
func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, body)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
}

func TestStreamableHTTPDiscoversPostURLFromEndpointEvent(t *testing.T) {
	var gotPost int32
	var postServer *httptest.Server
	postServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&gotPost, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{}}`)
	}))
	defer postServer.Close()

	sseSrv := sseServer(t, "event: endpoint\ndata: "+postServer.URL+"\n\n")
	defer sseSrv.Close()

	tr, err := NewStreamableHTTPTransport(StreamableHTTPConfig{
		Endpoint:        sseSrv.URL,
		DiscoverPostURL: true,
	})
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Start(ctx))

	require.Eventually(t, func() bool {
		return tr.State() == StateConnected
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&gotPost) >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestStreamableHTTPQueuesSendUntilPostURLKnown(t *testing.T) {
	sseSrv := sseServer(t, "")
	defer sseSrv.Close()

	tr, err := NewStreamableHTTPTransport(StreamableHTTPConfig{
		Endpoint:        sseSrv.URL,
		DiscoverPostURL: true,
	})
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Start(ctx))

	require.NoError(t, tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)))

	tr.mu.Lock()
	queued := len(tr.pending)
	tr.mu.Unlock()
	assert.Equal(t, 1, queued)
}

func TestStreamableHTTPMessageEventDelivered(t *testing.T) {
	sseSrv := sseServer(t, "event: message\ndata: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/progress\"}\n\n")
	defer sseSrv.Close()

	tr, err := NewStreamableHTTPTransport(StreamableHTTPConfig{Endpoint: sseSrv.URL})
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Start(ctx))

	recvCtx, recvCancel := context.WithTimeout(context.Background(), time.Second)
	defer recvCancel()
	msg, err := tr.Receive(recvCtx)
	require.NoError(t, err)
	assert.Contains(t, string(msg), "notifications/progress")
}

func TestStreamableHTTPUnknownEventTypeIgnored(t *testing.T) {
	sseSrv := sseServer(t, "event: heartbeat\ndata: irrelevant\n\nevent: message\ndata: {\"jsonrpc\":\"2.0\",\"method\":\"ping\"}\n\n")
	defer sseSrv.Close()

	tr, err := NewStreamableHTTPTransport(StreamableHTTPConfig{Endpoint: sseSrv.URL})
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Start(ctx))

	recvCtx, recvCancel := context.WithTimeout(context.Background(), time.Second)
	defer recvCancel()
	msg, err := tr.Receive(recvCtx)
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"method":"ping"`)
}

func TestStreamableHTTPReconnectExhaustsAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr, err := NewStreamableHTTPTransport(StreamableHTTPConfig{
		Endpoint: srv.URL,
		RetryPolicy: &RetryPolicy{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
			Kind:        RetryConstant,
		},
	})
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Start(ctx))

	require.Eventually(t, func() bool {
		return tr.State() == StateFailed
	}, time.Second, 5*time.Millisecond)

	_, err = tr.Receive(context.Background())
	assert.Error(t, err)
}
