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
// Package transport implements SSE parsing for streamable-http transport.
package transport

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// SSEParser is a stateful, single-threaded, incremental Server-Sent Events
// parser fed one line at a time, per the WHATWG SSE specification. Unlike a
// stream-to-slice parser, it preserves eventType and eventId across flushed
// events: a later event with no event: line keeps the most recently seen
// type, and one with no id: line keeps the most recently seen id.
type SSEParser struct {
	reader *bufio.Reader

	dataBuffer []string // data: lines accumulated for the in-progress event
	eventType  string   // persists across events; defaults to "message"
	eventID    string   // persists across events until id: sets a new one
	retry      int      // transient; cleared after each flush
}

// NewSSEParser creates a new SSE parser reading from r.
func NewSSEParser(r io.Reader) *SSEParser {
	return &SSEParser{
		reader:    bufio.NewReader(r),
		eventType: "message",
	}
}

// ParseEvent reads lines until an event is flushed (a blank line terminates
// an event with pending data) or the stream ends. Returns io.EOF once the
// underlying reader is exhausted and there is no event to flush.
func (p *SSEParser) ParseEvent() (*SSEEvent, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// A last line with no trailing newline is still a field line.
				if line != "" {
					p.ParseLine(strings.TrimSuffix(line, "\r"))
				}
				if ev := p.flush(); ev != nil {
					return ev, nil
				}
				return nil, io.EOF
			}
			return nil, err
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		if ev := p.ParseLine(line); ev != nil {
			return ev, nil
		}
	}
}

// ParseLine feeds a single line (without its trailing newline) into the
// parser's state machine. It returns a non-nil *SSEEvent when the line is a
// blank line and at least one data: line has been buffered since the last
// flush (the event's Data is empty if those lines were empty); otherwise it
// returns nil and the caller should feed the next line.
func (p *SSEParser) ParseLine(line string) *SSEEvent {
	if line == "" {
		return p.flush()
	}

	// Comment line.
	if strings.HasPrefix(line, ":") {
		return nil
	}

	field := line
	value := ""
	if idx := strings.IndexByte(line, ':'); idx != -1 {
		field = line[:idx]
		value = line[idx+1:]
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "event":
		p.eventType = value
	case "data":
		p.dataBuffer = append(p.dataBuffer, value)
	case "id":
		if !strings.ContainsRune(value, ' ') {
			p.eventID = value
		}
	case "retry":
		if ms, err := strconv.Atoi(value); err == nil {
			p.retry = ms
		}
	default:
		// Unknown field: ignore per spec.
	}
	return nil
}

// flush emits the pending event if any data has been buffered, clearing the
// data buffer and retry value but preserving eventType and eventID.
func (p *SSEParser) flush() *SSEEvent {
	if len(p.dataBuffer) == 0 {
		return nil
	}
	ev := &SSEEvent{
		Type:  p.eventType,
		ID:    p.eventID,
		Data:  []byte(strings.Join(p.dataBuffer, "\n")),
		Retry: p.retry,
	}
	p.dataBuffer = nil
	p.retry = 0
	return ev
}

// Flush emits any event buffered from data: lines that never saw a
// terminating blank line (e.g. at EOF of a batch write). Intended for
// callers feeding lines manually via ParseLine.
func (p *SSEParser) Flush() *SSEEvent {
	return p.flush()
}

// ParseAll reads all remaining events from the stream until EOF.
func (p *SSEParser) ParseAll() ([]SSEEvent, error) {
	var events []SSEEvent

	for {
		event, err := p.ParseEvent()
		if err != nil {
			if err == io.EOF {
				break
			}
			return events, err
		}
		events = append(events, *event)
	}

	return events, nil
}
