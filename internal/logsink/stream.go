// Copyright 2026 github.com/DervexDev/racky
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logsink

import (
	"bytes"
	"strings"
	"sync"

	"github.com/armon/circbuf"
)

// tailSize bounds how much of a stream the supervisor keeps in memory for
// the Finished/Errored status payloads.
const tailSize = 2048

// TagStdout and TagStderr are the level tags program output is written
// under.
const (
	TagStdout = "INFO"
	TagStderr = "ERROR"
)

// StreamWriter adapts one child stream (stdout or stderr) to the sink:
// chunks are split into lines, each line is written tagged and
// timestamped, and a bounded tail is kept for status payloads. A
// StreamWriter is driven by a single goroutine (the exec copier).
type StreamWriter struct {
	sink *Sink
	tag  string
	buf  []byte
	tail *circbuf.Buffer
}

// StreamWriter returns a line-splitting writer for one child stream.
func (s *Sink) StreamWriter(tag string) *StreamWriter {
	tail, _ := circbuf.NewBuffer(tailSize)
	return &StreamWriter{sink: s, tag: tag, tail: tail}
}

func (w *StreamWriter) Write(p []byte) (int, error) {
	w.tail.Write(p)
	w.buf = append(w.buf, p...)
	for {
		nl := bytes.IndexByte(w.buf, '\n')
		if nl < 0 {
			break
		}
		line := strings.TrimSuffix(string(w.buf[:nl]), "\r")
		w.buf = w.buf[nl+1:]
		w.sink.WriteLine(w.tag, line)
	}
	return len(p), nil
}

// Close flushes a trailing partial line.
func (w *StreamWriter) Close() error {
	if len(w.buf) > 0 {
		w.sink.WriteLine(w.tag, string(w.buf))
		w.buf = nil
	}
	return nil
}

// Tail returns the buffered end of the stream, trimmed of surrounding
// whitespace.
func (w *StreamWriter) Tail() string {
	return strings.TrimSpace(w.tail.String())
}

// subscriberBufferSize absorbs bursts so a slow follower does not stall
// the supervisor; overflowing lines are dropped for that subscriber.
const subscriberBufferSize = 64

// Broadcaster fans sink lines out to live followers. A nil Broadcaster is
// valid and drops everything.
type Broadcaster struct {
	mu   sync.Mutex
	subs []chan string
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe registers a stream of future lines.
func (b *Broadcaster) Subscribe() <-chan string {
	b.mu.Lock()
	defer b.mu.Unlock()
	stream := make(chan string, subscriberBufferSize)
	b.subs = append(b.subs, stream)
	return stream
}

// Unsubscribe removes and closes a stream obtained from Subscribe.
func (b *Broadcaster) Unsubscribe(stream <-chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.subs {
		if b.subs[i] == stream {
			close(b.subs[i])
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *Broadcaster) publish(line string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub <- line:
		default:
		}
	}
}
