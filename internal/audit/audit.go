/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package audit provides an asynchronous trail of consensus-significant
events for a raftkv node: role transitions, votes, leader elections,
committed entries, and rejected client requests.

Events are pushed onto a buffered channel and drained by a background
worker onto a fixed-capacity in-memory ring (there is no durable storage in
this node — see internal/consensus's treatment of persistence as a
non-goal), and mirrored to internal/logging so they also show up in the
node's regular log stream.
*/
package audit

import (
	"sync"
	"time"

	"github.com/firefly-oss/raftkv/internal/logging"
)

// EventType identifies the kind of consensus event recorded.
type EventType string

const (
	EventNodeInit       EventType = "NODE_INIT"
	EventRoleChange     EventType = "ROLE_CHANGE"
	EventVoteGranted    EventType = "VOTE_GRANTED"
	EventLeaderElected  EventType = "LEADER_ELECTED"
	EventEntryCommitted EventType = "ENTRY_COMMITTED"
	EventClientRejected EventType = "CLIENT_REJECTED"
)

// Event is a single audit record.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"event_type"`
	NodeID    string            `json:"node_id"`
	Term      uint64            `json:"term"`
	Detail    string            `json:"detail"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Config tunes the recorder's buffering and retention.
type Config struct {
	Enabled    bool
	BufferSize int
	RingSize   int
}

// DefaultConfig returns a reasonable default for a single node.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		BufferSize: 256,
		RingSize:   1000,
	}
}

// Recorder asynchronously logs consensus events and retains the most
// recent RingSize of them for inspection (e.g. by a status/debug command).
type Recorder struct {
	config Config
	logger *logging.Logger

	buffer chan Event
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu   sync.Mutex
	ring []Event
	next int
	full bool
}

// NewRecorder creates a Recorder and, if enabled, starts its background
// worker.
func NewRecorder(config Config) *Recorder {
	r := &Recorder{
		config: config,
		logger: logging.NewLogger("audit"),
		buffer: make(chan Event, config.BufferSize),
		stopCh: make(chan struct{}),
		ring:   make([]Event, config.RingSize),
	}
	if config.Enabled {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Record enqueues an event. It never blocks the caller for long: the
// buffer is sized generously and a full buffer simply drops the oldest
// pending event rather than stalling the consensus event loop.
func (r *Recorder) Record(evt Event) {
	if !r.config.Enabled {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	select {
	case r.buffer <- evt:
	default:
		select {
		case <-r.buffer:
		default:
		}
		select {
		case r.buffer <- evt:
		default:
		}
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for {
		select {
		case evt := <-r.buffer:
			r.store(evt)
		case <-r.stopCh:
			for {
				select {
				case evt := <-r.buffer:
					r.store(evt)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) store(evt Event) {
	r.logger.Info(string(evt.Type), "node", evt.NodeID, "term", itoa(evt.Term), "detail", evt.Detail)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring[r.next] = evt
	r.next = (r.next + 1) % len(r.ring)
	if r.next == 0 {
		r.full = true
	}
}

// Recent returns up to the last n recorded events, oldest first.
func (r *Recorder) Recent(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.ring)
	}
	if n > size {
		n = size
	}
	out := make([]Event, 0, n)
	start := r.next - n
	for i := 0; i < n; i++ {
		idx := (start + i + len(r.ring)) % len(r.ring)
		out = append(out, r.ring[idx])
	}
	return out
}

// Close stops the background worker, flushing any buffered events first.
func (r *Recorder) Close() {
	if !r.config.Enabled {
		return
	}
	close(r.stopCh)
	r.wg.Wait()
}

func itoa(u uint64) string {
	if u == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}
