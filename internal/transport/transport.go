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
Package transport provides non-blocking line I/O over a duplex byte stream.

A Transport wraps any io.Reader/io.Writer pair — stdio for a node run under
a harness, or a net.Conn when routed through the optional TCP bridge. A
background goroutine scans the reader line by line and feeds parsed
envelopes into a buffered channel; TryReceive drains that channel without
ever blocking the caller, satisfying the event loop's requirement that no
iteration stall waiting on input.
*/
package transport

import (
	"bufio"
	"io"
	"sync"

	"github.com/firefly-oss/raftkv/internal/wire"
)

// inboundBuffer bounds how many parsed envelopes can queue up between
// event loop iterations before the reader goroutine blocks feeding them.
const inboundBuffer = 256

// Transport reads newline-delimited JSON envelopes from an io.Reader on a
// background goroutine and writes them line-atomically to an io.Writer.
type Transport struct {
	w io.Writer

	inbound chan *wire.Envelope
	fatal   chan error

	writeMu sync.Mutex
}

// New starts a Transport over r/w. The reader goroutine runs until r is
// exhausted (clean EOF) or a line fails to parse (fatal, per spec: a
// malformed line is reported, not silently dropped).
func New(r io.Reader, w io.Writer) *Transport {
	t := &Transport{
		w:       w,
		inbound: make(chan *wire.Envelope, inboundBuffer),
		fatal:   make(chan error, 1),
	}
	go t.readLoop(r)
	return t
}

func (t *Transport) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		env, err := wire.Decode(line)
		if err != nil {
			t.fatal <- err
			close(t.inbound)
			return
		}
		t.inbound <- env
	}
	if err := scanner.Err(); err != nil {
		t.fatal <- err
	}
	close(t.inbound)
}

// TryReceive returns the next inbound envelope if one is already buffered,
// without blocking. ok is false if nothing is currently available.
func (t *Transport) TryReceive() (env *wire.Envelope, ok bool) {
	select {
	case env, open := <-t.inbound:
		if !open {
			return nil, false
		}
		return env, true
	default:
		return nil, false
	}
}

// Fatal returns a channel that receives at most one error: a malformed
// inbound line, or an I/O error from the underlying reader. The event loop
// should treat a receive on this channel as a tier-3 invariant violation.
func (t *Transport) Fatal() <-chan error {
	return t.fatal
}

// Send marshals src/dest/body to one JSON line and writes it in a single,
// mutex-guarded Write call so concurrent senders (e.g. a reply handler
// invoked from the same goroutine as the main loop, plus any future
// background sender) never interleave partial lines.
func (t *Transport) Send(src, dest string, body any) error {
	line, err := wire.Encode(src, dest, body)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err = t.w.Write(line)
	return err
}
