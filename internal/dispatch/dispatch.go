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
Package dispatch routes inbound envelopes to either a one-shot reply
callback (if the body correlates to an outstanding request this node sent)
or a permanent per-type handler registered by the consensus core.

The reply-callback table is keyed by msg_id the same way a connection
multiplexer keys its stream table: mint an id, record a handler under it,
send, and later look the id up exactly once on reply. There is no timeout
at this layer — a reply callback simply waits until its msg_id resurfaces,
however long that takes.
*/
package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/firefly-oss/raftkv/internal/errors"
	"github.com/firefly-oss/raftkv/internal/wire"
)

// HandlerFunc handles one inbound message of a registered type.
type HandlerFunc func(env *wire.Envelope, hdr wire.Header) error

// ReplyFunc handles the one reply correlated to a previously sent request.
type ReplyFunc func(env *wire.Envelope, hdr wire.Header) error

// Dispatcher owns the type->handler table and the msg_id->reply table.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	replies  map[uint64]ReplyFunc

	nextMsgID atomic.Uint64
}

// New returns an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		replies:  make(map[uint64]ReplyFunc),
	}
}

// Register installs the permanent handler for msgType. Re-registering a
// type that already has a handler is a programming bug and returns a
// tier-3 invariant error.
func (d *Dispatcher) Register(msgType string, handler HandlerFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[msgType]; exists {
		return errors.DuplicateHandler(msgType)
	}
	d.handlers[msgType] = handler
	return nil
}

// NextMsgID mints the next monotonically increasing request id.
func (d *Dispatcher) NextMsgID() uint64 {
	return d.nextMsgID.Add(1)
}

// AwaitReply records a one-shot handler for the reply to msgID. Callers
// mint msgID via NextMsgID, stamp it into the outgoing request body, call
// AwaitReply, and only then send — so the reply table entry exists before
// any reply could possibly arrive.
func (d *Dispatcher) AwaitReply(msgID uint64, handler ReplyFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replies[msgID] = handler
}

// Dispatch routes one inbound envelope: to the matching reply callback if
// its body carries in_reply_to, otherwise to the registered type handler.
func (d *Dispatcher) Dispatch(env *wire.Envelope) error {
	hdr, err := wire.DecodeHeader(env.Body)
	if err != nil {
		return err
	}

	if hdr.InReplyTo != nil {
		d.mu.Lock()
		handler, ok := d.replies[*hdr.InReplyTo]
		if ok {
			delete(d.replies, *hdr.InReplyTo)
		}
		d.mu.Unlock()
		if !ok {
			return errors.StaleReply(*hdr.InReplyTo)
		}
		return handler(env, hdr)
	}

	d.mu.Lock()
	handler, ok := d.handlers[hdr.Type]
	d.mu.Unlock()
	if !ok {
		return errors.NoHandler(hdr.Type)
	}
	return handler(env, hdr)
}

// PendingReplies reports how many RPCs are currently awaiting a reply.
// Exposed for diagnostics and tests, not consulted by Dispatch itself.
func (d *Dispatcher) PendingReplies() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.replies)
}
