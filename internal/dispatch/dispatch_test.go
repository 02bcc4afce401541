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

package dispatch

import (
	"testing"

	"github.com/firefly-oss/raftkv/internal/errors"
	"github.com/firefly-oss/raftkv/internal/wire"
)

func envelopeFor(t *testing.T, src, dest string, body any) *wire.Envelope {
	t.Helper()
	line, err := wire.Encode(src, dest, body)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	env, err := wire.Decode(line)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return env
}

func TestDispatchRoutesToTypeHandler(t *testing.T) {
	d := New()
	called := false
	if err := d.Register(wire.TypeRequestVote, func(env *wire.Envelope, hdr wire.Header) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	env := envelopeFor(t, "n1", "n0", wire.RequestVote{Type: wire.TypeRequestVote, MsgID: 1, Term: 1, CandidateID: "n1"})
	if err := d.Dispatch(env); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !called {
		t.Error("expected the registered handler to be invoked")
	}
}

func TestRegisterRejectsDuplicateType(t *testing.T) {
	d := New()
	noop := func(env *wire.Envelope, hdr wire.Header) error { return nil }
	if err := d.Register(wire.TypeRequestVote, noop); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	err := d.Register(wire.TypeRequestVote, noop)
	if err == nil {
		t.Fatal("expected re-registering a type to fail")
	}
	if !errors.IsInvariant(err) {
		t.Errorf("expected a tier-3 invariant error, got %v", err)
	}
}

func TestDispatchUnknownTypeReturnsNoHandler(t *testing.T) {
	d := New()
	env := envelopeFor(t, "n1", "n0", wire.RequestVote{Type: wire.TypeRequestVote, MsgID: 1})
	err := d.Dispatch(env)
	if err == nil {
		t.Fatal("expected Dispatch to fail for an unregistered type")
	}
	if errors.Code(err) != errors.ErrCodeNoHandler {
		t.Errorf("expected ErrCodeNoHandler, got %v", err)
	}
}

func TestDispatchRoutesReplyToAwaitingCallback(t *testing.T) {
	d := New()
	msgID := d.NextMsgID()
	replied := false
	d.AwaitReply(msgID, func(env *wire.Envelope, hdr wire.Header) error {
		replied = true
		return nil
	})

	env := envelopeFor(t, "n0", "n1", wire.RequestVoteRes{Type: wire.TypeRequestVoteRes, InReplyTo: msgID, Term: 1, VoteGranted: true})
	if err := d.Dispatch(env); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !replied {
		t.Error("expected the reply callback to be invoked")
	}
	if d.PendingReplies() != 0 {
		t.Error("expected the reply callback to be removed after firing (one-shot)")
	}
}

func TestDispatchStaleReplyIsReportedNotPanicked(t *testing.T) {
	d := New()
	env := envelopeFor(t, "n0", "n1", wire.RequestVoteRes{Type: wire.TypeRequestVoteRes, InReplyTo: 999, Term: 1})
	err := d.Dispatch(env)
	if err == nil {
		t.Fatal("expected a stale reply to be reported as an error")
	}
	if errors.Code(err) != errors.ErrCodeStaleReply {
		t.Errorf("expected ErrCodeStaleReply, got %v", err)
	}
}

func TestNextMsgIDIsMonotonic(t *testing.T) {
	d := New()
	a := d.NextMsgID()
	b := d.NextMsgID()
	if b <= a {
		t.Errorf("expected msg ids to increase, got %d then %d", a, b)
	}
}
