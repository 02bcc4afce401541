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

// Package kv implements the pluggable state machine: a deterministic
// in-memory key/value store driven entirely by applied log entries.
package kv

import (
	"fmt"

	"github.com/firefly-oss/raftkv/internal/wire"
)

// Reply is what applying an operation produces: a response body addressed
// to Client, correlated to the originating request via InReplyTo.
type Reply struct {
	Client    string
	InReplyTo uint64
	Body      any
}

// Store is a deterministic function of an ordered sequence of operations.
// It is not safe for concurrent use — the consensus core's single-threaded
// apply loop is its only caller.
type Store struct {
	data map[string]string
}

// New returns an empty store.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

// Apply executes one operation and returns the reply it produces. op must
// not be nil (the sentinel and any entry with a nil op are never applied).
func (s *Store) Apply(op *wire.Operation) Reply {
	switch op.Type {
	case "read":
		return s.applyRead(op)
	case "write":
		return s.applyWrite(op)
	case "cas":
		return s.applyCas(op)
	default:
		panic(fmt.Sprintf("kv: unknown operation type %q reached Apply", op.Type))
	}
}

func (s *Store) applyRead(op *wire.Operation) Reply {
	v, ok := s.data[op.Key]
	if !ok {
		return Reply{
			Client:    op.Client,
			InReplyTo: op.MsgID,
			Body:      wire.ErrorBody{Type: wire.TypeError, InReplyTo: op.MsgID, Code: 20, Text: "not found"},
		}
	}
	return Reply{
		Client:    op.Client,
		InReplyTo: op.MsgID,
		Body:      wire.ReadOk{Type: wire.TypeReadOk, InReplyTo: op.MsgID, Value: v},
	}
}

func (s *Store) applyWrite(op *wire.Operation) Reply {
	s.data[op.Key] = op.Value
	return Reply{
		Client:    op.Client,
		InReplyTo: op.MsgID,
		Body:      wire.WriteOk{Type: wire.TypeWriteOk, InReplyTo: op.MsgID},
	}
}

func (s *Store) applyCas(op *wire.Operation) Reply {
	current, ok := s.data[op.Key]
	if !ok {
		return Reply{
			Client:    op.Client,
			InReplyTo: op.MsgID,
			Body:      wire.ErrorBody{Type: wire.TypeError, InReplyTo: op.MsgID, Code: 20, Text: "not found"},
		}
	}
	if current != op.From {
		text := fmt.Sprintf("expected %s but had %s", op.From, current)
		return Reply{
			Client:    op.Client,
			InReplyTo: op.MsgID,
			Body:      wire.ErrorBody{Type: wire.TypeError, InReplyTo: op.MsgID, Code: 22, Text: text},
		}
	}
	s.data[op.Key] = op.To
	return Reply{
		Client:    op.Client,
		InReplyTo: op.MsgID,
		Body:      wire.CasOk{Type: wire.TypeCasOk, InReplyTo: op.MsgID},
	}
}

// Get is a direct, non-replicated lookup — exposed for tests and tooling,
// not part of the replicated operation set.
func (s *Store) Get(key string) (string, bool) {
	v, ok := s.data[key]
	return v, ok
}

// Len reports the number of keys currently stored.
func (s *Store) Len() int {
	return len(s.data)
}
