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
Client request routing.

This resolves the one open question the reference implementation left
unanswered: read/write/cas received at the leader are appended to the log,
replicated, committed, and applied before a reply is sent — they are not
special-cased around the log. Followers and candidates never proxy; they
return the transient "not a leader" error so a client can retry, per
spec §4.5.
*/
package consensus

import (
	"github.com/firefly-oss/raftkv/internal/audit"
	"github.com/firefly-oss/raftkv/internal/wire"
)

func (n *Node) handleClientRead(env *wire.Envelope, hdr wire.Header) error {
	var req wire.Read
	if err := wire.DecodeBody(env.Body, &req); err != nil {
		return err
	}
	return n.proposeOrReject(env.Src, wire.Operation{
		Type:   "read",
		Key:    req.Key,
		MsgID:  req.MsgID,
		Client: firstNonEmpty(req.Client, env.Src),
	})
}

func (n *Node) handleClientWrite(env *wire.Envelope, hdr wire.Header) error {
	var req wire.Write
	if err := wire.DecodeBody(env.Body, &req); err != nil {
		return err
	}
	return n.proposeOrReject(env.Src, wire.Operation{
		Type:   "write",
		Key:    req.Key,
		Value:  req.Value,
		MsgID:  req.MsgID,
		Client: firstNonEmpty(req.Client, env.Src),
	})
}

func (n *Node) handleClientCas(env *wire.Envelope, hdr wire.Header) error {
	var req wire.Cas
	if err := wire.DecodeBody(env.Body, &req); err != nil {
		return err
	}
	return n.proposeOrReject(env.Src, wire.Operation{
		Type:   "cas",
		Key:    req.Key,
		From:   req.From,
		To:     req.To,
		MsgID:  req.MsgID,
		Client: firstNonEmpty(req.Client, env.Src),
	})
}

// proposeOrReject appends op to the log if this node is leader, or
// replies with the transient not-a-leader error otherwise. The log entry
// itself carries op.Client/op.MsgID, so no separate "awaiting apply" table
// is needed: applyCommitted reads the addressee straight off the entry.
func (n *Node) proposeOrReject(from string, op wire.Operation) error {
	if n.role != RoleLeader {
		n.recorder.Record(audit.Event{Type: audit.EventClientRejected, NodeID: n.nodeID, Term: n.currentTerm, Detail: "not a leader"})
		return n.transport.Send(n.nodeID, from, wire.ErrorBody{
			Type:      wire.TypeError,
			InReplyTo: op.MsgID,
			Code:      11,
			Text:      "not a leader",
		})
	}

	n.log.Append(wire.LogEntry{Term: n.currentTerm, Op: &op})

	if len(n.peers) == 0 {
		// Single-node cluster: the leader alone is already a majority.
		n.advanceCommitIndex()
	}

	return nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
