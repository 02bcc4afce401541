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

package consensus

import (
	"github.com/firefly-oss/raftkv/internal/audit"
	"github.com/firefly-oss/raftkv/internal/wire"
)

// broadcastAppendEntries sends one AppendEntries to every peer, tailored
// to that peer's next_index. Leader-only; called on the replication tick
// and immediately on winning an election.
func (n *Node) broadcastAppendEntries() {
	for _, peer := range n.peers {
		n.sendAppendEntriesTo(peer)
	}
}

func (n *Node) sendAppendEntriesTo(peer string) {
	next := n.nextIndex[peer]
	if next == 0 {
		next = 1
	}
	prevLogIndex := next - 1
	prevLogTerm := n.log.TermAt(prevLogIndex)
	entries := n.log.SliceFrom(next)
	termAtSend := n.currentTerm

	msgID := n.dispatcher.NextMsgID()
	n.dispatcher.AwaitReply(msgID, func(env *wire.Envelope, hdr wire.Header) error {
		return n.handleAppendEntriesReply(peer, termAtSend, prevLogIndex, uint64(len(entries)), env, hdr)
	})

	n.transport.Send(n.nodeID, peer, wire.AppendEntries{
		Type:         wire.TypeAppendEntries,
		MsgID:        msgID,
		Term:         n.currentTerm,
		LeaderID:     n.nodeID,
		PrevLogIndex: prevLogIndex,
		PrevLogTerm:  prevLogTerm,
		Entries:      entries,
		LeaderCommit: n.commitIndex,
	})
}

// handleAppendEntries implements the recipient side of §4.5 AppendEntries.
func (n *Node) handleAppendEntries(env *wire.Envelope, hdr wire.Header) error {
	var req wire.AppendEntries
	if err := wire.DecodeBody(env.Body, &req); err != nil {
		return err
	}

	if req.Term < n.currentTerm {
		return n.transport.Send(n.nodeID, env.Src, wire.AppendEntriesRes{
			Type:      wire.TypeAppendEntriesRes,
			InReplyTo: *hdr.MsgID,
			Term:      n.currentTerm,
			Success:   false,
		})
	}

	if req.Term > n.currentTerm || (req.Term == n.currentTerm && n.role == RoleCandidate) {
		n.becomeFollower(req.Term)
	}
	n.resetElectionDeadline()

	if req.PrevLogIndex > 0 && !n.log.MatchesTerm(req.PrevLogIndex, req.PrevLogTerm) {
		return n.transport.Send(n.nodeID, env.Src, wire.AppendEntriesRes{
			Type:      wire.TypeAppendEntriesRes,
			InReplyTo: *hdr.MsgID,
			Term:      n.currentTerm,
			Success:   false,
		})
	}

	lastNewIndex := req.PrevLogIndex
	for i, entry := range req.Entries {
		index := req.PrevLogIndex + uint64(i) + 1
		if index <= n.log.Size() {
			if n.log.TermAt(index) != entry.Term {
				n.log.TruncateFrom(index)
				n.log.Append(req.Entries[i:]...)
				lastNewIndex = req.PrevLogIndex + uint64(len(req.Entries))
				break
			}
			lastNewIndex = index
			continue
		}
		n.log.Append(req.Entries[i:]...)
		lastNewIndex = req.PrevLogIndex + uint64(len(req.Entries))
		break
	}

	if req.LeaderCommit > n.commitIndex {
		if req.LeaderCommit < lastNewIndex {
			n.commitIndex = req.LeaderCommit
		} else {
			n.commitIndex = lastNewIndex
		}
	}

	return n.transport.Send(n.nodeID, env.Src, wire.AppendEntriesRes{
		Type:      wire.TypeAppendEntriesRes,
		InReplyTo: *hdr.MsgID,
		Term:      n.currentTerm,
		Success:   true,
	})
}

// handleAppendEntriesReply updates leader-side replication state for one
// peer's response, per §4.5's "Leader handling of reply".
func (n *Node) handleAppendEntriesReply(peer string, termAtSend, prevLogIndex, numEntries uint64, env *wire.Envelope, hdr wire.Header) error {
	var res wire.AppendEntriesRes
	if err := wire.DecodeBody(env.Body, &res); err != nil {
		return err
	}

	if res.Term > n.currentTerm {
		n.becomeFollower(res.Term)
		return nil
	}

	if n.role != RoleLeader || n.currentTerm != termAtSend {
		return nil
	}

	if res.Success {
		matchIndex := prevLogIndex + numEntries
		if matchIndex > n.matchIndex[peer] {
			n.matchIndex[peer] = matchIndex
		}
		n.nextIndex[peer] = n.matchIndex[peer] + 1
		n.advanceCommitIndex()
	} else {
		if n.nextIndex[peer] > 1 {
			n.nextIndex[peer]--
		}
	}
	return nil
}

// advanceCommitIndex implements the commit rule: the highest N > commit
// index such that log[N].term == current_term and a majority of the
// cluster (including self) has match_index >= N.
func (n *Node) advanceCommitIndex() {
	size := n.log.Size()
	for idx := size; idx > n.commitIndex; idx-- {
		if n.log.TermAt(idx) != n.currentTerm {
			continue
		}
		count := 1 // self
		for _, peer := range n.peers {
			if n.matchIndex[peer] >= idx {
				count++
			}
		}
		if count >= n.majority() {
			n.commitIndex = idx
			return
		}
	}
}

// applyCommitted drains the gap between last_applied and commit_index,
// applying each entry exactly once and, if this node is leader, emitting
// the resulting reply to the originating client.
func (n *Node) applyCommitted() {
	for n.lastApplied < n.commitIndex {
		nextIndex := n.lastApplied + 1
		entry := n.log.Get(nextIndex)
		n.lastApplied = nextIndex

		if entry.Op == nil {
			continue
		}

		reply := n.store.Apply(entry.Op)
		n.recorder.Record(audit.Event{Type: audit.EventEntryCommitted, NodeID: n.nodeID, Term: entry.Term, Detail: entry.Op.Type + " " + entry.Op.Key})

		if n.role == RoleLeader {
			n.transport.Send(n.nodeID, reply.Client, reply.Body)
		}
	}
}
