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

// startElection fires on election timeout: become (or re-become) a
// candidate for a fresh term and solicit votes from every peer.
func (n *Node) startElection() {
	n.becomeCandidate()

	if len(n.votesGranted) >= n.majority() {
		// A single-node cluster: self-vote alone is already a majority.
		n.becomeLeader()
		return
	}

	lastEntry, lastIndex := n.log.Last()
	termAtSend := n.currentTerm

	for _, peer := range n.peers {
		peer := peer
		msgID := n.dispatcher.NextMsgID()
		n.dispatcher.AwaitReply(msgID, func(env *wire.Envelope, hdr wire.Header) error {
			return n.handleRequestVoteReply(peer, termAtSend, env, hdr)
		})
		n.transport.Send(n.nodeID, peer, wire.RequestVote{
			Type:         wire.TypeRequestVote,
			MsgID:        msgID,
			Term:         n.currentTerm,
			CandidateID:  n.nodeID,
			LastLogIndex: lastIndex,
			LastLogTerm:  lastEntry.Term,
		})
	}
}

// handleRequestVote implements the recipient side of §4.5 RequestVote.
func (n *Node) handleRequestVote(env *wire.Envelope, hdr wire.Header) error {
	var req wire.RequestVote
	if err := wire.DecodeBody(env.Body, &req); err != nil {
		return err
	}

	if req.Term < n.currentTerm {
		return n.transport.Send(n.nodeID, env.Src, wire.RequestVoteRes{
			Type:        wire.TypeRequestVoteRes,
			InReplyTo:   *hdr.MsgID,
			Term:        n.currentTerm,
			VoteGranted: false,
		})
	}

	if req.Term > n.currentTerm {
		n.becomeFollower(req.Term)
	}

	lastEntry, lastIndex := n.log.Last()
	candidateUpToDate := req.LastLogTerm > lastEntry.Term ||
		(req.LastLogTerm == lastEntry.Term && req.LastLogIndex >= lastIndex)

	granted := (n.votedFor == "" || n.votedFor == req.CandidateID) && candidateUpToDate

	if granted {
		n.votedFor = req.CandidateID
		n.resetElectionDeadline()
		n.recorder.Record(audit.Event{Type: audit.EventVoteGranted, NodeID: n.nodeID, Term: n.currentTerm, Detail: "granted to " + req.CandidateID})
	}

	return n.transport.Send(n.nodeID, env.Src, wire.RequestVoteRes{
		Type:        wire.TypeRequestVoteRes,
		InReplyTo:   *hdr.MsgID,
		Term:        n.currentTerm,
		VoteGranted: granted,
	})
}

// handleRequestVoteReply tallies one RequestVote response. The vote only
// counts if the reply's term matches the term this node was a candidate
// for when it sent the request, and this node is still a candidate.
func (n *Node) handleRequestVoteReply(peer string, termAtSend uint64, env *wire.Envelope, hdr wire.Header) error {
	var res wire.RequestVoteRes
	if err := wire.DecodeBody(env.Body, &res); err != nil {
		return err
	}

	if res.Term > n.currentTerm {
		n.becomeFollower(res.Term)
		return nil
	}

	if n.role != RoleCandidate || n.currentTerm != termAtSend || !res.VoteGranted {
		return nil
	}

	n.votesGranted[peer] = true
	if len(n.votesGranted) >= n.majority() {
		n.becomeLeader()
	}
	return nil
}

// handleRaftInit handles the one-shot initialization handshake. Reinit
// after the node has already left the nascent role is a fatal invariant
// violation (spec §8 scenario 6).
func (n *Node) handleRaftInit(env *wire.Envelope, hdr wire.Header) error {
	var req wire.RaftInit
	if err := wire.DecodeBody(env.Body, &req); err != nil {
		return err
	}

	if err := n.Init(req.NodeID, req.NodeIDs); err != nil {
		n.logger.Fatal(err.Error())
		return err
	}

	return n.transport.Send(n.nodeID, env.Src, wire.RaftInitOk{
		Type:      wire.TypeRaftInitOk,
		InReplyTo: *hdr.MsgID,
	})
}
