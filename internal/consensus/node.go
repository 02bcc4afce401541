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
Package consensus is the Raft core: role state machine, term and vote
bookkeeping, the election timer and replication tick, RequestVote and
AppendEntries handling, commit-index advancement, and client request
routing through the replicated log.

A Node owns every piece of mutable state reachable from the event loop —
the log, role, term, vote, per-peer leader tables, the dispatcher's
callback tables, and the state machine — so Tick never needs a lock.
*/
package consensus

import (
	"math/rand"
	"time"

	"github.com/firefly-oss/raftkv/internal/audit"
	"github.com/firefly-oss/raftkv/internal/dispatch"
	"github.com/firefly-oss/raftkv/internal/errors"
	"github.com/firefly-oss/raftkv/internal/kv"
	"github.com/firefly-oss/raftkv/internal/logging"
	"github.com/firefly-oss/raftkv/internal/raftlog"
	"github.com/firefly-oss/raftkv/internal/transport"
	"github.com/firefly-oss/raftkv/internal/wire"
)

// Role is one of the four states a node can be in.
type Role string

const (
	RoleNascent   Role = "nascent"
	RoleFollower  Role = "follower"
	RoleCandidate Role = "candidate"
	RoleLeader    Role = "leader"
)

// Config carries the timing knobs a Node needs; normally sourced from
// internal/config.
type Config struct {
	ElectionTimeoutBase time.Duration
	HeartbeatInterval   time.Duration
}

// Node is one Raft participant. All fields are owned exclusively by the
// goroutine that calls Tick — there is no internal locking.
type Node struct {
	cfg Config

	nodeID  string
	nodeIDs []string // includes self; empty until Init
	peers   []string // nodeIDs minus self

	role        Role
	currentTerm uint64
	votedFor    string

	log          *raftlog.Log
	commitIndex  uint64
	lastApplied  uint64

	electionDeadline   time.Time
	nextReplicationRun time.Time

	votesGranted map[string]bool
	nextIndex    map[string]uint64
	matchIndex   map[string]uint64

	store      *kv.Store
	dispatcher *dispatch.Dispatcher
	transport  *transport.Transport
	recorder   *audit.Recorder
	logger     *logging.Logger

	clock Clock
	rng   *rand.Rand
}

// New constructs a Node in the nascent role, wired to transport t and
// dispatching through d. Its node_id is not yet known — that arrives with
// raft_init (spec §3) — so it registers all of its message handlers
// immediately. Client handlers reply error 11 unless n.role is leader; the
// request_vote and append_entries handlers do not check n.role.
func New(cfg Config, t *transport.Transport, d *dispatch.Dispatcher, rec *audit.Recorder, clock Clock, seed int64) *Node {
	n := &Node{
		cfg:        cfg,
		role:       RoleNascent,
		log:        raftlog.New(),
		store:      kv.New(),
		dispatcher: d,
		transport:  t,
		recorder:   rec,
		logger:     logging.NewLogger("consensus"),
		clock:      clock,
		rng:        rand.New(rand.NewSource(seed)),
	}
	n.registerHandlers()
	return n
}

// NodeID returns this node's identifier.
func (n *Node) NodeID() string { return n.nodeID }

// Role returns the current role.
func (n *Node) Role() Role { return n.role }

// CurrentTerm returns the current term.
func (n *Node) CurrentTerm() uint64 { return n.currentTerm }

// CommitIndex returns the current commit index.
func (n *Node) CommitIndex() uint64 { return n.commitIndex }

// LastApplied returns the current last-applied index.
func (n *Node) LastApplied() uint64 { return n.lastApplied }

// Store exposes the underlying state machine, for read-only inspection by
// tests and operator tooling.
func (n *Node) Store() *kv.Store { return n.store }

func (n *Node) registerHandlers() {
	must := func(err error) {
		if err != nil {
			n.logger.Fatal(err.Error())
		}
	}
	must(n.dispatcher.Register(wire.TypeRaftInit, n.handleRaftInit))
	must(n.dispatcher.Register(wire.TypeRequestVote, n.handleRequestVote))
	must(n.dispatcher.Register(wire.TypeAppendEntries, n.handleAppendEntries))
	must(n.dispatcher.Register(wire.TypeRead, n.handleClientRead))
	must(n.dispatcher.Register(wire.TypeWrite, n.handleClientWrite))
	must(n.dispatcher.Register(wire.TypeCas, n.handleClientCas))
}

// Init transitions nascent -> follower, fixing the node's peer set for the
// lifetime of the process. Re-initialization is a tier-3 invariant
// violation (fatal), per the wire contract.
func (n *Node) Init(nodeID string, nodeIDs []string) error {
	if n.role != RoleNascent {
		return errors.DoubleInit()
	}
	n.nodeID = nodeID
	n.nodeIDs = nodeIDs
	n.logger = n.logger.With("node", nodeID)
	n.peers = n.peers[:0]
	for _, id := range nodeIDs {
		if id != nodeID {
			n.peers = append(n.peers, id)
		}
	}
	n.becomeFollower(0)
	n.recorder.Record(audit.Event{Type: audit.EventNodeInit, NodeID: n.nodeID, Detail: "initialized"})
	return nil
}

func (n *Node) majority() int {
	return len(n.nodeIDs)/2 + 1
}

func (n *Node) resetElectionDeadline() {
	timeout := randomElectionTimeout(n.rng, n.cfg.ElectionTimeoutBase)
	n.electionDeadline = n.clock.Now().Add(timeout)
}

// becomeFollower adopts term (which must be >= currentTerm) and resets
// leader-only state.
func (n *Node) becomeFollower(term uint64) {
	if term < n.currentTerm {
		n.logger.Fatal(errors.TermRegression(n.currentTerm, term).Error())
	}
	prevRole := n.role
	if term > n.currentTerm {
		n.votedFor = ""
	}
	n.currentTerm = term
	n.role = RoleFollower
	n.votesGranted = nil
	n.nextIndex = nil
	n.matchIndex = nil
	n.resetElectionDeadline()

	if prevRole != RoleFollower {
		n.recorder.Record(audit.Event{Type: audit.EventRoleChange, NodeID: n.nodeID, Term: n.currentTerm, Detail: string(prevRole) + " -> follower"})
	}
}

func (n *Node) becomeCandidate() {
	n.currentTerm++
	n.role = RoleCandidate
	n.votedFor = n.nodeID
	n.votesGranted = map[string]bool{n.nodeID: true}
	n.resetElectionDeadline()
	n.recorder.Record(audit.Event{Type: audit.EventRoleChange, NodeID: n.nodeID, Term: n.currentTerm, Detail: "follower -> candidate"})
}

func (n *Node) becomeLeader() {
	n.role = RoleLeader
	n.nextIndex = make(map[string]uint64, len(n.peers))
	n.matchIndex = make(map[string]uint64, len(n.peers))
	for _, p := range n.peers {
		n.nextIndex[p] = n.log.Size() + 1
		n.matchIndex[p] = 0
	}
	n.nextReplicationRun = n.clock.Now()
	n.recorder.Record(audit.Event{Type: audit.EventLeaderElected, NodeID: n.nodeID, Term: n.currentTerm, Detail: "elected leader"})
	n.broadcastAppendEntries()
}

// Tick runs one iteration of the event loop: drain at most one inbound
// message, fire any due timers, and advance commit/apply. It returns
// whether any work happened, so the caller knows whether to sleep.
func (n *Node) Tick() bool {
	didWork := false

	select {
	case err := <-n.transport.Fatal():
		n.logger.Fatal("transport failed", "error", err.Error())
		return true
	default:
	}

	if env, ok := n.transport.TryReceive(); ok {
		didWork = true
		if err := n.dispatcher.Dispatch(env); err != nil {
			n.handleDispatchError(err)
		}
	}

	if n.role != RoleNascent && n.checkTimers() {
		didWork = true
	}

	n.applyCommitted()

	return didWork
}

func (n *Node) checkTimers() bool {
	now := n.clock.Now()
	didWork := false

	if n.role != RoleLeader && !now.Before(n.electionDeadline) {
		n.startElection()
		didWork = true
	}

	if n.role == RoleLeader && !now.Before(n.nextReplicationRun) {
		n.broadcastAppendEntries()
		n.nextReplicationRun = now.Add(n.cfg.HeartbeatInterval)
		didWork = true
	}

	return didWork
}

// handleDispatchError applies the node's error-tier policy (spec §7): a
// tier-3 *errors.RaftError is fatal, everything else is logged and
// discarded without affecting consensus state.
func (n *Node) handleDispatchError(err error) {
	if errors.IsInvariant(err) {
		n.logger.Fatal(err.Error())
		return
	}
	n.logger.Warn("dropping message", "error", err.Error())
}
