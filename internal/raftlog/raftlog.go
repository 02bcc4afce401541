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

// Package raftlog implements the 1-indexed replicated log with its index-0
// sentinel entry.
package raftlog

import "github.com/firefly-oss/raftkv/internal/wire"

// Log is an ordered sequence of entries, 1-indexed, with a permanent
// sentinel at index 0 (term 0, nil op) that is never applied to the state
// machine and exists only to simplify "previous entry" boundary checks.
type Log struct {
	entries []wire.LogEntry // entries[0] is the sentinel
}

// New returns an empty log containing only the sentinel.
func New() *Log {
	return &Log{entries: []wire.LogEntry{{Term: 0, Op: nil}}}
}

// Get returns the entry at the given 1-based index, or the sentinel for
// index 0. The caller must ensure 0 <= i <= Size().
func (l *Log) Get(i uint64) wire.LogEntry {
	return l.entries[i]
}

// Size returns the index of the last real entry (equivalently, the count
// of real entries, since the sentinel occupies index 0).
func (l *Log) Size() uint64 {
	return uint64(len(l.entries) - 1)
}

// Last returns the last entry, or the sentinel if the log holds no real
// entries, along with its index.
func (l *Log) Last() (wire.LogEntry, uint64) {
	idx := l.Size()
	return l.entries[idx], idx
}

// Append adds entries at the tail, returning the index of the last entry
// appended.
func (l *Log) Append(entries ...wire.LogEntry) uint64 {
	l.entries = append(l.entries, entries...)
	return l.Size()
}

// TruncateFrom discards all entries with index >= i. i must be >= 1; the
// sentinel can never be truncated.
func (l *Log) TruncateFrom(i uint64) {
	if i == 0 {
		i = 1
	}
	if i > l.Size() {
		return
	}
	l.entries = l.entries[:i]
}

// SliceFrom returns the entries with index >= i, in order. An empty slice
// is returned if i > Size().
func (l *Log) SliceFrom(i uint64) []wire.LogEntry {
	if i == 0 {
		i = 1
	}
	if i > l.Size() {
		return nil
	}
	out := make([]wire.LogEntry, l.Size()-i+1)
	copy(out, l.entries[i:])
	return out
}

// TermAt returns the term of the entry at index i (0 for the sentinel).
func (l *Log) TermAt(i uint64) uint64 {
	return l.entries[i].Term
}

// MatchesTerm reports whether the log has an entry at index i whose term
// equals term. Used by a follower evaluating an AppendEntries' prev_log_*.
func (l *Log) MatchesTerm(i, term uint64) bool {
	if i > l.Size() {
		return false
	}
	return l.entries[i].Term == term
}
