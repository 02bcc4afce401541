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

package audit

import (
	"testing"
	"time"
)

func TestRecordIsEventuallyVisibleInRecent(t *testing.T) {
	r := NewRecorder(Config{Enabled: true, BufferSize: 16, RingSize: 8})
	defer r.Close()

	r.Record(Event{Type: EventRoleChange, NodeID: "n0", Term: 1, Detail: "follower -> candidate"})

	deadline := time.After(time.Second)
	for {
		if recent := r.Recent(1); len(recent) == 1 {
			if recent[0].Type != EventRoleChange {
				t.Errorf("expected the recorded event type, got %+v", recent[0])
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the worker to drain the event")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRingBufferKeepsOnlyMostRecent(t *testing.T) {
	r := NewRecorder(Config{Enabled: true, BufferSize: 64, RingSize: 3})
	defer r.Close()

	for i := 0; i < 5; i++ {
		r.Record(Event{Type: EventEntryCommitted, NodeID: "n0", Term: uint64(i)})
	}

	deadline := time.After(time.Second)
	for {
		recent := r.Recent(10)
		if len(recent) == 3 {
			if recent[len(recent)-1].Term != 4 {
				t.Errorf("expected the most recent event to be term 4, got %+v", recent)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out, got %d events", len(recent))
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestDisabledRecorderDropsEvents(t *testing.T) {
	r := NewRecorder(Config{Enabled: false, BufferSize: 16, RingSize: 8})
	r.Record(Event{Type: EventNodeInit, NodeID: "n0"})
	if recent := r.Recent(10); len(recent) != 0 {
		t.Errorf("expected a disabled recorder to retain nothing, got %+v", recent)
	}
}
