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

package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestRaftErrorBasic(t *testing.T) {
	err := NotFound()

	if err.Code != ErrCodeNotFound {
		t.Errorf("Expected code %d, got %d", ErrCodeNotFound, err.Code)
	}
	if err.Category != CategoryOperation {
		t.Errorf("Expected category %s, got %s", CategoryOperation, err.Category)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected error message to contain 'not found', got: %s", err.Error())
	}
}

func TestCASFailedMentionsMismatch(t *testing.T) {
	err := CASFailed("1", "2")

	if !strings.Contains(err.Error(), "expected 1 but had 2") {
		t.Errorf("Expected error to mention mismatch, got: %s", err.Error())
	}
}

func TestRaftErrorWithHint(t *testing.T) {
	err := DoubleInit().WithHint("check your harness")

	if !strings.Contains(err.Hint, "check your harness") {
		t.Errorf("Expected hint to be set, got: %s", err.Hint)
	}
}

func TestRaftErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := MalformedEnvelope("{not json", nil).WithCause(cause)

	if err.Unwrap() != cause {
		t.Error("Expected Unwrap to return the cause")
	}
}

func TestOperationErrorCodesMatchWireContract(t *testing.T) {
	if ErrCodeNotLeader != 11 {
		t.Errorf("not-a-leader must be wire code 11, got %d", ErrCodeNotLeader)
	}
	if ErrCodeNotFound != 20 {
		t.Errorf("not-found must be wire code 20, got %d", ErrCodeNotFound)
	}
	if ErrCodeCASFailed != 22 {
		t.Errorf("cas-failed must be wire code 22, got %d", ErrCodeCASFailed)
	}
}

func TestIsInvariant(t *testing.T) {
	if !IsInvariant(TermRegression(2, 1)) {
		t.Error("TermRegression should be an invariant error")
	}
	if IsInvariant(NotFound()) {
		t.Error("NotFound should not be an invariant error")
	}
	if IsInvariant(errors.New("plain error")) {
		t.Error("a plain error should not be an invariant error")
	}
}

func TestIsOperation(t *testing.T) {
	if !IsOperation(NotLeader()) {
		t.Error("NotLeader should be an operation error")
	}
	if IsOperation(DuplicateHandler("append_entries")) {
		t.Error("DuplicateHandler should not be an operation error")
	}
}

func TestCodeHelper(t *testing.T) {
	if Code(NotFound()) != ErrCodeNotFound {
		t.Error("Code() should extract the RaftError's code")
	}
	if Code(errors.New("plain")) != 0 {
		t.Error("Code() of a non-RaftError should be 0")
	}
}

func TestVoteDoubleGrantedMentionsBothCandidates(t *testing.T) {
	err := VoteDoubleGranted(4, "n0", "n1")
	if !strings.Contains(err.Error(), "n0") || !strings.Contains(err.Error(), "n1") {
		t.Errorf("expected both candidate ids in message, got: %s", err.Error())
	}
}
