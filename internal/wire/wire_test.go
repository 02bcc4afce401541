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

package wire

import (
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	line, err := Encode("n0", "n1", RequestVote{
		Type:         TypeRequestVote,
		MsgID:        7,
		Term:         3,
		CandidateID:  "n0",
		LastLogIndex: 5,
		LastLogTerm:  2,
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.HasSuffix(string(line), "\n") {
		t.Error("expected Encode to terminate the line with a newline")
	}

	env, err := Decode(line)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.Src != "n0" || env.Dest != "n1" {
		t.Errorf("expected src=n0 dest=n1, got src=%s dest=%s", env.Src, env.Dest)
	}

	hdr, err := DecodeHeader(env.Body)
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if hdr.Type != TypeRequestVote {
		t.Errorf("expected type %s, got %s", TypeRequestVote, hdr.Type)
	}
	if hdr.MsgID == nil || *hdr.MsgID != 7 {
		t.Errorf("expected msg_id 7, got %v", hdr.MsgID)
	}

	var rv RequestVote
	if err := DecodeBody(env.Body, &rv); err != nil {
		t.Fatalf("DecodeBody failed: %v", err)
	}
	if rv.Term != 3 || rv.CandidateID != "n0" || rv.LastLogIndex != 5 || rv.LastLogTerm != 2 {
		t.Errorf("unexpected body after round trip: %+v", rv)
	}
}

func TestDecodeRejectsMalformedLine(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	if err == nil {
		t.Fatal("expected Decode to reject a malformed line")
	}
}

func TestDecodeHeaderDistinguishesRequestFromReply(t *testing.T) {
	line, err := Encode("client1", "n0", Read{Type: TypeRead, MsgID: 1, Key: "x", Client: "client1"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	env, err := Decode(line)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	hdr, err := DecodeHeader(env.Body)
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if hdr.MsgID == nil || hdr.InReplyTo != nil {
		t.Errorf("expected a request header (msg_id set, in_reply_to nil), got %+v", hdr)
	}

	replyLine, err := Encode("n0", "client1", ReadOk{Type: TypeReadOk, InReplyTo: 1, Value: "a"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	replyEnv, err := Decode(replyLine)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	replyHdr, err := DecodeHeader(replyEnv.Body)
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if replyHdr.InReplyTo == nil || *replyHdr.InReplyTo != 1 {
		t.Errorf("expected in_reply_to 1, got %v", replyHdr.InReplyTo)
	}
}

func TestLogEntrySentinelHasNilOp(t *testing.T) {
	entry := LogEntry{Term: 0, Op: nil}
	data, err := Encode("n0", "n1", AppendEntries{
		Type:    TypeAppendEntries,
		Entries: []LogEntry{entry},
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	var ae AppendEntries
	if err := DecodeBody(env.Body, &ae); err != nil {
		t.Fatalf("DecodeBody failed: %v", err)
	}
	if len(ae.Entries) != 1 || ae.Entries[0].Op != nil {
		t.Errorf("expected one entry with a nil op, got %+v", ae.Entries)
	}
}
