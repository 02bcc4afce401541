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

// raftkv-client is an interactive REPL for issuing read/write/cas
// requests against a raftkv node through a raftkv-bridge connection.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"

	"github.com/firefly-oss/raftkv/internal/wire"
	"github.com/firefly-oss/raftkv/pkg/cli"
)

type client struct {
	conn     net.Conn
	clientID string
	nextID   atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan wire.Envelope
}

func newClient(conn net.Conn, clientID string) *client {
	c := &client{conn: conn, clientID: clientID, pending: make(map[uint64]chan wire.Envelope)}
	go c.readLoop()
	return c
}

func (c *client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		env, err := wire.Decode(append(append([]byte(nil), scanner.Bytes()...), '\n'))
		if err != nil {
			continue
		}
		var hdr wire.Header
		if json.Unmarshal(env.Body, &hdr) != nil || hdr.InReplyTo == nil {
			continue
		}
		c.mu.Lock()
		ch := c.pending[*hdr.InReplyTo]
		delete(c.pending, *hdr.InReplyTo)
		c.mu.Unlock()
		if ch != nil {
			ch <- *env
		}
	}
}

// request sends body to dest and blocks for the matching reply or until
// timeout elapses.
func (c *client) request(dest string, msgID uint64, body any, timeout time.Duration) (*wire.Envelope, error) {
	ch := make(chan wire.Envelope, 1)
	c.mu.Lock()
	c.pending[msgID] = ch
	c.mu.Unlock()

	line, err := wire.Encode(c.clientID, dest, body)
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(line); err != nil {
		return nil, err
	}

	select {
	case env := <-ch:
		return &env, nil
	case <-time.After(timeout):
		c.mu.Lock()
		delete(c.pending, msgID)
		c.mu.Unlock()
		return nil, fmt.Errorf("timed out waiting for a reply from %s", dest)
	}
}

func main() {
	bridgeAddr := flag.String("bridge-addr", "", "raftkv-bridge address to connect to (required)")
	node := flag.String("node", "", "node id to send requests to (usually the leader)")
	clientID := flag.String("client-id", "raftkv-client", "this client's id in the src field of outgoing envelopes")
	flag.Parse()

	if *bridgeAddr == "" {
		cli.ErrMissingArgument("-bridge-addr", "raftkv-client -bridge-addr host:port -node n0").Print()
		os.Exit(1)
	}
	if *node == "" {
		cli.ErrMissingArgument("-node", "raftkv-client -bridge-addr host:port -node n0").Print()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *bridgeAddr)
	if err != nil {
		host, port, _ := net.SplitHostPort(*bridgeAddr)
		cli.ErrConnectionFailed(host, port, err).Exit()
	}
	defer conn.Close()

	c := newClient(conn, *clientID)
	target := *node

	rl, err := readline.New(cli.Highlight(target + "> "))
	if err != nil {
		fmt.Fprintf(os.Stderr, "raftkv-client: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	cli.PrintInfo("connected to bridge %s, targeting node %s", *bridgeAddr, target)
	fmt.Println("commands: read <key> | write <key> <value> | cas <key> <from> <to> | \\node <id> | \\quit")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "raftkv-client: %v\n", err)
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "\\quit", "\\q", "exit":
			return
		case "\\node":
			if len(fields) != 2 {
				cli.PrintError("usage: \\node <id>")
				continue
			}
			target = fields[1]
			rl.SetPrompt(cli.Highlight(target + "> "))
		case "read":
			if len(fields) != 2 {
				cli.PrintError("usage: read <key>")
				continue
			}
			runRead(c, target, fields[1])
		case "write":
			if len(fields) < 3 {
				cli.PrintError("usage: write <key> <value>")
				continue
			}
			runWrite(c, target, fields[1], strings.Join(fields[2:], " "))
		case "cas":
			if len(fields) != 4 {
				cli.PrintError("usage: cas <key> <from> <to>")
				continue
			}
			runCas(c, target, fields[1], fields[2], fields[3])
		default:
			cli.ErrInvalidCommand(fields[0]).Print()
		}
	}
}

func runRead(c *client, target, key string) {
	msgID := c.nextID.Add(1)
	reply, err := c.request(target, msgID, wire.Read{Type: wire.TypeRead, MsgID: msgID, Key: key, Client: c.clientID}, 5*time.Second)
	if err != nil {
		cli.PrintError("%v", err)
		return
	}
	printReply(*reply, func(body json.RawMessage) {
		var ok wire.ReadOk
		json.Unmarshal(body, &ok)
		cli.KeyValue(key, ok.Value, len(key)+1)
	})
}

func runWrite(c *client, target, key, value string) {
	msgID := c.nextID.Add(1)
	reply, err := c.request(target, msgID, wire.Write{Type: wire.TypeWrite, MsgID: msgID, Key: key, Value: value, Client: c.clientID}, 5*time.Second)
	if err != nil {
		cli.PrintError("%v", err)
		return
	}
	printReply(*reply, func(body json.RawMessage) {
		cli.PrintSuccess("wrote %s = %s", key, value)
	})
}

func runCas(c *client, target, key, from, to string) {
	msgID := c.nextID.Add(1)
	reply, err := c.request(target, msgID, wire.Cas{Type: wire.TypeCas, MsgID: msgID, Key: key, From: from, To: to, Client: c.clientID}, 5*time.Second)
	if err != nil {
		cli.PrintError("%v", err)
		return
	}
	printReply(*reply, func(body json.RawMessage) {
		cli.PrintSuccess("cas %s: %s -> %s", key, from, to)
	})
}

// printReply inspects the reply's type tag: an error body is reported
// uniformly, anything else is handed to onSuccess for command-specific
// formatting.
func printReply(env wire.Envelope, onSuccess func(body json.RawMessage)) {
	var hdr wire.Header
	json.Unmarshal(env.Body, &hdr)
	if hdr.Type == wire.TypeError {
		var errBody wire.ErrorBody
		json.Unmarshal(env.Body, &errBody)
		cli.PrintError("error %d: %s", errBody.Code, errBody.Text)
		return
	}
	onSuccess(env.Body)
}
