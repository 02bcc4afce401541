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

// raftkv-bridge is a minimal reference harness: it accepts one TCP
// connection per node or client process and relays newline-delimited
// JSON envelopes between them by demultiplexing on the envelope's dest
// field, the way an in-process io.Pipe bus does in tests. It never
// inspects message bodies and has no notion of Raft state; it is pure
// plumbing standing in for "an orchestration harness" per spec.
package main

import (
	"bufio"
	"crypto/tls"
	"flag"
	"fmt"
	"net"
	"sync"

	"github.com/firefly-oss/raftkv/internal/cluster"
	"github.com/firefly-oss/raftkv/internal/logging"
	raftkvtls "github.com/firefly-oss/raftkv/internal/tls"
	"github.com/firefly-oss/raftkv/internal/wire"
)

// bus demultiplexes envelopes by dest across every connected participant.
// A participant's identity is learned from the src field of the first
// envelope it sends, so no separate registration handshake is needed.
type bus struct {
	mu    sync.Mutex
	conns map[string]net.Conn
}

func newBus() *bus {
	return &bus{conns: make(map[string]net.Conn)}
}

func (b *bus) register(id string, conn net.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[id] = conn
}

func (b *bus) unregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, id)
}

func (b *bus) forward(dest string, line []byte) {
	b.mu.Lock()
	conn := b.conns[dest]
	b.mu.Unlock()
	if conn == nil {
		return
	}
	conn.Write(line)
}

func (b *bus) serve(conn net.Conn, logger *logging.Logger) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var myID string
	defer func() {
		if myID != "" {
			b.unregister(myID)
		}
	}()

	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		line = append(line, '\n')

		env, err := wire.Decode(line)
		if err != nil {
			logger.Warn("dropping malformed line", "error", err.Error())
			continue
		}
		if myID == "" {
			myID = env.Src
			b.register(myID, conn)
			logger.Info("participant connected", "id", myID, "remote_addr", conn.RemoteAddr().String())
		}
		b.forward(env.Dest, line)
	}
}

func main() {
	listenAddr := flag.String("listen-addr", ":8400", "address to listen on")
	tlsEnabled := flag.Bool("tls", false, "serve with a self-signed crypto/tls certificate")
	discoveryService := flag.String("discovery-service", "_raftkv._tcp", "mDNS service name to advertise under")
	advertise := flag.Bool("advertise", false, "advertise this bridge over mDNS so raftkv-discover can find it")
	flag.Parse()

	logging.SetGlobalLevel(logging.INFO)
	logger := logging.NewLogger("bridge")

	var listener net.Listener
	var err error

	if *tlsEnabled {
		certDir, certPath, keyPath := raftkvtls.GetDefaultCertPaths()
		if err := raftkvtls.EnsureCertificates(certPath, keyPath, raftkvtls.DefaultCertConfig()); err != nil {
			logger.Fatal("failed to provision tls certificates", "error", err.Error(), "cert_dir", certDir)
		}
		tlsCfg, err2 := raftkvtls.LoadTLSConfig(certPath, keyPath)
		if err2 != nil {
			logger.Fatal("failed to load tls config", "error", err2.Error())
		}
		listener, err = tls.Listen("tcp", *listenAddr, tlsCfg)
	} else {
		listener, err = net.Listen("tcp", *listenAddr)
	}
	if err != nil {
		logger.Fatal("failed to listen", "error", err.Error(), "addr", *listenAddr)
	}
	defer listener.Close()

	if *advertise {
		disc := cluster.NewDiscoveryService(cluster.DiscoveryConfig{
			NodeID:     "bridge",
			ListenAddr: *listenAddr,
			Service:    *discoveryService,
			Enabled:    true,
		})
		if err := disc.Advertise(); err != nil {
			logger.Warn("mdns advertise failed", "error", err.Error())
		} else {
			defer disc.Close()
		}
	}

	logger.Info("bridge listening", "addr", *listenAddr, "tls", fmt.Sprintf("%v", *tlsEnabled))

	b := newBus()
	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Warn("accept failed", "error", err.Error())
			continue
		}
		go b.serve(conn, logger)
	}
}
