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

// raftkv runs a single Raft node. It speaks newline-delimited JSON over
// stdio by default, or over a TCP connection to a raftkv-bridge when
// -bridge-addr is set. node_id and the cluster's node_ids arrive over
// that stream via the one-shot raft_init message; nothing about cluster
// membership is decided here.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/firefly-oss/raftkv/internal/audit"
	"github.com/firefly-oss/raftkv/internal/config"
	"github.com/firefly-oss/raftkv/internal/consensus"
	"github.com/firefly-oss/raftkv/internal/dispatch"
	"github.com/firefly-oss/raftkv/internal/logging"
	"github.com/firefly-oss/raftkv/internal/transport"
)

func main() {
	configFile := flag.String("config", "", "path to a key=value config file")
	nodeID := flag.String("node-id", "", "this node's identifier (advertised for discovery/logging)")
	listenAddr := flag.String("listen-addr", "", "advertised address, for discovery purposes only")
	bridgeAddr := flag.String("bridge-addr", "", "dial a raftkv-bridge at this address instead of using stdio")
	electionMS := flag.Int("election-timeout-ms", 0, "minimum election timeout in milliseconds (0 = use config/default)")
	heartbeatMS := flag.Int("heartbeat-ms", 0, "leader heartbeat interval in milliseconds (0 = use config/default)")
	logLevel := flag.String("log-level", "", "debug, info, warn, or error")
	logJSON := flag.Bool("log-json", false, "emit one JSON log Entry per line instead of text")
	tlsEnabled := flag.Bool("tls", false, "use crypto/tls when dialing bridge-addr")
	flag.Parse()

	mgr := config.NewManager()
	if *configFile != "" {
		if err := mgr.LoadFromFile(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "raftkv: %v\n", err)
			os.Exit(1)
		}
	}
	if err := mgr.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "raftkv: %v\n", err)
		os.Exit(1)
	}

	cfg := mgr.Get()
	if *nodeID != "" {
		cfg.NodeID = *nodeID
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *bridgeAddr != "" {
		cfg.BridgeAddr = *bridgeAddr
	}
	if *electionMS > 0 {
		cfg.ElectionTimeoutBase = time.Duration(*electionMS) * time.Millisecond
	}
	if *heartbeatMS > 0 {
		cfg.HeartbeatInterval = time.Duration(*heartbeatMS) * time.Millisecond
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logJSON {
		cfg.LogJSON = true
	}
	if *tlsEnabled {
		cfg.TLSEnabled = true
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "raftkv: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetJSONMode(cfg.LogJSON)
	logger := logging.NewLogger("main")

	rw, err := openStream(cfg.BridgeAddr, cfg.TLSEnabled)
	if err != nil {
		logger.Fatal("failed to open transport stream", "error", err.Error())
	}

	tr := transport.New(rw, rw)
	dispatcher := dispatch.New()
	recorder := audit.NewRecorder(audit.DefaultConfig())
	defer recorder.Close()

	node := consensus.New(consensus.Config{
		ElectionTimeoutBase: cfg.ElectionTimeoutBase,
		HeartbeatInterval:   cfg.HeartbeatInterval,
	}, tr, dispatcher, recorder, consensus.SystemClock{}, time.Now().UnixNano())

	logger.Info("node starting", "node_id", cfg.NodeID, "bridge_addr", cfg.BridgeAddr)

	idle := 0
	for {
		if node.Tick() {
			idle = 0
			continue
		}
		idle++
		// Back off gradually while there's nothing to do, but never sleep
		// long enough to blow through the election timeout.
		delay := time.Duration(idle) * 200 * time.Microsecond
		if max := cfg.ElectionTimeoutBase / 4; delay > max {
			delay = max
		}
		time.Sleep(delay)
	}
}

// openStream returns the duplex byte stream a Transport will read/write.
// With no bridge address it's stdio; otherwise it's a TCP (optionally
// TLS) connection to the bridge.
func openStream(bridgeAddr string, tlsEnabled bool) (io.ReadWriter, error) {
	if bridgeAddr == "" {
		return stdio{}, nil
	}

	if tlsEnabled {
		conn, err := tls.Dial("tcp", bridgeAddr, &tls.Config{InsecureSkipVerify: true})
		if err != nil {
			return nil, fmt.Errorf("dialing bridge over tls: %w", err)
		}
		return conn, nil
	}

	conn, err := net.Dial("tcp", bridgeAddr)
	if err != nil {
		return nil, fmt.Errorf("dialing bridge: %w", err)
	}
	return conn, nil
}

// stdio adapts os.Stdin/os.Stdout to a single io.ReadWriter.
type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
