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

// Package config loads and validates raftkv node configuration from
// defaults, a hand-rolled key=value file, and environment variables, in that
// increasing order of precedence.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names recognized as config overrides.
const (
	EnvNodeID              = "RAFTKV_NODE_ID"
	EnvListenAddr          = "RAFTKV_LISTEN_ADDR"
	EnvBridgeAddr          = "RAFTKV_BRIDGE_ADDR"
	EnvElectionTimeoutBase = "RAFTKV_ELECTION_TIMEOUT_BASE_MS"
	EnvHeartbeatInterval   = "RAFTKV_HEARTBEAT_INTERVAL_MS"
	EnvLogLevel            = "RAFTKV_LOG_LEVEL"
	EnvLogJSON             = "RAFTKV_LOG_JSON"
	EnvTLSEnabled          = "RAFTKV_TLS_ENABLED"
	EnvDiscoveryService    = "RAFTKV_DISCOVERY_SERVICE"
)

// Config holds one node's full runtime configuration.
type Config struct {
	// NodeID is this node's identifier, as used in the "src"/"dest" fields
	// of the wire envelope and in node_ids lists.
	NodeID string

	// ListenAddr is the address (host:port) this node advertises. The node
	// does not listen on it; stdio versus bridge is decided by BridgeAddr.
	ListenAddr string

	// BridgeAddr is the address of a running raftkv-bridge to dial instead
	// of listening (for client/peer processes that connect out).
	BridgeAddr string

	// ElectionTimeoutBase is the minimum randomized election timeout.
	// The effective timeout is drawn uniformly from
	// [ElectionTimeoutBase, 2*ElectionTimeoutBase).
	ElectionTimeoutBase time.Duration

	// HeartbeatInterval is how often a leader sends AppendEntries to keep
	// followers from timing out.
	HeartbeatInterval time.Duration

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string

	// LogJSON switches the logger to one JSON Entry per line.
	LogJSON bool

	// TLSEnabled switches the bridge transport to crypto/tls.
	TLSEnabled bool

	// DiscoveryService is the mDNS service name nodes advertise/browse
	// under when bootstrapping bridge addresses.
	DiscoveryService string

	// ConfigFile records the path this config was loaded from, if any.
	ConfigFile string
}

// DefaultConfig returns the configuration a node starts with absent any
// file, environment, or flag override.
func DefaultConfig() *Config {
	return &Config{
		NodeID:              "",
		ListenAddr:          "",
		BridgeAddr:          "",
		ElectionTimeoutBase: 150 * time.Millisecond,
		HeartbeatInterval:   50 * time.Millisecond,
		LogLevel:            "info",
		LogJSON:             false,
		TLSEnabled:          false,
		DiscoveryService:    "_raftkv._tcp",
	}
}

// Validate reports whether the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}

	if c.ElectionTimeoutBase <= 0 {
		return fmt.Errorf("election_timeout_base must be positive, got %s", c.ElectionTimeoutBase)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive, got %s", c.HeartbeatInterval)
	}
	if c.HeartbeatInterval >= c.ElectionTimeoutBase {
		return fmt.Errorf("heartbeat_interval (%s) must be smaller than election_timeout_base (%s)", c.HeartbeatInterval, c.ElectionTimeoutBase)
	}
	if c.TLSEnabled && c.ListenAddr == "" && c.BridgeAddr == "" {
		return fmt.Errorf("tls_enabled requires listen_addr or bridge_addr")
	}
	return nil
}

// Manager owns the active Config and knows how to layer a file and the
// environment on top of the defaults.
type Manager struct {
	cfg *Config
}

// NewManager returns a Manager seeded with DefaultConfig.
func NewManager() *Manager {
	return &Manager{cfg: DefaultConfig()}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	return m.cfg
}

// LoadFromFile parses a "key = value" file, one setting per line, '#' for
// comments, and merges recognized keys onto the current configuration.
// An unrecognized key makes LoadFromFile return an error.
func (m *Manager) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("%s:%d: expected key = value, got %q", path, lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"`)

		if err := m.apply(key, value); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	m.cfg.ConfigFile = path
	return nil
}

func (m *Manager) apply(key, value string) error {
	switch key {
	case "node_id":
		m.cfg.NodeID = value
	case "listen_addr":
		m.cfg.ListenAddr = value
	case "bridge_addr":
		m.cfg.BridgeAddr = value
	case "election_timeout_base_ms":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("election_timeout_base_ms: %w", err)
		}
		m.cfg.ElectionTimeoutBase = time.Duration(ms) * time.Millisecond
	case "heartbeat_interval_ms":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("heartbeat_interval_ms: %w", err)
		}
		m.cfg.HeartbeatInterval = time.Duration(ms) * time.Millisecond
	case "log_level":
		m.cfg.LogLevel = value
	case "log_json":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("log_json: %w", err)
		}
		m.cfg.LogJSON = b
	case "tls_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("tls_enabled: %w", err)
		}
		m.cfg.TLSEnabled = b
	case "discovery_service":
		m.cfg.DiscoveryService = value
	default:
		return fmt.Errorf("unrecognized key: %s", key)
	}
	return nil
}

// LoadFromEnv overlays recognized RAFTKV_* environment variables onto the
// current configuration. Unset variables leave existing values untouched.
func (m *Manager) LoadFromEnv() error {
	if v := os.Getenv(EnvNodeID); v != "" {
		m.cfg.NodeID = v
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		m.cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvBridgeAddr); v != "" {
		m.cfg.BridgeAddr = v
	}
	if v := os.Getenv(EnvElectionTimeoutBase); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvElectionTimeoutBase, err)
		}
		m.cfg.ElectionTimeoutBase = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv(EnvHeartbeatInterval); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHeartbeatInterval, err)
		}
		m.cfg.HeartbeatInterval = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		m.cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogJSON); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogJSON, err)
		}
		m.cfg.LogJSON = b
	}
	if v := os.Getenv(EnvTLSEnabled); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTLSEnabled, err)
		}
		m.cfg.TLSEnabled = b
	}
	if v := os.Getenv(EnvDiscoveryService); v != "" {
		m.cfg.DiscoveryService = v
	}
	return nil
}
