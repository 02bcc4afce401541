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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ElectionTimeoutBase != 150*time.Millisecond {
		t.Errorf("Expected default election_timeout_base 150ms, got %s", cfg.ElectionTimeoutBase)
	}
	if cfg.HeartbeatInterval != 50*time.Millisecond {
		t.Errorf("Expected default heartbeat_interval 50ms, got %s", cfg.HeartbeatInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log_level 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogJSON != false {
		t.Errorf("Expected default log_json false, got %v", cfg.LogJSON)
	}
	if cfg.TLSEnabled != false {
		t.Errorf("Expected default tls_enabled false, got %v", cfg.TLSEnabled)
	}
	if cfg.DiscoveryService != "_raftkv._tcp" {
		t.Errorf("Expected default discovery_service '_raftkv._tcp', got '%s'", cfg.DiscoveryService)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			cfg:     DefaultConfig(),
			wantErr: false,
		},
		{
			name: "invalid log level",
			cfg: &Config{
				LogLevel:            "verbose",
				ElectionTimeoutBase: 150 * time.Millisecond,
				HeartbeatInterval:   50 * time.Millisecond,
			},
			wantErr: true,
		},
		{
			name: "zero election timeout",
			cfg: &Config{
				LogLevel:            "info",
				ElectionTimeoutBase: 0,
				HeartbeatInterval:   50 * time.Millisecond,
			},
			wantErr: true,
		},
		{
			name: "zero heartbeat interval",
			cfg: &Config{
				LogLevel:            "info",
				ElectionTimeoutBase: 150 * time.Millisecond,
				HeartbeatInterval:   0,
			},
			wantErr: true,
		},
		{
			name: "heartbeat not smaller than election timeout",
			cfg: &Config{
				LogLevel:            "info",
				ElectionTimeoutBase: 100 * time.Millisecond,
				HeartbeatInterval:   100 * time.Millisecond,
			},
			wantErr: true,
		},
		{
			name: "tls enabled without any address",
			cfg: &Config{
				LogLevel:            "info",
				ElectionTimeoutBase: 150 * time.Millisecond,
				HeartbeatInterval:   50 * time.Millisecond,
				TLSEnabled:          true,
			},
			wantErr: true,
		},
		{
			name: "tls enabled with listen addr",
			cfg: &Config{
				LogLevel:            "info",
				ElectionTimeoutBase: 150 * time.Millisecond,
				HeartbeatInterval:   50 * time.Millisecond,
				TLSEnabled:          true,
				ListenAddr:          ":7400",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "raftkv_config_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configContent := `# Test configuration
node_id = "n0"
listen_addr = ":7400"
bridge_addr = "bridge.local:7400"
election_timeout_base_ms = 300
heartbeat_interval_ms = 75
log_level = "debug"
log_json = true
tls_enabled = false
discovery_service = "_raftkv-test._tcp"
`

	configPath := filepath.Join(tmpDir, "raftkv.conf")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	mgr := NewManager()
	if err := mgr.LoadFromFile(configPath); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	cfg := mgr.Get()

	if cfg.NodeID != "n0" {
		t.Errorf("Expected node_id 'n0', got '%s'", cfg.NodeID)
	}
	if cfg.ListenAddr != ":7400" {
		t.Errorf("Expected listen_addr ':7400', got '%s'", cfg.ListenAddr)
	}
	if cfg.BridgeAddr != "bridge.local:7400" {
		t.Errorf("Expected bridge_addr 'bridge.local:7400', got '%s'", cfg.BridgeAddr)
	}
	if cfg.ElectionTimeoutBase != 300*time.Millisecond {
		t.Errorf("Expected election_timeout_base 300ms, got %s", cfg.ElectionTimeoutBase)
	}
	if cfg.HeartbeatInterval != 75*time.Millisecond {
		t.Errorf("Expected heartbeat_interval 75ms, got %s", cfg.HeartbeatInterval)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log_level 'debug', got '%s'", cfg.LogLevel)
	}
	if cfg.LogJSON != true {
		t.Errorf("Expected log_json true, got %v", cfg.LogJSON)
	}
	if cfg.DiscoveryService != "_raftkv-test._tcp" {
		t.Errorf("Expected discovery_service '_raftkv-test._tcp', got '%s'", cfg.DiscoveryService)
	}
	if cfg.ConfigFile != configPath {
		t.Errorf("Expected ConfigFile '%s', got '%s'", configPath, cfg.ConfigFile)
	}
}

func TestLoadFromFileRejectsUnrecognizedKey(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "raftkv_config_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "raftkv.conf")
	if err := os.WriteFile(configPath, []byte("bogus_key = 1\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	mgr := NewManager()
	if err := mgr.LoadFromFile(configPath); err == nil {
		t.Error("expected LoadFromFile to reject an unrecognized key")
	}
}

func TestLoadFromEnv(t *testing.T) {
	origs := map[string]string{
		EnvNodeID:              os.Getenv(EnvNodeID),
		EnvElectionTimeoutBase: os.Getenv(EnvElectionTimeoutBase),
		EnvLogLevel:            os.Getenv(EnvLogLevel),
		EnvLogJSON:             os.Getenv(EnvLogJSON),
	}
	defer func() {
		for k, v := range origs {
			os.Setenv(k, v)
		}
	}()

	os.Setenv(EnvNodeID, "n2")
	os.Setenv(EnvElectionTimeoutBase, "400")
	os.Setenv(EnvLogLevel, "warn")
	os.Setenv(EnvLogJSON, "true")

	mgr := NewManager()
	if err := mgr.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	cfg := mgr.Get()

	if cfg.NodeID != "n2" {
		t.Errorf("Expected node_id 'n2' from env, got '%s'", cfg.NodeID)
	}
	if cfg.ElectionTimeoutBase != 400*time.Millisecond {
		t.Errorf("Expected election_timeout_base 400ms from env, got %s", cfg.ElectionTimeoutBase)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected log_level 'warn' from env, got '%s'", cfg.LogLevel)
	}
	if cfg.LogJSON != true {
		t.Errorf("Expected log_json true from env, got %v", cfg.LogJSON)
	}
}

func TestConfigPrecedence(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "raftkv_config_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configContent := `node_id = "n0"
election_timeout_base_ms = 200
log_level = "info"
`
	configPath := filepath.Join(tmpDir, "raftkv.conf")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	origTimeout := os.Getenv(EnvElectionTimeoutBase)
	defer os.Setenv(EnvElectionTimeoutBase, origTimeout)
	os.Setenv(EnvElectionTimeoutBase, "500")

	mgr := NewManager()
	if err := mgr.LoadFromFile(configPath); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if err := mgr.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	cfg := mgr.Get()

	// Env is applied after the file, so it wins.
	if cfg.ElectionTimeoutBase != 500*time.Millisecond {
		t.Errorf("Expected env to override file: election_timeout_base 500ms, got %s", cfg.ElectionTimeoutBase)
	}
	// Fields the env didn't touch keep the file's value.
	if cfg.NodeID != "n0" {
		t.Errorf("Expected node_id 'n0' from file to survive, got '%s'", cfg.NodeID)
	}
}
