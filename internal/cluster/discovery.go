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

// Package cluster advertises and discovers raftkv bridge addresses over the
// local network via mDNS; raftkv-bridge and raftkv-discover use it.
package cluster

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
)

// DiscoveredNode is one entry returned by DiscoverNodes.
type DiscoveredNode struct {
	NodeID  string
	Addr    string
	Version string
}

// DiscoveryConfig configures advertising and discovery.
type DiscoveryConfig struct {
	// NodeID is advertised as the mDNS instance name.
	NodeID string
	// ListenAddr is the node's own address, advertised as a TXT record so
	// a discoverer doesn't have to guess the port from the mDNS response.
	ListenAddr string
	// Service is the mDNS service name, e.g. "_raftkv._tcp".
	Service string
	// Enabled controls whether Advertise actually registers a responder.
	// A discover-only client sets this false.
	Enabled bool
}

// DiscoveryService advertises this node (if enabled) and can scan the
// network for other nodes running the same service.
type DiscoveryService struct {
	cfg DiscoveryConfig

	mu     sync.Mutex
	server *mdns.Server
}

// NewDiscoveryService builds a discovery service from cfg. It does not
// start advertising until Advertise is called.
func NewDiscoveryService(cfg DiscoveryConfig) *DiscoveryService {
	if cfg.Service == "" {
		cfg.Service = "_raftkv._tcp"
	}
	return &DiscoveryService{cfg: cfg}
}

// Advertise registers an mDNS responder so DiscoverNodes on other hosts
// can find this node. It is a no-op if the service was built with
// Enabled: false. Calling it twice returns an error instead of leaking
// the previous responder.
func (d *DiscoveryService) Advertise() error {
	if !d.cfg.Enabled {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server != nil {
		return fmt.Errorf("cluster: discovery already advertising")
	}

	host, port, err := splitHostPort(d.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("cluster: invalid listen_addr for advertising: %w", err)
	}

	info := []string{"addr=" + d.cfg.ListenAddr, "version=1"}
	service, err := mdns.NewMDNSService(d.cfg.NodeID, d.cfg.Service, "", host, port, nil, info)
	if err != nil {
		return fmt.Errorf("cluster: building mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("cluster: starting mdns server: %w", err)
	}
	d.server = server
	return nil
}

// Close stops advertising, if it was started.
func (d *DiscoveryService) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server == nil {
		return nil
	}
	err := d.server.Shutdown()
	d.server = nil
	return err
}

// DiscoverNodes scans the network for timeout and returns every node it
// hears from, deduplicated by instance name. The caller's own
// advertisement (if any) is included like any other responder; callers
// that need to exclude themselves filter by NodeID.
func (d *DiscoveryService) DiscoverNodes(timeout time.Duration) ([]*DiscoveredNode, error) {
	entriesCh := make(chan *mdns.ServiceEntry, 32)
	seen := make(map[string]*DiscoveredNode)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entriesCh {
			node := &DiscoveredNode{NodeID: strings.TrimSuffix(entry.Name, "."+d.cfg.Service+".local.")}
			for _, field := range entry.InfoFields {
				if v, ok := cutPrefix(field, "addr="); ok {
					node.Addr = v
				}
				if v, ok := cutPrefix(field, "version="); ok {
					node.Version = v
				}
			}
			if node.Addr == "" && entry.Port != 0 {
				node.Addr = fmt.Sprintf("%s:%d", entry.AddrV4, entry.Port)
			}
			seen[node.NodeID] = node
		}
	}()

	params := &mdns.QueryParam{
		Service: d.cfg.Service,
		Domain:  "local",
		Timeout: timeout,
		Entries: entriesCh,
	}
	if err := mdns.Query(params); err != nil {
		close(entriesCh)
		<-done
		return nil, fmt.Errorf("cluster: mdns query: %w", err)
	}
	close(entriesCh)
	<-done

	nodes := make([]*DiscoveredNode, 0, len(seen))
	for _, n := range seen {
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return "", false
}

func splitHostPort(addr string) (string, int, error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("missing port in %q", addr)
	}
	host := addr[:idx]
	if host == "" {
		host = "127.0.0.1"
	}
	var port int
	if _, err := fmt.Sscanf(addr[idx+1:], "%d", &port); err != nil {
		return "", 0, fmt.Errorf("bad port in %q: %w", addr, err)
	}
	return host, port, nil
}
