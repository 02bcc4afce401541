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

/*
raftkv-discover finds raftkv-bridge instances on the local network via
mDNS and reports which ones are actually accepting TCP connections.

Usage:
    raftkv-discover                 # discover bridges (5 second timeout)
    raftkv-discover --timeout 10    # custom timeout in seconds
    raftkv-discover --json          # output as JSON
    raftkv-discover --quiet         # only output addresses (for scripting)
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/firefly-oss/raftkv/internal/cluster"
)

const version = "1.0.0"

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

// probeResult is a discovered node plus whether it answered a TCP dial.
type probeResult struct {
	node  *cluster.DiscoveredNode
	alive bool
}

func main() {
	timeout := flag.Int("timeout", 5, "discovery timeout in seconds")
	jsonOutput := flag.Bool("json", false, "output as JSON")
	quiet := flag.Bool("quiet", false, "only output addresses (for scripting)")
	service := flag.String("service", "_raftkv._tcp", "mDNS service name to browse")
	flag.Parse()

	log.SetOutput(io.Discard) // mdns logs noisy IPv6 errors that aren't actionable here

	if !*quiet && !*jsonOutput {
		printBanner()
		fmt.Printf("%s%sℹ%s Scanning for raftkv bridges on the network (timeout: %ds)...\n\n", cyan, bold, reset, *timeout)
	}

	discovery := cluster.NewDiscoveryService(cluster.DiscoveryConfig{
		NodeID:  "discover-client",
		Service: *service,
		Enabled: false,
	})

	nodes, err := discovery.DiscoverNodes(time.Duration(*timeout) * time.Second)
	if err != nil {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "%s%s✗%s discovery failed: %v\n", red, bold, reset, err)
		}
		os.Exit(1)
	}

	if len(nodes) == 0 {
		if !*quiet && !*jsonOutput {
			fmt.Printf("%s%s⚠%s no raftkv bridges found on the network.\n", yellow, bold, reset)
		}
		return
	}

	results := probeAll(nodes)

	if *jsonOutput {
		outputJSON(results)
	} else if *quiet {
		outputQuiet(results)
	} else {
		outputHuman(results)
	}
}

// probeAll dials every discovered node's address concurrently and
// reports which ones actually accept a connection, since an mDNS
// responder can outlive the TCP listener it advertised.
func probeAll(nodes []*cluster.DiscoveredNode) []probeResult {
	results := make([]probeResult, len(nodes))
	g, _ := errgroup.WithContext(context.Background())

	for i, n := range nodes {
		i, n := i, n
		g.Go(func() error {
			results[i] = probeResult{node: n, alive: dialAlive(n.Addr)}
			return nil
		})
	}
	g.Wait()
	return results
}

func dialAlive(addr string) bool {
	if addr == "" {
		return false
	}
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func printBanner() {
	fmt.Println()
	fmt.Printf("%s%sraftkv-discover%s %sv%s%s\n", green, bold, reset, dim, version, reset)
	fmt.Printf("%sNetwork bridge discovery tool%s\n\n", dim, reset)
}

func outputJSON(results []probeResult) {
	type entry struct {
		NodeID  string `json:"node_id"`
		Addr    string `json:"addr"`
		Version string `json:"version,omitempty"`
		Alive   bool   `json:"alive"`
	}
	out := make([]entry, len(results))
	for i, r := range results {
		out[i] = entry{NodeID: r.node.NodeID, Addr: r.node.Addr, Version: r.node.Version, Alive: r.alive}
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(data))
}

func outputQuiet(results []probeResult) {
	addrs := make([]string, 0, len(results))
	for _, r := range results {
		if r.alive {
			addrs = append(addrs, r.node.Addr)
		}
	}
	fmt.Println(strings.Join(addrs, ","))
}

func outputHuman(results []probeResult) {
	fmt.Printf("%s%s✓%s found %d raftkv bridge(s)\n\n", green, bold, reset, len(results))
	for i, r := range results {
		status := green + "alive" + reset
		if !r.alive {
			status = red + "unreachable" + reset
		}
		fmt.Printf("  %s[%d]%s %s%s%s  %s  %s\n", dim, i+1, reset, bold+cyan, r.node.NodeID, reset, r.node.Addr, status)
	}
	fmt.Println()
}
