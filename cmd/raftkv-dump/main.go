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
raftkv-dump inspects a captured log of newline-delimited wire envelopes
(as recorded from a node's stdio or a raftkv-bridge connection) and can
compress or decompress that capture for archival.

Usage:
    raftkv-dump capture.log                      # pretty-print envelopes
    raftkv-dump --format json capture.log
    raftkv-dump --compress zstd capture.log out.rkvz
    raftkv-dump --decompress out.rkvz restored.log
*/
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/firefly-oss/raftkv/internal/compression"
	"github.com/firefly-oss/raftkv/internal/wire"
	"github.com/firefly-oss/raftkv/pkg/cli"
)

func main() {
	format := flag.String("format", "table", "output format for pretty-printing: table, json, plain")
	compress := flag.String("compress", "", "compress the input file with the named algorithm (none, gzip, lz4, snappy, zstd) and write it to the second argument")
	decompress := flag.Bool("decompress", false, "decompress the input file and write the restored envelope log to the second argument")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: raftkv-dump [flags] <input> [output]")
		os.Exit(1)
	}

	switch {
	case *compress != "":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: raftkv-dump --compress <algo> <input> <output>")
			os.Exit(1)
		}
		runCompress(args[0], args[1], *compress)
	case *decompress:
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: raftkv-dump --decompress <input> <output>")
			os.Exit(1)
		}
		runDecompress(args[0], args[1])
	default:
		runPrint(args[0], *format)
	}
}

func runCompress(inPath, outPath, algoName string) {
	algo, err := compression.ParseAlgorithm(algoName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "raftkv-dump: %v\n", err)
		os.Exit(1)
	}
	data, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "raftkv-dump: %v\n", err)
		os.Exit(1)
	}

	cfg := compression.DefaultConfig()
	cfg.Algorithm = algo
	compressor := compression.NewCompressor(cfg)

	out, err := compressor.Compress(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "raftkv-dump: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "raftkv-dump: %v\n", err)
		os.Exit(1)
	}
	cli.PrintSuccess("compressed %s (%s) -> %s (%s, %s)", inPath, formatFileSize(len(data)), outPath, formatFileSize(len(out)), algoName)
}

func runDecompress(inPath, outPath string) {
	data, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "raftkv-dump: %v\n", err)
		os.Exit(1)
	}

	compressor := compression.NewCompressor(compression.DefaultConfig())
	out, err := compressor.Decompress(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "raftkv-dump: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "raftkv-dump: %v\n", err)
		os.Exit(1)
	}
	cli.PrintSuccess("decompressed %s -> %s (%s)", inPath, outPath, formatFileSize(len(out)))
}

func runPrint(path, format string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "raftkv-dump: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	table := cli.NewTable("#", "src", "dest", "type", "body")
	table.SetFormat(cli.ParseOutputFormat(format))

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	n := 0
	for scanner.Scan() {
		n++
		var env wire.Envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			table.AddRow(fmt.Sprintf("%d", n), "?", "?", "malformed", scanner.Text())
			continue
		}
		var hdr wire.Header
		json.Unmarshal(env.Body, &hdr)
		table.AddRow(fmt.Sprintf("%d", n), env.Src, env.Dest, hdr.Type, string(env.Body))
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "raftkv-dump: %v\n", err)
		os.Exit(1)
	}

	table.Print()
}

func formatFileSize(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for n := int64(n) / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
