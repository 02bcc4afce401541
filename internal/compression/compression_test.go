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

package compression

import (
	"bytes"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	config := DefaultConfig()
	config.MinSize = 0

	testData := []byte("this is some test data that should be compressed and decompressed correctly. it needs to be long enough to actually see some compression if possible, but here we just care about correctness.")

	algorithms := []Algorithm{
		AlgorithmNone,
		AlgorithmGzip,
		AlgorithmLZ4,
		AlgorithmSnappy,
		AlgorithmZstd,
	}

	for _, algo := range algorithms {
		t.Run(algo.String(), func(t *testing.T) {
			config.Algorithm = algo
			compressor := NewCompressor(config)

			compressed, err := compressor.Compress(testData)
			if err != nil {
				t.Fatalf("failed to compress with %s: %v", algo, err)
			}

			decompressed, err := compressor.Decompress(compressed)
			if err != nil {
				t.Fatalf("failed to decompress with %s: %v", algo, err)
			}

			if !bytes.Equal(testData, decompressed) {
				t.Errorf("decompressed data does not match original for %s", algo)
			}
		})
	}
}

func TestCompressLeavesSmallPayloadsRaw(t *testing.T) {
	config := DefaultConfig()
	config.MinSize = 1024
	config.Algorithm = AlgorithmZstd
	compressor := NewCompressor(config)

	small := []byte("short")
	out, err := compressor.Compress(small)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Algorithm(out[0]) != AlgorithmNone {
		t.Errorf("expected a payload below MinSize to be stored raw, got marker %v", Algorithm(out[0]))
	}

	back, err := compressor.Decompress(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(small, back) {
		t.Error("raw round trip altered the payload")
	}
}

func TestParseAlgorithmRejectsUnknownName(t *testing.T) {
	if _, err := ParseAlgorithm("rot13"); err == nil {
		t.Fatal("expected an error for an unrecognized algorithm name")
	}
}

func TestDecompressRejectsEmptyInput(t *testing.T) {
	compressor := NewCompressor(DefaultConfig())
	if _, err := compressor.Decompress(nil); err == nil {
		t.Fatal("expected an error decompressing an empty payload")
	}
}
