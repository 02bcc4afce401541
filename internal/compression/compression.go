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
Package compression provides pluggable compression for raftkv-dump log
snapshots.

A dump is a sequence of newline-delimited JSON log entries; compressing
the whole stream trades a bit of CPU for a much smaller archive on disk.
The algorithm is stored in a small header so a later raftkv-dump run
can decompress without being told which one was used.
*/
package compression

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm identifies a compression codec.
type Algorithm int

const (
	AlgorithmNone Algorithm = iota
	AlgorithmGzip
	AlgorithmLZ4
	AlgorithmSnappy
	AlgorithmZstd
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmGzip:
		return "gzip"
	case AlgorithmLZ4:
		return "lz4"
	case AlgorithmSnappy:
		return "snappy"
	case AlgorithmZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseAlgorithm parses a compression algorithm name, as passed to
// raftkv-dump's --compress flag.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "none", "":
		return AlgorithmNone, nil
	case "gzip":
		return AlgorithmGzip, nil
	case "lz4":
		return AlgorithmLZ4, nil
	case "snappy":
		return AlgorithmSnappy, nil
	case "zstd":
		return AlgorithmZstd, nil
	default:
		return AlgorithmNone, fmt.Errorf("unknown compression algorithm: %s", s)
	}
}

var (
	ErrDataTooSmall     = errors.New("data too small to compress")
	ErrUnsupportedAlgo  = errors.New("unsupported compression algorithm")
	ErrDecompressFailed = errors.New("decompression failed")
)

// Config controls when and how dump output is compressed.
type Config struct {
	Algorithm Algorithm
	// MinSize is the smallest payload that's worth compressing; smaller
	// ones are stored raw to skip the codec's fixed framing overhead.
	MinSize int
}

func DefaultConfig() Config {
	return Config{Algorithm: AlgorithmZstd, MinSize: 256}
}

// Compressor compresses and decompresses dump payloads with the
// configured algorithm.
type Compressor struct {
	config Config
}

func NewCompressor(config Config) *Compressor {
	return &Compressor{config: config}
}

// Compress returns data unchanged, prefixed with the "none" algorithm
// marker, if it's smaller than MinSize or the algorithm is AlgorithmNone.
// Otherwise it returns the compressed form prefixed with a one-byte
// algorithm marker so Decompress doesn't need to be told which codec
// produced it.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	algo := c.config.Algorithm
	if algo == AlgorithmNone || len(data) < c.config.MinSize {
		return append([]byte{byte(AlgorithmNone)}, data...), nil
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(algo))

	w, err := newEncoder(algo, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compression: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compression: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reads the algorithm marker written by Compress and
// dispatches to the matching decoder.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrDecompressFailed
	}
	algo := Algorithm(data[0])
	body := data[1:]

	if algo == AlgorithmNone {
		return body, nil
	}

	r, closeFn, err := newDecoder(algo, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer closeFn()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
	}
	return out, nil
}

type writeCloser = io.WriteCloser

func newEncoder(algo Algorithm, w io.Writer) (writeCloser, error) {
	switch algo {
	case AlgorithmGzip:
		return gzip.NewWriter(w), nil
	case AlgorithmLZ4:
		return lz4.NewWriter(w), nil
	case AlgorithmSnappy:
		return snappy.NewBufferedWriter(w), nil
	case AlgorithmZstd:
		return zstd.NewWriter(w)
	default:
		return nil, ErrUnsupportedAlgo
	}
}

func newDecoder(algo Algorithm, r io.Reader) (io.Reader, func(), error) {
	switch algo {
	case AlgorithmGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		return gr, func() { gr.Close() }, nil
	case AlgorithmLZ4:
		return lz4.NewReader(r), func() {}, nil
	case AlgorithmSnappy:
		return snappy.NewReader(r), func() {}, nil
	case AlgorithmZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		return zr, zr.Close, nil
	default:
		return nil, nil, ErrUnsupportedAlgo
	}
}
