// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package compressor provides a stateless, allocation-conscious baseline
// implementation of collab.Compressor. Real gradient-compression codecs
// (top-k, quantization, etc.) are out of scope per the Non-goals; this is
// a demo/test-grade codec that exercises the Compress/Decompress stage
// slots the Dispatcher inserts around Push/Pull.
package compressor

import (
	"distcomm/internal/status"
)

// RunLength is a byte-oriented run-length codec: (byte, count) pairs with
// count encoded as a varint. It is the byte-buffer analogue of
// plugin/tfd.SimpleVSA — "a production-safe baseline transformer,
// stateless across calls, very low overhead" — generalized from
// dedup-merging SBatch records to run-length-collapsing byte streams,
// since spec §4.6 needs a codec operating on tensor byte ranges rather
// than accumulator batches.
type RunLength struct{}

func (RunLength) Compress(data []byte) ([]byte, *status.Status) {
	if len(data) == 0 {
		return nil, nil
	}
	out := make([]byte, 0, len(data)/2+2)
	i := 0
	for i < len(data) {
		b := data[i]
		run := 1
		for i+run < len(data) && data[i+run] == b && run < 1<<21-1 {
			run++
		}
		out = append(out, b)
		out = appendVarint(out, uint64(run))
		i += run
	}
	return out, nil
}

func (RunLength) Decompress(data []byte, originalLen int) ([]byte, *status.Status) {
	out := make([]byte, 0, originalLen)
	i := 0
	for i < len(data) {
		b := data[i]
		i++
		run, n, ok := readVarint(data[i:])
		if !ok {
			return nil, status.New(status.DataLoss, "truncated run-length stream")
		}
		i += n
		for r := uint64(0); r < run; r++ {
			out = append(out, b)
		}
	}
	if originalLen > 0 && len(out) != originalLen {
		return nil, status.New(status.DataLoss, "decompressed length mismatch")
	}
	return out, nil
}

func appendVarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

func readVarint(src []byte) (uint64, int, bool) {
	var v uint64
	var shift uint
	for i, b := range src {
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, i + 1, true
		}
		shift += 7
		if shift > 63 {
			return 0, 0, false
		}
	}
	return 0, 0, false
}
