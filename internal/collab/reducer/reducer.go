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

// Package reducer provides a demo/test-grade collab.IntraNodeReducer: the
// real NCCL-equivalent ring reducer is out of scope per the Non-goals, so
// this in-memory stand-in sums float32 buffers contributed under one key
// and serves the running total back on Broadcast, enough to exercise the
// Reduce/Broadcast stage slots end to end in tests.
package reducer

import (
	"context"
	"encoding/binary"
	"math"
	"sync"

	"distcomm/internal/status"
)

// Mock accumulates float32 contributions per key.
type Mock struct {
	mu    sync.Mutex
	sums  map[uint64][]float32
	seen  map[uint64]int
}

// NewMock constructs an empty in-memory reducer.
func NewMock() *Mock {
	return &Mock{sums: make(map[uint64][]float32), seen: make(map[uint64]int)}
}

func decodeFloat32s(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func encodeFloat32s(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func (m *Mock) Reduce(ctx context.Context, key uint64, data []byte) *status.Status {
	vals := decodeFloat32s(data)
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sums[key]
	if !ok || len(cur) != len(vals) {
		cur = make([]float32, len(vals))
	}
	for i, v := range vals {
		cur[i] += v
	}
	m.sums[key] = cur
	m.seen[key]++
	return nil
}

func (m *Mock) Broadcast(ctx context.Context, key uint64, length int) ([]byte, *status.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.sums[key]
	if !ok {
		return nil, status.New(status.DataLoss, "no reduced value for key")
	}
	out := encodeFloat32s(v)
	if length > 0 && len(out) != length {
		return nil, status.New(status.DataLoss, "broadcast length mismatch")
	}
	return out, nil
}
