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

package psclient

import (
	"context"
	"sync"

	"distcomm/internal/status"
)

// Mock is an in-process PSClient backed by a plain map, the collab
// analogue of core.NewMockPersister — the default adapter for tests and
// the demo binary when no external store is configured.
type Mock struct {
	mu   sync.RWMutex
	data map[uint64][]byte
}

// NewMock constructs an empty in-memory PSClient.
func NewMock() *Mock {
	return &Mock{data: make(map[uint64][]byte)}
}

func (m *Mock) Push(ctx context.Context, key uint64, data []byte) *status.Status {
	select {
	case <-ctx.Done():
		return status.Wrap(status.Aborted, "push canceled", ctx.Err())
	default:
	}
	cp := append([]byte(nil), data...)
	m.mu.Lock()
	m.data[key] = cp
	m.mu.Unlock()
	return nil
}

func (m *Mock) Pull(ctx context.Context, key uint64, length int) ([]byte, *status.Status) {
	select {
	case <-ctx.Done():
		return nil, status.Wrap(status.Aborted, "pull canceled", ctx.Err())
	default:
	}
	m.mu.RLock()
	v, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, status.New(status.DataLoss, "no data pushed for key")
	}
	if length > 0 && len(v) != length {
		return nil, status.New(status.DataLoss, "pulled length mismatch")
	}
	return append([]byte(nil), v...), nil
}
