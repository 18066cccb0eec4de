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

package collective

import (
	"context"
	"sync"

	"distcomm/internal/status"
)

// OpHandle is the future every collective operation returns: Poll for a
// non-blocking check, Wait to block until every partition's Counter has
// fired, matching spec §6's Poll/Wait callable pair.
type OpHandle struct {
	mu   sync.Mutex
	done chan struct{}
	err  *status.Status
}

func newHandle() *OpHandle {
	return &OpHandle{done: make(chan struct{})}
}

// complete is the partition Counter's callback: it fires exactly once
// per spec §8 property 3, so recording err and closing done here races
// with nothing.
func (h *OpHandle) complete(st *status.Status) {
	h.mu.Lock()
	h.err = st
	h.mu.Unlock()
	close(h.done)
}

// Poll reports whether every partition of this operation has finished
// without blocking.
func (h *OpHandle) Poll() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait blocks until every partition finishes or ctx is canceled,
// returning the first non-nil Status any partition's stage reported.
func (h *OpHandle) Wait(ctx context.Context) *status.Status {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.err
	case <-ctx.Done():
		return status.New(status.Aborted, "wait canceled before operation completed")
	}
}
