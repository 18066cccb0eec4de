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

// Package collab names the capability interfaces this core reaches
// through for everything spec.md places out of scope: the PS transport,
// the intra-node ring reducer, compression codecs, and PS-side error
// reporting. Concrete backends live in subpackages; tests substitute
// in-memory fakes, exactly as spec §9's design notes require.
package collab

import (
	"context"

	"distcomm/internal/status"
)

// PSClient is the parameter-server transport capability: push a byte
// range under a key and pull it back. Routing a key to a server index is
// not part of this interface; keycodec.Router does that.
// Implementations must be safe for concurrent use by multiple StageWorker
// goroutines, per spec §5 ("PS client are thread-safe collaborators by
// contract").
type PSClient interface {
	Push(ctx context.Context, key uint64, data []byte) *status.Status
	Pull(ctx context.Context, key uint64, len int) ([]byte, *status.Status)
}

// IntraNodeReducer is the GPU ring-reducer capability: an NCCL-equivalent
// collective scoped to one physical node.
type IntraNodeReducer interface {
	Reduce(ctx context.Context, key uint64, data []byte) *status.Status
	Broadcast(ctx context.Context, key uint64, len int) ([]byte, *status.Status)
}

// Compressor is the per-partition codec capability. A nil Compressor on a
// Context means no compression, per spec §3.
type Compressor interface {
	Compress(data []byte) ([]byte, *status.Status)
	Decompress(data []byte, originalLen int) ([]byte, *status.Status)
}

// ErrorHandler maps a PS-transport failure back to the pending callbacks
// keyed by it, per spec §4.11: "PS-side errors invoke the registered
// error handler, which maps keys back to pending callbacks."
type ErrorHandler interface {
	HandlePSError(key uint64, err *status.Status)
}
