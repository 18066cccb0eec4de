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
	"distcomm/internal/ctxreg"
	"distcomm/internal/partition"
	"distcomm/internal/status"
)

// AllgatherHandle is the OpHandle an Allgather call returns, plus the
// per-peer-physical-node buffers this rank served in its response role.
type AllgatherHandle struct {
	*OpHandle
	served map[int32]*opPayload
}

// Served returns the bytes this rank sent to peerPhyNode while acting as
// local-root/signal-root, or nil if this rank had no response duty to
// that peer.
func (h *AllgatherHandle) Served(peerPhyNode int32) []byte {
	p, ok := h.served[peerPhyNode]
	if !ok {
		return nil
	}
	return p.buf
}

// Allgather enqueues one ALLGATHER exchange under a context previously
// declared with DeclareAllgather. Every rank contributes data; per spec
// §4.9, only the worker-local-root and signal-root roles carry response
// duties, so TotalPartitions (the Counter target) differs by role.
func (r *Runtime) Allgather(name string, data []byte, priority int) (*AllgatherHandle, *status.Status) {
	if r.opts.DisableAllgather {
		return nil, status.New(status.Precondition, "allgather is disabled by configuration")
	}
	c, st := r.registry.Lookup(name)
	if st != nil {
		return nil, st
	}
	if c.OpType != ctxreg.Allgather {
		return nil, status.New(status.InvalidArgument, "context was not declared as Allgather")
	}
	if st := c.EnsureInit(func(*ctxreg.Context) *status.Status { return nil }); st != nil {
		return nil, st
	}

	handle := newHandle()
	var counter *partition.Counter
	counter = partition.NewCounter(r.allgatherCtl.TotalPartitions(), func() { handle.complete(counter.Err()) })

	reqTask := r.allgatherCtl.BuildRequest(c.DeclaredID, priority, counter, &opPayload{buf: append([]byte(nil), data...), length: len(data)})
	if err := r.enqueueHead(reqTask.StageList, reqTask); err != nil {
		return nil, err
	}

	served := make(map[int32]*opPayload)
	payloadFor := func(peerPhyNode int32) any {
		p := &opPayload{buf: append([]byte(nil), data...), length: len(data)}
		served[peerPhyNode] = p
		return p
	}
	respTasks := r.allgatherCtl.BuildResponses(c.DeclaredID, priority, counter, payloadFor)
	for _, t := range respTasks {
		if err := r.enqueueHead(t.StageList, t); err != nil {
			return nil, err
		}
	}

	return &AllgatherHandle{OpHandle: handle, served: served}, nil
}
