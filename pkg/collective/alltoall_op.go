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
	"distcomm/internal/dispatch"
	"distcomm/internal/partition"
	"distcomm/internal/status"
)

// AlltoallHandle is the OpHandle an Alltoall call returns, plus the
// per-peer receive buffers it filled in.
type AlltoallHandle struct {
	*OpHandle
	recv map[int]*opPayload
}

// Recv returns the bytes received from peer, valid once Wait/Poll
// reports completion.
func (h *AlltoallHandle) Recv(peer int) []byte {
	p, ok := h.recv[peer]
	if !ok {
		return nil
	}
	return p.buf
}

// Alltoall enqueues one ALLTOALL exchange under a context previously
// declared with Declare(name, Alltoall, ...). sendData[i] is this rank's
// contribution to peer i; recvSizes[i] is how many bytes this rank
// expects back from peer i. Per spec §4.8, the per-peer buffer bound is
// frozen on the first call and every later call is validated against it.
func (r *Runtime) Alltoall(name string, sendData [][]byte, recvSizes []int64, priority int) (*AlltoallHandle, *status.Status) {
	if r.opts.DisableAlltoall {
		return nil, status.New(status.Precondition, "alltoall is disabled by configuration")
	}
	c, st := r.registry.Lookup(name)
	if st != nil {
		return nil, st
	}
	if c.OpType != ctxreg.Alltoall {
		return nil, status.New(status.InvalidArgument, "context was not declared as Alltoall")
	}
	if len(sendData) != len(recvSizes) {
		return nil, status.New(status.InvalidArgument, "sendData/recvSizes peer count mismatch")
	}
	if st := c.EnsureInit(func(*ctxreg.Context) *status.Status { return nil }); st != nil {
		return nil, st
	}

	numPeers := len(sendData)
	sizes := partition.PeerSizes{
		SendBegin: make([]int64, numPeers+1),
		RecvBegin: make([]int64, numPeers+1),
	}
	requestSizes := make([]int64, numPeers)
	for i, d := range sendData {
		requestSizes[i] = int64(len(d))
		sizes.SendBegin[i+1] = sizes.SendBegin[i] + int64(len(d))
		sizes.RecvBegin[i+1] = sizes.RecvBegin[i] + recvSizes[i]
	}

	if st := r.alltoallCtl.InitTensorAlltoall(c.DeclaredID, requestSizes, recvSizes); st != nil {
		return nil, st
	}

	plan, st := partition.BuildAlltoall(r.rank, sizes, false)
	if st != nil {
		return nil, st
	}

	handle := newHandle()
	total := int64(plan.RequestPartnum + plan.ResponsePartnum)
	if total == 0 {
		handle.complete(nil)
		return &AlltoallHandle{OpHandle: handle, recv: map[int]*opPayload{}}, nil
	}
	var counter *partition.Counter
	counter = partition.NewCounter(total, func() { handle.complete(counter.Err()) })

	if plan.RequestPartnum == 1 {
		combined := make([]byte, 0, sizes.SendBegin[numPeers])
		for _, d := range sendData {
			combined = append(combined, d...)
		}
		reqTask := r.alltoallCtl.BuildRequest(c.DeclaredID, plan, dispatch.AlltoallSend, priority, counter, &opPayload{buf: combined, length: len(combined)})
		if err := r.enqueueHead(reqTask.StageList, reqTask); err != nil {
			return nil, err
		}
	}

	recvBufs := make(map[int]*opPayload, len(plan.NonzeroRecvs))
	payloadFor := func(peer int) any {
		p := &opPayload{length: int(recvSizes[peer])}
		recvBufs[peer] = p
		return p
	}
	respTasks := r.alltoallCtl.BuildResponses(c.DeclaredID, plan, dispatch.AlltoallSend, false, false, priority, counter, r.table, payloadFor)

	for i, peer := range plan.NonzeroRecvs {
		t := respTasks[i]
		if peer == plan.SelfRank {
			// Self-send short-circuit: no wire round trip, just the
			// local copy spec §4.8 describes.
			p := t.Payload.(*opPayload)
			p.buf = append([]byte(nil), sendData[peer]...)
			counter.Advance()
			continue
		}
		if err := r.enqueueHead(t.StageList, t); err != nil {
			return nil, err
		}
	}

	return &AlltoallHandle{OpHandle: handle, recv: recvBufs}, nil
}
