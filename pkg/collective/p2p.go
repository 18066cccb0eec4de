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
	"distcomm/internal/keycodec"
	"distcomm/internal/partition"
	"distcomm/internal/status"
	"distcomm/internal/taskqueue"
)

// RecvHandle is an OpHandle that also carries the byte buffer Recv
// filled in once it completes.
type RecvHandle struct {
	*OpHandle
	payload *opPayload
}

// Result returns the received bytes. Calling it before Wait/Poll reports
// completion may observe a stale or empty buffer.
func (h *RecvHandle) Result() []byte {
	return h.payload.buf
}

// Send enqueues a one-shot point-to-point transfer under a context
// previously declared with DeclareP2P(name, myRank, receiver).
func (r *Runtime) Send(name string, data []byte, priority int) (*OpHandle, *status.Status) {
	c, st := r.registry.Lookup(name)
	if st != nil {
		return nil, st
	}
	if c.OpType != ctxreg.P2P {
		return nil, status.New(status.InvalidArgument, "context was not declared as P2P")
	}
	if st := c.EnsureInit(func(*ctxreg.Context) *status.Status { return nil }); st != nil {
		return nil, st
	}

	handle := newHandle()
	var counter *partition.Counter
	counter = partition.NewCounter(1, func() { handle.complete(counter.Err()) })
	key := keycodec.EncodeP2P(int32(r.rank), c.DeclaredID, 0)
	t := &taskqueue.Task{
		Key:       key,
		Priority:  priority,
		Counter:   counter,
		StageList: []dispatch.Stage{dispatch.Send},
		Payload:   &opPayload{buf: append([]byte(nil), data...), length: len(data)},
	}
	if err := r.enqueueHead(t.StageList, t); err != nil {
		return nil, err
	}
	return handle, nil
}

// Recv enqueues a one-shot point-to-point read of length bytes under a
// context previously declared with DeclareP2P(name, sender, myRank). The
// returned RecvHandle's Result becomes valid once Wait/Poll reports
// completion.
func (r *Runtime) Recv(name string, sender int32, length int, priority int) (*RecvHandle, *status.Status) {
	c, st := r.registry.Lookup(name)
	if st != nil {
		return nil, st
	}
	if c.OpType != ctxreg.P2P {
		return nil, status.New(status.InvalidArgument, "context was not declared as P2P")
	}
	if st := c.EnsureInit(func(*ctxreg.Context) *status.Status { return nil }); st != nil {
		return nil, st
	}

	handle := newHandle()
	var counter *partition.Counter
	counter = partition.NewCounter(1, func() { handle.complete(counter.Err()) })
	key := keycodec.EncodeP2P(sender, c.DeclaredID, 0)
	payload := &opPayload{length: length}
	t := &taskqueue.Task{
		Key:       key,
		Priority:  priority,
		Counter:   counter,
		StageList: []dispatch.Stage{dispatch.Recv},
		Payload:   payload,
	}
	if err := r.enqueueHead(t.StageList, t); err != nil {
		return nil, err
	}
	return &RecvHandle{OpHandle: handle, payload: payload}, nil
}
