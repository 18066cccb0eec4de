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
	"distcomm/internal/config"
	"distcomm/internal/ctxreg"
	"distcomm/internal/dispatch"
	"distcomm/internal/keycodec"
	"distcomm/internal/partition"
	"distcomm/internal/status"
	"distcomm/internal/taskqueue"
)

func (r *Runtime) isSignalRoot() bool {
	if len(r.opts.ReduceRoots) == 0 {
		return r.rank == 0
	}
	for _, root := range r.opts.ReduceRoots {
		if root == r.rank {
			return true
		}
	}
	return false
}

// gdrLevelForSize picks the GDR routing level for a tensor of dataLen
// bytes, per spec §6: GDR_PHASE1_TENSOR_THRESH/GDR_PHASE2_TENSOR_THRESH
// gate how much of the configured GDR level a tensor is big enough to
// earn — a tensor below phase 1 skips GDR entirely regardless of
// USE_GDR_ALLREDUCE, since the setup cost isn't worth it, and a tensor
// below phase 2 is capped at level 1 even if GDR_ALLREDUCE_LEVEL asks
// for 2. GDRPhase1TensorThresh <= GDRPhase2TensorThresh is the invariant
// config.FromEnv normalizes on load.
func gdrLevelForSize(o config.Options, dataLen int64) dispatch.GDRMode {
	if !o.UseGDRAllreduce || o.GDRAllreduceLevel == config.GDRLevelNone {
		return dispatch.GDRNone
	}
	if dataLen < o.GDRPhase1TensorThresh {
		return dispatch.GDRNone
	}
	if dataLen >= o.GDRPhase2TensorThresh && o.GDRAllreduceLevel == config.GDRLevelV2 {
		return dispatch.GDRLevel2
	}
	return dispatch.GDRLevel1
}

func (r *Runtime) pushPullFeatures(device dispatch.Device, compress bool, dataLen int64) dispatch.PushPullFeatures {
	return dispatch.PushPullFeatures{
		Device:       device,
		IsSignalRoot: r.isSignalRoot(),
		GDR:          gdrLevelForSize(r.opts, dataLen),
		CompressRoot: compress,
	}
}

// PushPull enqueues a PUSH_PULL operation over data under a context
// previously declared with Declare(name, PushPull, ...), per spec §4.6.
// data is split into PartitionBytes-sized partitions that share one
// completion Counter; the returned OpHandle completes once every
// partition's stage list has run to its end.
func (r *Runtime) PushPull(name string, data []byte, priority int, device dispatch.Device) (*OpHandle, *status.Status) {
	if r.opts.DisablePushPull {
		return nil, status.New(status.Precondition, "push_pull is disabled by configuration")
	}
	c, st := r.registry.Lookup(name)
	if st != nil {
		return nil, st
	}
	if c.OpType != ctxreg.PushPull {
		return nil, status.New(status.InvalidArgument, "context was not declared as PushPull")
	}

	if st := c.EnsureInit(func(*ctxreg.Context) *status.Status { return nil }); st != nil {
		return nil, st
	}

	handle := newHandle()
	var plan *partition.Plan
	plan, st = partition.Split(int64(len(data)), r.opts.PartitionBytes, 0, 0, func() {
		handle.complete(plan.Counter.Err())
	})
	if st != nil {
		return nil, st
	}

	compress := int64(len(data)) >= r.opts.MinCompressBytes && r.opts.MinCompressBytes > 0
	features := r.pushPullFeatures(device, compress, int64(len(data)))
	stages := dispatch.BuildPushPull(features)

	// Coordinate* stages only appear in the non-signal-root stage list
	// (dispatch.BuildPushPull); gate those tasks on the ready table so the
	// admission predicate in admissionFor has a real key to check, even
	// though nothing in this single-process Runtime calls AddReady for it
	// yet — see the doc comment on admissionFor.
	requiresGate := !features.IsSignalRoot && device != dispatch.DeviceCPU

	for i, rng := range plan.Ranges {
		key := keycodec.EncodePushPull(c.DeclaredID, i)
		t := &taskqueue.Task{
			Key:          key,
			Priority:     priority,
			Counter:      plan.Counter,
			RequiresGate: requiresGate,
			GateKey:      key,
			Payload: &opPayload{
				buf:    append([]byte(nil), data[rng.Offset:rng.Offset+rng.Len]...),
				length: int(rng.Len),
			},
		}
		if err := r.enqueueHead(append([]dispatch.Stage(nil), stages...), t); err != nil {
			return nil, err
		}
	}
	return handle, nil
}
