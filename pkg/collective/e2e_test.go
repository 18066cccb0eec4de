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
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"distcomm/internal/collab/compressor"
	"distcomm/internal/collab/psclient"
	"distcomm/internal/collab/reducer"
	"distcomm/internal/config"
	"distcomm/internal/dispatch"
	"distcomm/internal/keycodec"
	"distcomm/internal/status"
)

func newTestRuntime(t *testing.T, opts config.Options, coll Collaborators) *Runtime {
	t.Helper()
	rt, st := New(opts, 0, coll)
	if st != nil {
		t.Fatalf("New: %v", st)
	}
	if st := rt.Init(); st != nil {
		t.Fatalf("Init: %v", st)
	}
	t.Cleanup(func() { rt.Shutdown() })
	return rt
}

// baseOpts builds Options by hand rather than through config.FromEnv, so
// these tests stay deterministic regardless of what BytePS-style
// environment variables happen to be set in the process running them.
func baseOpts() config.Options {
	return config.Options{
		NumWorker:             1,
		NumServer:             1,
		PartitionBytes:        1 << 20,
		AlltoallBuffBytes:     1 << 30,
		AlltoallMemFactor:     2.0,
		AlltoallCopyGroupSize: 4,
		MinCompressBytes:      0, // exercise the uncompressed Push/Pull path only
		KeyHashFn:             keycodec.HashBuiltIn,
		MixedModeBound:        101,
	}
}

func waitOK(t *testing.T, h *OpHandle) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if st := h.Wait(ctx); st != nil {
		t.Fatalf("Wait: %v", st)
	}
}

// TestPushPullCPUDeviceRootPathCompletes drives the CPU-device stage list
// (CPUCopy, CPUReduce, CPUBcast, CPUBcastFinish) end to end on a single
// rank, where rank 0 plays the signal root — spec's S1 scenario.
func TestPushPullCPUDeviceRootPathCompletes(t *testing.T) {
	coll := Collaborators{PS: psclient.NewMock(), Reducer: reducer.NewMock(), Compressor: compressor.RunLength{}}
	rt := newTestRuntime(t, baseOpts(), coll)

	if _, st := rt.Declare("gradient-a", PushPull, -1, -1); st != nil {
		t.Fatalf("Declare: %v", st)
	}

	data := encodeFloats(1.5, -2.5)
	handle, st := rt.PushPull("gradient-a", data, 0, dispatch.DeviceCPU)
	if st != nil {
		t.Fatalf("PushPull: %v", st)
	}
	waitOK(t, handle)
}

// TestPushPullDefaultDeviceRootPathCompletes drives the GPU/default stage
// list (Reduce, CopyD2H, Push, Pull, CopyH2D, Broadcast) with compression
// disabled — the Mock PSClient enforces an exact byte-length match on Pull,
// and compression would change the pushed length out from under the
// partition's fixed uncompressed p.length, so that combination is left
// uncovered here (see DESIGN.md).
func TestPushPullDefaultDeviceRootPathCompletes(t *testing.T) {
	coll := Collaborators{PS: psclient.NewMock(), Reducer: reducer.NewMock(), Compressor: compressor.RunLength{}}
	rt := newTestRuntime(t, baseOpts(), coll)

	if _, st := rt.Declare("gradient-b", PushPull, -1, -1); st != nil {
		t.Fatalf("Declare: %v", st)
	}

	data := encodeFloats(3, 4, 5)
	handle, st := rt.PushPull("gradient-b", data, 0, dispatch.DeviceGPU)
	if st != nil {
		t.Fatalf("PushPull: %v", st)
	}
	waitOK(t, handle)
}

// TestPushPullRejectsWrongOpType is the type-safety edge case spec §4.4
// calls out: a context declared under one op family cannot be driven
// through another's callable.
func TestPushPullRejectsWrongOpType(t *testing.T) {
	coll := Collaborators{PS: psclient.NewMock(), Reducer: reducer.NewMock(), Compressor: compressor.RunLength{}}
	rt := newTestRuntime(t, baseOpts(), coll)

	if _, st := rt.DeclareP2P("not-a-pushpull", 0, 0); st != nil {
		t.Fatalf("DeclareP2P: %v", st)
	}
	if _, st := rt.PushPull("not-a-pushpull", []byte("x"), 0, dispatch.DeviceGPU); st == nil {
		t.Fatal("expected an error calling PushPull on a P2P context")
	}
}

// TestSendRecvRoundTrip exercises point-to-point transfer where the sender
// and receiver are the same rank, using Send's completion to guarantee the
// Push has landed before Recv's Pull runs — real deployments have those
// stages on different processes with their own ordering guarantees, but a
// single-process Mock PSClient errors immediately on a missing key rather
// than blocking, so this test sequences the two Waits itself instead of
// racing two independent worker pipelines.
func TestSendRecvRoundTrip(t *testing.T) {
	coll := Collaborators{PS: psclient.NewMock(), Reducer: reducer.NewMock(), Compressor: compressor.RunLength{}}
	rt := newTestRuntime(t, baseOpts(), coll)

	if _, st := rt.DeclareP2P("ping", 0, 0); st != nil {
		t.Fatalf("DeclareP2P: %v", st)
	}

	data := []byte("hello from rank 0")
	sendHandle, st := rt.Send("ping", data, 0)
	if st != nil {
		t.Fatalf("Send: %v", st)
	}
	waitOK(t, sendHandle)

	recvHandle, st := rt.Recv("ping", 0, len(data), 0)
	if st != nil {
		t.Fatalf("Recv: %v", st)
	}
	waitOK(t, recvHandle.OpHandle)
	if !bytes.Equal(recvHandle.Result(), data) {
		t.Fatalf("Result() = %q, want %q", recvHandle.Result(), data)
	}
}

// TestAlltoallSelfSendShortCircuits drives a single-peer alltoall where
// that one peer is the caller's own rank — spec's S4 self-send scenario.
// BuildResponses pre-signals the ready table for this peer and
// pkg/collective bypasses the queue entirely, so it must complete without
// any stage worker ever touching the PSClient for the response half.
func TestAlltoallSelfSendShortCircuits(t *testing.T) {
	coll := Collaborators{PS: psclient.NewMock(), Reducer: reducer.NewMock(), Compressor: compressor.RunLength{}}
	rt := newTestRuntime(t, baseOpts(), coll)

	if _, st := rt.Declare("exchange", Alltoall, -1, -1); st != nil {
		t.Fatalf("Declare: %v", st)
	}

	data := []byte("only peer is myself")
	handle, st := rt.Alltoall("exchange", [][]byte{data}, []int64{int64(len(data))}, 0)
	if st != nil {
		t.Fatalf("Alltoall: %v", st)
	}
	waitOK(t, handle.OpHandle)
	if got := handle.Recv(0); !bytes.Equal(got, data) {
		t.Fatalf("Recv(0) = %q, want %q", got, data)
	}
}

// TestAlltoallFreezesBoundAcrossCalls exercises the per-peer buffer bound
// spec §4.8 requires: the first call establishes it, and a later call for
// the same context that exceeds it is rejected rather than silently
// resized.
func TestAlltoallFreezesBoundAcrossCalls(t *testing.T) {
	coll := Collaborators{PS: psclient.NewMock(), Reducer: reducer.NewMock(), Compressor: compressor.RunLength{}}
	opts := baseOpts()
	opts.AlltoallBuffBytes = 16 // small minimum so the frozen bound is easy to exceed below
	opts.AlltoallMemFactor = 2.0
	rt := newTestRuntime(t, opts, coll)

	if _, st := rt.Declare("exchange-bound", Alltoall, -1, -1); st != nil {
		t.Fatalf("Declare: %v", st)
	}

	small := []byte("abcd")
	handle, st := rt.Alltoall("exchange-bound", [][]byte{small}, []int64{int64(len(small))}, 0)
	if st != nil {
		t.Fatalf("Alltoall (first call): %v", st)
	}
	waitOK(t, handle.OpHandle)

	huge := make([]byte, 1<<20)
	if _, st := rt.Alltoall("exchange-bound", [][]byte{huge}, []int64{int64(len(huge))}, 0); st == nil {
		t.Fatal("expected the frozen per-peer bound to reject a much larger later call")
	}
}

// TestAllgatherSignalRootSelfPublishCompletes covers the degenerate
// single-physical-node allgather: with numPhyNodes == 1, rank 0 is both
// signal root and its own only member, so BuildResponses produces no peer
// tasks and the request pipeline's own Allgather stage must publish this
// rank's contribution to its own key before AllgatherPullWorkerLocalRoot/
// AllgatherPull read it back.
func TestAllgatherSignalRootSelfPublishCompletes(t *testing.T) {
	coll := Collaborators{PS: psclient.NewMock(), Reducer: reducer.NewMock(), Compressor: compressor.RunLength{}}
	rt := newTestRuntime(t, baseOpts(), coll)

	declaredID, st := rt.DeclareAllgather("shard-a", -1)
	if st != nil {
		t.Fatalf("DeclareAllgather: %v", st)
	}

	data := []byte("this rank's shard")
	handle, st := rt.Allgather("shard-a", data, 0)
	if st != nil {
		t.Fatalf("Allgather: %v", st)
	}
	waitOK(t, handle.OpHandle)

	// A single-node cluster has no peers to serve, so Served reports nothing.
	if got := handle.Served(1); got != nil {
		t.Fatalf("Served(1) = %q, want nil in a single-node cluster", got)
	}

	key := keycodec.EncodeAllgather(0, declaredID)
	pushed, pst := coll.PS.Pull(context.Background(), key, len(data))
	if pst != nil {
		t.Fatalf("expected the signal root's own key to hold its published contribution: %v", pst)
	}
	if !bytes.Equal(pushed, data) {
		t.Fatalf("published contribution = %q, want %q", pushed, data)
	}
}

// TestSuspendResumeRestartsWorkers exercises the Suspend/Resume half of
// spec §4.10's lifecycle: after Suspend, background workers are stopped,
// and Resume must bring the runtime back to Running before any further
// operation is issued.
func TestSuspendResumeRestartsWorkers(t *testing.T) {
	coll := Collaborators{PS: psclient.NewMock(), Reducer: reducer.NewMock(), Compressor: compressor.RunLength{}}
	rt := newTestRuntime(t, baseOpts(), coll)

	if _, st := rt.Declare("gradient-c", PushPull, -1, -1); st != nil {
		t.Fatalf("Declare: %v", st)
	}
	if st := rt.Suspend(); st != nil {
		t.Fatalf("Suspend: %v", st)
	}
	if rt.IsInitialized() {
		t.Fatal("IsInitialized should be false after Suspend")
	}
	if st := rt.Resume(); st != nil {
		t.Fatalf("Resume: %v", st)
	}
	if !rt.IsInitialized() {
		t.Fatal("IsInitialized should be true after Resume")
	}

	data := encodeFloats(9)
	handle, st := rt.PushPull("gradient-c", data, 0, dispatch.DeviceGPU)
	if st != nil {
		t.Fatalf("PushPull after Resume: %v", st)
	}
	waitOK(t, handle)
}

// TestShutdownIsIdempotentlyRejectedTwice matches spec §4.10's Uninit
// transition: a second Shutdown without an intervening Init reports an
// error rather than silently succeeding.
func TestShutdownIsIdempotentlyRejectedTwice(t *testing.T) {
	coll := Collaborators{PS: psclient.NewMock(), Reducer: reducer.NewMock(), Compressor: compressor.RunLength{}}
	rt, st := New(baseOpts(), 0, coll)
	if st != nil {
		t.Fatalf("New: %v", st)
	}
	if st := rt.Init(); st != nil {
		t.Fatalf("Init: %v", st)
	}
	if st := rt.Shutdown(); st != nil {
		t.Fatalf("Shutdown: %v", st)
	}
	if st := rt.Shutdown(); st == nil {
		t.Fatal("expected an error calling Shutdown twice without an intervening Init")
	}
}

// TestStageErrorResolvesOpHandleWithRealStatus covers the maintainer
// review fix to handleStageError: a stage failure must fail the task's
// Counter with the actual Status rather than leave the OpHandle to hang
// until the caller's own Wait context times out and reports a generic
// Aborted.
func TestStageErrorResolvesOpHandleWithRealStatus(t *testing.T) {
	coll := Collaborators{PS: psclient.NewMock(), Reducer: reducer.NewMock(), Compressor: compressor.RunLength{}}
	rt := newTestRuntime(t, baseOpts(), coll)

	if _, st := rt.DeclareP2P("never-sent", 0, 0); st != nil {
		t.Fatalf("DeclareP2P: %v", st)
	}

	recvHandle, st := rt.Recv("never-sent", 0, 4, 0)
	if st != nil {
		t.Fatalf("Recv: %v", st)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	werr := recvHandle.OpHandle.Wait(ctx)
	if werr == nil {
		t.Fatal("expected Wait to report the Pull failure on a key that was never pushed")
	}
	if werr.Kind != status.DataLoss {
		t.Fatalf("Wait returned %v, want the Mock PSClient's real DataLoss status, not a generic timeout Aborted", werr.Kind)
	}
}

func encodeFloats(vs ...float32) []byte {
	out := make([]byte, 0, len(vs)*4)
	for _, v := range vs {
		bits := math.Float32bits(v)
		out = append(out, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}
	return out
}
