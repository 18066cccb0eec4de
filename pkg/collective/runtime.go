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

// Package collective is the public callable surface of the
// communication core: Init/Shutdown/Suspend/Resume, Declare/DeclareP2P/
// DeclareAllgather, and the collective operations (PushPull, Send,
// Recv, Alltoall, Allgather) plus Poll/Wait on the handles they return.
// It wires internal/ctxreg, internal/keycodec, internal/partition,
// internal/dispatch, internal/taskqueue, internal/alltoall,
// internal/allgather, internal/readytable, internal/collab,
// internal/config, internal/telemetry and internal/lifecycle together
// into one per-rank Runtime.
package collective

import (
	"fmt"
	"sync"

	"distcomm/internal/alltoall"
	"distcomm/internal/allgather"
	"distcomm/internal/collab"
	"distcomm/internal/config"
	"distcomm/internal/ctxreg"
	"distcomm/internal/dispatch"
	"distcomm/internal/keycodec"
	"distcomm/internal/lifecycle"
	"distcomm/internal/readytable"
	"distcomm/internal/status"
	"distcomm/internal/taskqueue"
	"distcomm/internal/telemetry"
	"distcomm/internal/telemetry/trace"
)

// Collaborators bundles the external, swappable backends a Runtime reaches
// through. All three are required: New rejects a nil field with
// InvalidArgument.
type Collaborators struct {
	PS         collab.PSClient
	Reducer    collab.IntraNodeReducer
	Compressor collab.Compressor
}

// Runtime is one rank's communication core instance. Exactly one should
// exist per process, matching spec §4.10's single-instance global
// lifecycle (the original is a per-process global; here it is a value the
// caller owns instead of package-level state, so tests can run several
// ranks in one process).
type Runtime struct {
	opts  config.Options
	rank  int
	coll  Collaborators
	life  *lifecycle.Lifecycle

	registry *ctxreg.Registry
	router   *keycodec.Router
	table    *readytable.ReadyTable

	alltoallCtl  *alltoall.Controller
	allgatherCtl *allgather.Controller

	mu       sync.Mutex
	queues   map[dispatch.Stage]*taskqueue.ScheduledQueue
	workers  []*taskqueue.StageWorker
	traceSink *trace.Sink
}

// New constructs a Runtime for myRank. It does not start any background
// workers — call Init for that, matching spec §4.10's declared-then-
// initialized phase split.
func New(opts config.Options, myRank int, coll Collaborators) (*Runtime, *status.Status) {
	if coll.PS == nil || coll.Reducer == nil || coll.Compressor == nil {
		return nil, status.New(status.InvalidArgument, "PS, Reducer, and Compressor collaborators are all required")
	}
	router, st := keycodec.NewRouter(opts.KeyHashFn, keycodec.RouterOptions{
		MixedModeBound: opts.MixedModeBound,
	})
	if st != nil {
		return nil, st
	}

	registry := ctxreg.New()
	r := &Runtime{
		opts:        opts,
		rank:        myRank,
		coll:        coll,
		registry:    registry,
		router:      router,
		table:       readytable.New(),
		alltoallCtl: alltoall.NewController(myRank, opts.AlltoallMemFactor, opts.AlltoallBuffBytes, opts.AlltoallCopyGroupSize),
		queues:      make(map[dispatch.Stage]*taskqueue.ScheduledQueue),
	}
	// Single flat physical topology: rank 0 plays both the worker-local-root
	// and signal-root role (spec §4.9 collapses to one level when there is
	// only one physical node per rank), every other rank is a non-root.
	numPhyNodes := opts.NumWorker
	if numPhyNodes <= 0 {
		numPhyNodes = 1
	}
	role := dispatch.AllgatherNonRoot
	if myRank == 0 {
		role = dispatch.AllgatherSignalRoot
	}
	r.allgatherCtl = allgather.NewController(int32(myRank), numPhyNodes, role, false)
	r.life = lifecycle.New(registry)
	return r, nil
}

// Init builds the stage queue/worker graph and starts it, transitioning
// the Runtime from Uninit to Running per spec §4.10.
func (r *Runtime) Init() *status.Status {
	telemetry.Enable(telemetry.Config{Enabled: false})

	if r.opts.TraceOn && r.opts.TraceDir != "" {
		sink, err := trace.Open(r.opts.TraceDir, r.rank)
		if err != nil {
			return status.Wrap(status.Unknown, "opening trace sink", err)
		}
		r.traceSink = sink
	}

	r.mu.Lock()
	r.queues = r.buildQueues()
	workers := r.buildWorkers(r.queues)
	r.workers = workers
	r.mu.Unlock()

	lifecycleWorkers := make([]lifecycle.Worker, len(workers))
	for i, w := range workers {
		lifecycleWorkers[i] = w
	}
	return r.life.Init(lifecycleWorkers)
}

// Shutdown joins every stage worker and returns the Runtime to Uninit.
func (r *Runtime) Shutdown() *status.Status {
	st := r.life.Shutdown()
	if r.traceSink != nil {
		_ = r.traceSink.Close()
		r.traceSink = nil
	}
	return st
}

// Suspend stops background workers while keeping declared contexts, so a
// later Resume can pick up where it left off.
func (r *Runtime) Suspend() *status.Status {
	return r.life.Suspend()
}

// Resume replays every declaration recorded before Suspend (forcing
// PUSH_PULL, per the carried RedeclareAll quirk) and restarts the worker
// graph.
func (r *Runtime) Resume() *status.Status {
	r.mu.Lock()
	r.queues = r.buildQueues()
	workers := r.buildWorkers(r.queues)
	r.workers = workers
	r.mu.Unlock()

	lifecycleWorkers := make([]lifecycle.Worker, len(workers))
	for i, w := range workers {
		lifecycleWorkers[i] = w
	}
	return r.life.Resume(lifecycleWorkers)
}

// IsInitialized reports whether the Runtime is currently Inited or
// Running.
func (r *Runtime) IsInitialized() bool {
	return r.life.IsInitialized()
}

func (r *Runtime) queueFor(stage dispatch.Stage) *taskqueue.ScheduledQueue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queues[stage]
}

func (r *Runtime) enqueueHead(stages []dispatch.Stage, t *taskqueue.Task) *status.Status {
	if len(stages) == 0 {
		return status.New(status.InvalidArgument, "empty stage list")
	}
	t.StageList = stages
	q := r.queueFor(stages[0])
	if q == nil {
		return status.New(status.Unknown, fmt.Sprintf("no queue registered for stage %s", stages[0]))
	}
	q.AddTask(t)
	return nil
}
