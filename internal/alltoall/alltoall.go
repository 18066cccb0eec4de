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

// Package alltoall builds the request/response task graph for one
// ALLTOALL enqueue and owns the per-context frozen buffer-bound policy
// from spec §4.8.
package alltoall

import (
	"sync"

	"distcomm/internal/dispatch"
	"distcomm/internal/keycodec"
	"distcomm/internal/partition"
	"distcomm/internal/readytable"
	"distcomm/internal/status"
	"distcomm/internal/taskqueue"
)

// Bounds is the frozen per-peer buffer allotment computed by the first
// InitTensorAlltoall call on a context. It never shrinks or grows after
// that first call, per spec §4.8: "these bounds are frozen for the life
// of the context."
type Bounds struct {
	mu     sync.RWMutex
	frozen bool
	perPeer []int64
}

// Controller owns one Bounds per declared alltoall context, keyed by
// declared id, mirroring how plugin/tfd.VRouter keeps one VActor per key
// rather than a single shared actor.
type Controller struct {
	myRank       int
	buffFactor   float64
	buffBoundMin int64

	// groupTokens bounds how many P2PGroupCopyH2D response tasks this
	// rank runs concurrently, per spec §4.3's nccl/copy group size
	// resource budget. It is a buffered channel pre-filled with
	// copyGroupSize tokens rather than a plain counter so it can double
	// as a Task.ReadyEvent: a task admits once it receives a token
	// (acquire) and ReleaseGroupCopy returns one after the stage runs.
	groupTokens chan struct{}

	mu     sync.Mutex
	bounds map[int32]*Bounds
}

// NewController constructs a Controller for this rank.
func NewController(myRank int, buffFactor float64, buffBoundMin int64, copyGroupSize int) *Controller {
	if copyGroupSize <= 0 {
		copyGroupSize = 1
	}
	tokens := make(chan struct{}, copyGroupSize)
	for i := 0; i < copyGroupSize; i++ {
		tokens <- struct{}{}
	}
	return &Controller{
		myRank:       myRank,
		buffFactor:   buffFactor,
		buffBoundMin: buffBoundMin,
		groupTokens:  tokens,
		bounds:       make(map[int32]*Bounds),
	}
}

// ReleaseGroupCopy returns one copy-group token, called once a
// P2PGroupCopyH2D task that held one finishes running that stage.
func (c *Controller) ReleaseGroupCopy() {
	select {
	case c.groupTokens <- struct{}{}:
	default:
	}
}

// InitTensorAlltoall computes (on first call) or validates (on later
// calls) the per-peer buffer bound for declaredID: `bound_i =
// max(request_size_i, response_size_i) * buffFactor`, clamped to at least
// buffBoundMin. A later call whose sizes exceed the frozen bound fails
// with InvalidArgument rather than silently growing it.
func (c *Controller) InitTensorAlltoall(declaredID int32, requestSizes, responseSizes []int64) *status.Status {
	if len(requestSizes) != len(responseSizes) {
		return status.New(status.InvalidArgument, "request/response peer count mismatch")
	}

	c.mu.Lock()
	b, ok := c.bounds[declaredID]
	if !ok {
		b = &Bounds{}
		c.bounds[declaredID] = b
	}
	c.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.frozen {
		perPeer := make([]int64, len(requestSizes))
		for i := range perPeer {
			m := requestSizes[i]
			if responseSizes[i] > m {
				m = responseSizes[i]
			}
			bound := int64(float64(m) * c.buffFactor)
			if bound < c.buffBoundMin {
				bound = c.buffBoundMin
			}
			perPeer[i] = bound
		}
		b.perPeer = perPeer
		b.frozen = true
		return nil
	}

	for i := range requestSizes {
		if i >= len(b.perPeer) {
			return status.New(status.InvalidArgument, "peer count exceeds frozen bound table")
		}
		if requestSizes[i] > b.perPeer[i] || responseSizes[i] > b.perPeer[i] {
			return status.New(status.InvalidArgument, "alltoall size exceeds frozen per-peer bound")
		}
	}
	return nil
}

// BuildRequest constructs the single request task for one enqueue. Per
// spec §4.8, request_partnum is 0 or 1; callers only enqueue this task
// when plan.RequestPartnum == 1.
func (c *Controller) BuildRequest(declaredID int32, plan *partition.AlltoallPlan, mode dispatch.AlltoallMode, priority int, counter *partition.Counter, payload any) *taskqueue.Task {
	key := keycodec.EncodeAlltoall(declaredID, int32(c.myRank))
	return &taskqueue.Task{
		Key:       key,
		Priority:  priority,
		StageList: dispatch.BuildAlltoallRequest(mode),
		Counter:   counter,
		Payload:   payload,
	}
}

// BuildResponses constructs one response task per peer with a nonzero
// receive, per plan.NonzeroRecvs. The self-send/recv path (peer ==
// myRank) is short-circuited: its task runs a local memcpy and the
// corresponding ReadyTable is pre-incremented so the response stage is
// immediately eligible rather than waiting on a remote contribution that
// will never arrive — spec §4.8's "appropriate ready table's count is
// pre-incremented".
func (c *Controller) BuildResponses(declaredID int32, plan *partition.AlltoallPlan, mode dispatch.AlltoallMode, outputSizeUnknown bool, waitAck bool, priority int, counter *partition.Counter, table *readytable.ReadyTable, payloadFor func(peer int) any) []*taskqueue.Task {
	stages := dispatch.BuildAlltoallResponse(mode, outputSizeUnknown, waitAck)

	tasks := make([]*taskqueue.Task, 0, len(plan.NonzeroRecvs))
	for _, peer := range plan.NonzeroRecvs {
		key := keycodec.EncodeAlltoall(declaredID, int32(peer))
		t := &taskqueue.Task{
			Key:       key,
			Priority:  priority,
			StageList: append([]dispatch.Stage(nil), stages...),
			Counter:   counter,
			Payload:   payloadFor(peer),
		}
		if outputSizeUnknown {
			t.ReadyEvent = c.groupTokens
		}
		if peer == plan.SelfRank && table != nil {
			table.SetExpected(key, 1)
			table.AddReady(key)
		}
		tasks = append(tasks, t)
	}
	return tasks
}
