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

// Package taskqueue implements the ScheduledQueue/StageWorker fabric:
// one priority-ordered queue per named stage, with admission predicates,
// and a long-running worker draining each queue and advancing tasks
// through their stage_list. Grounded on the teacher's plugin/tfd.SService
// run loop (single-goroutine select over ingest/ticker/stop) and
// internal/ratelimiter/core.Worker's WaitGroup-plus-atomic-stop-flag
// shutdown shape.
package taskqueue

import (
	"distcomm/internal/dispatch"
	"distcomm/internal/partition"
	"distcomm/internal/status"
)

// Task is one partition's pipeline traversal state — spec §3's
// TensorTableEntry, trimmed to what the queue fabric itself needs to
// route and admit; buffer handles and compressors live on the Context and
// are threaded through StageFn instead.
type Task struct {
	Key      uint64
	Priority int
	seq      uint64 // FIFO tiebreak, assigned by the queue on AddTask

	StageList []dispatch.Stage // consumed front-to-back
	Counter   *partition.Counter

	// ReadyEvent, when non-nil, must be closed or sent to before this task
	// is admissible at any stage — a task-local resource-budget gate
	// (alltoall buffer bytes, nccl/copy group size) distinct from the
	// ready-table barrier below. nil means ready now.
	ReadyEvent <-chan struct{}

	// RequiresGate/GateKey name a ReadyTable barrier that must also pass
	// before a Coordinate* stage admits this task (see pkg/collective's
	// admissionFor). Construction sites that build non-signal-root
	// PushPull/Allgather tasks set these; see admissionFor's doc comment
	// for the transport this single-process Runtime would still need
	// before any AddReady call makes the gate resolve.
	RequiresGate bool
	GateKey      uint64

	Offset int64
	Len    int64

	// Payload is opaque to the queue fabric; StageFn implementations type-assert it.
	Payload any
}

// HeadStage returns the current stage this task is waiting to run, or
// false if its stage_list is empty (terminal).
func (t *Task) HeadStage() (dispatch.Stage, bool) {
	if len(t.StageList) == 0 {
		return 0, false
	}
	return t.StageList[0], true
}

// Advance drops the head stage. When the resulting list is empty the
// caller must bump t.Counter — that decision lives in the StageWorker,
// not here, since only the worker knows whether this was the task's last
// partition-local step.
func (t *Task) Advance() {
	if len(t.StageList) > 0 {
		t.StageList = t.StageList[1:]
	}
}

// StageFn is the external collaborator invocation for one stage: memcpy
// D2H, PS push, PS pull, an NCCL-equivalent collective, etc. It returns a
// Status; a non-nil Status aborts this task's traversal without touching
// its siblings, per spec §4.11 ("partial progress is not rolled back").
type StageFn func(*Task) *status.Status
