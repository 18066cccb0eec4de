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

package taskqueue

import (
	"container/heap"
	"context"
	"sync"
)

// AdmissionFunc gates whether a task at the head of the queue may be
// dequeued right now: ready-table barrier satisfied, and any per-stage
// resource budget (alltoall buffer bytes, nccl group size, copy group
// size) still admits it. The task's own ReadyEvent is checked separately
// by GetTask, whatever the AdmissionFunc says. Returning false
// leaves the task at the head; GetTask will re-check on the next signal.
type AdmissionFunc func(*Task) bool

type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority // higher priority first
	}
	return h[i].seq < h[j].seq // FIFO tiebreak
}
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)        { *h = append(*h, x.(*Task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// ScheduledQueue is one priority-ordered task queue for a single named
// stage. AddTask/GetTask mirror spec §4.3 exactly; the mutex+condvar
// shape is the teacher's Store fast-path pattern turned inside out (here
// the lock protects a heap instead of a sync.Map bucket, since ordering,
// not key lookup, is the point).
type ScheduledQueue struct {
	mu        sync.Mutex
	notEmpty  *sync.Cond
	heap      taskHeap
	seq       uint64
	admit     AdmissionFunc
	closed    bool
}

// NewScheduledQueue constructs a queue for one stage. admit may be nil,
// meaning every head-of-queue task is immediately eligible.
func NewScheduledQueue(admit AdmissionFunc) *ScheduledQueue {
	q := &ScheduledQueue{admit: admit}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// AddTask submits a task for scheduling.
func (q *ScheduledQueue) AddTask(t *Task) {
	q.mu.Lock()
	t.seq = q.seq
	q.seq++
	heap.Push(&q.heap, t)
	q.mu.Unlock()
	q.notEmpty.Signal()
}

// GetTask blocks until a task is available and admissible, or ctx is
// canceled — the Go analogue of spec §4.7's "blocking with cancellation"
// dequeue driven by the global should_shutdown flag.
func (q *ScheduledQueue) GetTask(ctx context.Context) (*Task, bool) {
	done := make(chan struct{})
	stopWaiting := context.AfterFunc(ctx, func() {
		close(done)
		q.notEmpty.Broadcast()
	})
	defer stopWaiting()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case <-done:
			return nil, false
		default:
		}
		if q.closed {
			return nil, false
		}
		if len(q.heap) > 0 {
			head := q.heap[0]
			if admissible(head) && (q.admit == nil || q.admit(head)) {
				heap.Pop(&q.heap)
				return head, true
			}
		}
		q.notEmpty.Wait()
	}
}

// admissible checks the task-local ReadyEvent gate that every stage
// respects regardless of the per-stage AdmissionFunc: a task with a
// non-nil ReadyEvent is ineligible until that channel is closed or sent
// to.
func admissible(t *Task) bool {
	if t.ReadyEvent == nil {
		return true
	}
	select {
	case <-t.ReadyEvent:
		return true
	default:
		return false
	}
}

// Wake re-checks admissibility for the task at the head of the queue.
// Callers with a side channel that can flip a task's admission state
// without adding or removing a task — a ReadyTable signaling readiness,
// a resource budget freeing up — call this instead of waiting for the
// next AddTask to happen to nudge GetTask out of its wait.
func (q *ScheduledQueue) Wake() {
	q.notEmpty.Broadcast()
}

// Close wakes every blocked GetTask so workers can observe shutdown even
// without a per-call context cancellation.
func (q *ScheduledQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}

// Len reports the number of tasks currently queued, for telemetry.
func (q *ScheduledQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}
