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
	"context"
	"log"
	"sync"
	"sync/atomic"

	"distcomm/internal/dispatch"
	"distcomm/internal/status"
)

// NextQueue routes a task to the queue for its next stage after Advance;
// the Dispatcher decides which stage that is at build time, so this is a
// simple lookup, not a policy decision.
type NextQueue func(stage dispatch.Stage) *ScheduledQueue

// StageWorker is one long-running worker for a single named stage — spec
// §4.7. It owns a loop: dequeue, invoke the stage's collaborator call,
// then either hand off to the next queue or bump the completion counter.
// The Start/Stop shape (WaitGroup plus atomic stop guard) is grounded on
// internal/ratelimiter/core.Worker.Start/Stop.
type StageWorker struct {
	Stage      dispatch.Stage
	Queue      *ScheduledQueue
	Invoke     StageFn
	Next       NextQueue
	ErrHandler func(*Task, *status.Status)

	cancel  context.CancelFunc
	ctx     context.Context
	wg      sync.WaitGroup
	stopped uint32
}

// NewStageWorker constructs a worker for one stage.
func NewStageWorker(stage dispatch.Stage, queue *ScheduledQueue, invoke StageFn, next NextQueue) *StageWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &StageWorker{
		Stage:  stage,
		Queue:  queue,
		Invoke: invoke,
		Next:   next,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker's loop goroutine.
func (w *StageWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()
}

// Stop breaks the worker's blocking dequeue and waits for it to exit —
// the should_shutdown / joined_threads mechanism from spec §4.7 collapsed
// to one context cancellation per worker plus a WaitGroup join.
func (w *StageWorker) Stop() {
	if !atomic.CompareAndSwapUint32(&w.stopped, 0, 1) {
		return
	}
	w.cancel()
	w.Queue.Close()
	w.wg.Wait()
}

func (w *StageWorker) run() {
	for {
		task, ok := w.Queue.GetTask(w.ctx)
		if !ok {
			return
		}
		w.processOne(task)
	}
}

func (w *StageWorker) processOne(task *Task) {
	st := w.Invoke(task)
	if st != nil {
		if w.ErrHandler != nil {
			w.ErrHandler(task, st)
		} else {
			log.Printf("stage %s: task key=%d failed: %v", w.Stage, task.Key, st)
		}
		return
	}

	task.Advance()
	next, hasNext := task.HeadStage()
	if !hasNext {
		if task.Counter != nil {
			task.Counter.Advance()
		}
		return
	}
	if w.Next == nil {
		log.Printf("stage %s: no next-queue router configured, dropping task key=%d bound for %s", w.Stage, task.Key, next)
		return
	}
	nextQueue := w.Next(next)
	if nextQueue == nil {
		log.Printf("stage %s: no queue registered for stage %s, dropping task key=%d", w.Stage, next, task.Key)
		return
	}
	nextQueue.AddTask(task)
}
