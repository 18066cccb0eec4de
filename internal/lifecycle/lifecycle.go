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

// Package lifecycle drives the global Init/Shutdown/Suspend/Resume state
// machine from spec §4.10: Uninit -> Inited -> Running -> ShuttingDown ->
// Uninit, with resume re-entering via a registry replay. Grounded on
// internal/ratelimiter/core.Worker's Start/Stop (WaitGroup join plus
// atomic CAS stop guard) generalized from two background loops to an
// arbitrary registered set of StageWorkers.
package lifecycle

import (
	"sync"

	"distcomm/internal/ctxreg"
	"distcomm/internal/status"
)

// State is one point in the global lifecycle state machine.
type State int

const (
	Uninit State = iota
	Inited
	Running
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Uninit:
		return "Uninit"
	case Inited:
		return "Inited"
	case Running:
		return "Running"
	case ShuttingDown:
		return "ShuttingDown"
	default:
		return "Unknown"
	}
}

// Worker is anything with Start/Stop semantics the Lifecycle joins on
// shutdown — taskqueue.StageWorker satisfies this without lifecycle
// importing taskqueue directly, keeping the dependency edge one-way.
type Worker interface {
	Start()
	Stop()
}

// Lifecycle owns the global state transition and the set of background
// workers started at Init and joined at Shutdown.
type Lifecycle struct {
	mu       sync.Mutex
	state    State
	workers  []Worker
	registry *ctxreg.Registry
}

// New constructs a Lifecycle bound to registry, starting in Uninit.
func New(registry *ctxreg.Registry) *Lifecycle {
	return &Lifecycle{state: Uninit, registry: registry}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// IsInitialized reports whether the runtime has completed Init and not
// yet Shutdown.
func (l *Lifecycle) IsInitialized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == Inited || l.state == Running
}

// Init transitions Uninit -> Inited and starts every worker. Calling Init
// twice without an intervening Shutdown is a Precondition error.
func (l *Lifecycle) Init(workers []Worker) *status.Status {
	l.mu.Lock()
	if l.state != Uninit {
		l.mu.Unlock()
		return status.New(status.Precondition, "lifecycle already initialized")
	}
	l.workers = workers
	l.state = Inited
	l.mu.Unlock()

	for _, w := range workers {
		w.Start()
	}

	l.mu.Lock()
	l.state = Running
	l.mu.Unlock()
	return nil
}

// Shutdown transitions to ShuttingDown, joins every worker, then resets
// to Uninit. Calling it before Init is a Precondition error; calling it
// twice concurrently is serialized by the mutex, and the second caller
// observes ShuttingDown or Uninit and errors.
func (l *Lifecycle) Shutdown() *status.Status {
	l.mu.Lock()
	if l.state == Uninit {
		l.mu.Unlock()
		return status.New(status.Precondition, "lifecycle not initialized")
	}
	if l.state == ShuttingDown {
		l.mu.Unlock()
		return status.New(status.Precondition, "lifecycle shutdown already in progress")
	}
	l.state = ShuttingDown
	workers := l.workers
	l.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}

	l.mu.Lock()
	l.state = Uninit
	l.workers = nil
	l.mu.Unlock()
	return nil
}

// Suspend is Shutdown without dropping declared contexts: background
// workers stop, but the registry's declaration log survives so a later
// Resume can replay it. Per spec §4.10, the distinction from a plain
// Shutdown is purely that callers intend to Resume.
func (l *Lifecycle) Suspend() *status.Status {
	l.mu.Lock()
	if l.state == Uninit {
		l.mu.Unlock()
		return status.New(status.Precondition, "lifecycle not initialized")
	}
	l.state = ShuttingDown
	workers := l.workers
	l.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}

	l.mu.Lock()
	l.state = Uninit
	l.workers = nil
	l.mu.Unlock()
	return nil
}

// Resume re-enters after a Suspend: it replays every recorded
// declaration via RedeclareAll (forcing PUSH_PULL, per the carried Open
// Question quirk in ctxreg.Registry), then starts workers and transitions
// to Running.
func (l *Lifecycle) Resume(workers []Worker) *status.Status {
	l.mu.Lock()
	if l.state != Uninit {
		l.mu.Unlock()
		return status.New(status.Precondition, "lifecycle must be Uninit to resume")
	}
	l.mu.Unlock()

	if l.registry != nil {
		l.registry.RedeclareAll()
	}
	return l.Init(workers)
}
