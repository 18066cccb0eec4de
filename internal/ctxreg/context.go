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

// Package ctxreg holds the name-to-Context registry: lazy declaration,
// at-most-once initialization, and id assignment per op type. It is
// grounded on internal/ratelimiter/core.Store's fast-path Load then
// lazy-allocate-and-LoadOrStore pattern, generalized from one flat map of
// counters to a per-op-type id space plus a richer per-name Context.
package ctxreg

import (
	"sync"

	"distcomm/internal/status"
)

// OpType is the operation family a Context was declared under.
type OpType uint8

const (
	PushPull OpType = iota
	P2P
	Alltoall
	Allgather
)

// initState is the Context initialization state machine from spec §4.10:
// Undeclared -> Declared -> (first enqueue) -> Initializing -> Initialized.
type initState uint8

const (
	declared initState = iota
	initializing
	initialized
)

// Context is all cached per-tensor state: keys, buffers, compressors, and
// the init flag. Buffers and compressors are left as opaque slots (`any`)
// since their concrete shape is owned by collaborator capabilities the
// communication core never inspects.
type Context struct {
	Name        string
	BaseName    string
	DeclaredID  int32
	OpType      OpType

	mu     sync.Mutex
	state  initState
	initWG chan struct{} // closed (and replaced) when each init attempt ends, successful or not

	Keys           []uint64
	CPUBuf         any
	GPUBuf         any
	PCIeBufs       any
	NUMABufs       any
	PeerBufs       any
	Compressors    []any
	AlltoallBounds []uint32
	Kwargs         map[string]string
}

func newContext(name, baseName string, declaredID int32, op OpType) *Context {
	return &Context{
		Name:       name,
		BaseName:   baseName,
		DeclaredID: declaredID,
		OpType:     op,
		state:      declared,
		initWG:     make(chan struct{}),
		Kwargs:     make(map[string]string),
	}
}

// Initialized reports whether init side effects have already completed.
func (c *Context) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == initialized
}

// EnsureInit runs initFn exactly once across any number of concurrent
// first-touch callers. Callers that lose the race block until the winner
// finishes, then observe its result — matching spec §4.10's "only the
// first enqueue performs side effects" and §8 property 4 (at-most-once
// init under K concurrent first-touch enqueues).
func (c *Context) EnsureInit(initFn func(*Context) *status.Status) *status.Status {
	c.mu.Lock()
	switch c.state {
	case initialized:
		c.mu.Unlock()
		return nil
	case initializing:
		wait := c.initWG
		c.mu.Unlock()
		<-wait
		if !c.Initialized() {
			return status.New(status.Aborted, "context initialization failed")
		}
		return nil
	}
	c.state = initializing
	c.mu.Unlock()

	st := initFn(c)

	c.mu.Lock()
	if st == nil {
		c.state = initialized
	} else {
		c.state = declared
	}
	wait := c.initWG
	c.initWG = make(chan struct{})
	c.mu.Unlock()
	close(wait)
	return st
}
