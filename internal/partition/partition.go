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

// Package partition splits one logical tensor enqueue into fixed-size
// byte-range partitions that share a completion counter, and builds the
// request/response task set for alltoall's uneven per-peer sizing.
package partition

import (
	"sync/atomic"

	"distcomm/internal/status"
)

// Range is one partition's byte span within the logical tensor.
type Range struct {
	Offset int64
	Len    int64
}

// Plan is the outcome of Split: the ordered byte ranges plus the shared
// completion counter every partition's task must bump on finishing its
// whole stage pipeline.
type Plan struct {
	Ranges  []Range
	Counter *Counter
}

// Counter is the shared, reference-counted completion counter from spec
// §3 (Task.counter): it fires callback exactly once when every partition
// has finished. It is the only counter this package keeps: there is no
// per-partition push_pull_counter for the cross-node phase.
type Counter struct {
	target   int64
	done     atomic.Int64
	fired    atomic.Bool
	err      atomic.Pointer[status.Status]
	callback func()
}

// NewCounter builds a Counter targeting target completions.
func NewCounter(target int64, callback func()) *Counter {
	return &Counter{target: target, callback: callback}
}

// Advance records one partition's completion. If this was the last one
// outstanding, callback fires exactly once — spec §8 property 3.
func (c *Counter) Advance() {
	done := c.done.Add(1)
	if done == c.target && c.fired.CompareAndSwap(false, true) {
		if c.callback != nil {
			c.callback()
		}
	}
}

// Fail records st as the reason this operation did not complete
// successfully and fires callback immediately, rather than waiting for
// every remaining partition to check in — a failed partition means the
// others' results are no longer useful to the caller, per spec §4.11's
// "partial progress is not rolled back" (the work already done stays
// done, but the op as a whole is reported failed). If callback already
// fired, st is recorded but has no further effect: the first resolution
// wins.
func (c *Counter) Fail(st *status.Status) {
	c.err.Store(st)
	if c.fired.CompareAndSwap(false, true) {
		if c.callback != nil {
			c.callback()
		}
	}
}

// Err returns the status Fail recorded, or nil if Fail was never called.
func (c *Counter) Err() *status.Status {
	return c.err.Load()
}

// Done reports whether every partition has completed.
func (c *Counter) Done() bool {
	return c.done.Load() >= c.target
}

// Split divides a tensor of length size into partitions no longer than
// bound, rounded up to local_size*pageSize as spec §6 describes for
// PARTITION_BYTES. The last partition absorbs the remainder. Returns
// InvalidArgument if size is negative or bound is non-positive.
func Split(size int64, bound int64, localSize int, pageSize int64, callback func()) (*Plan, *status.Status) {
	if size < 0 {
		return nil, status.New(status.InvalidArgument, "negative tensor size")
	}
	if bound <= 0 {
		return nil, status.New(status.InvalidArgument, "non-positive partition bound")
	}
	if localSize > 0 && pageSize > 0 {
		unit := int64(localSize) * pageSize
		if unit > 0 {
			bound = ((bound + unit - 1) / unit) * unit
		}
	}

	if size == 0 {
		counter := NewCounter(1, callback)
		return &Plan{Ranges: []Range{{Offset: 0, Len: 0}}, Counter: counter}, nil
	}

	var ranges []Range
	var offset int64
	for offset < size {
		remaining := size - offset
		length := bound
		if remaining < length {
			length = remaining
		}
		ranges = append(ranges, Range{Offset: offset, Len: length})
		offset += length
	}

	counter := NewCounter(int64(len(ranges)), callback)
	return &Plan{Ranges: ranges, Counter: counter}, nil
}

// PeerSizes is the per-peer request/response byte counts for one alltoall
// call, as used by BuildAlltoall.
type PeerSizes struct {
	SendBegin []int64 // cumulative, length numPeers+1
	RecvBegin []int64
}

// AlltoallPlan is the request/response task shape from spec §4.8.
type AlltoallPlan struct {
	RequestPartnum  int
	ResponsePartnum int
	SelfRank        int // -1 if no self-send
	NonzeroRecvs    []int
}

// BuildAlltoall computes the request/response partition counts per spec
// §4.8 and the S4 scenario: request_partnum is 1 iff at least one peer has
// a non-empty send; response_partnum counts peers with a non-zero recv
// (self included), collapsing to 1 when outputSizeUnknown funnels through
// a single P2PGroupCopyH2D.
func BuildAlltoall(myRank int, sizes PeerSizes, outputSizeUnknown bool) (*AlltoallPlan, *status.Status) {
	numPeers := len(sizes.SendBegin) - 1
	if numPeers < 0 || len(sizes.RecvBegin)-1 != numPeers {
		return nil, status.New(status.InvalidArgument, "send_begin/recv_begin length mismatch")
	}

	requestPartnum := 0
	for i := 0; i < numPeers; i++ {
		if sizes.SendBegin[i+1]-sizes.SendBegin[i] > 0 {
			requestPartnum = 1
			break
		}
	}

	if outputSizeUnknown {
		return &AlltoallPlan{RequestPartnum: requestPartnum, ResponsePartnum: 1, SelfRank: myRank}, nil
	}

	var nonzero []int
	for i := 0; i < numPeers; i++ {
		if sizes.RecvBegin[i+1]-sizes.RecvBegin[i] > 0 {
			nonzero = append(nonzero, i)
		}
	}

	selfRank := -1
	if myRank >= 0 && myRank < numPeers && sizes.RecvBegin[myRank+1]-sizes.RecvBegin[myRank] > 0 {
		selfRank = myRank
	}

	return &AlltoallPlan{
		RequestPartnum:  requestPartnum,
		ResponsePartnum: len(nonzero),
		SelfRank:        selfRank,
		NonzeroRecvs:    nonzero,
	}, nil
}
