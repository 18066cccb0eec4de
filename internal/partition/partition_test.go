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

package partition

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSplitCoversWholeRangeInOrder(t *testing.T) {
	plan, st := Split(1000, 300, 0, 0, nil)
	if st != nil {
		t.Fatalf("Split: %v", st)
	}
	var offset int64
	for _, rng := range plan.Ranges {
		if rng.Offset != offset {
			t.Fatalf("range offset %d, want %d (partitions must be contiguous and ordered)", rng.Offset, offset)
		}
		offset += rng.Len
	}
	if offset != 1000 {
		t.Fatalf("ranges cover %d bytes, want 1000", offset)
	}
}

func TestSplitZeroSizeYieldsOnePartition(t *testing.T) {
	plan, st := Split(0, 300, 0, 0, nil)
	if st != nil {
		t.Fatalf("Split: %v", st)
	}
	if len(plan.Ranges) != 1 || plan.Ranges[0].Len != 0 {
		t.Fatalf("zero-size split should yield exactly one empty range, got %v", plan.Ranges)
	}
}

func TestSplitRejectsInvalidInput(t *testing.T) {
	if _, st := Split(-1, 100, 0, 0, nil); st == nil {
		t.Fatal("expected an error for negative size")
	}
	if _, st := Split(100, 0, 0, 0, nil); st == nil {
		t.Fatal("expected an error for non-positive bound")
	}
}

func TestSplitAlignsBoundToLocalSizeAndPageSize(t *testing.T) {
	plan, st := Split(100, 10, 4, 3, nil)
	if st != nil {
		t.Fatalf("Split: %v", st)
	}
	if len(plan.Ranges) == 0 {
		t.Fatal("expected at least one partition")
	}
	if plan.Ranges[0].Len != 12 && len(plan.Ranges) > 1 {
		t.Fatalf("bound should round up to a multiple of local_size*pageSize=12, first range len=%d", plan.Ranges[0].Len)
	}
}

func TestCounterFiresExactlyOnceAtTarget(t *testing.T) {
	var fired atomic.Int32
	c := NewCounter(3, func() { fired.Add(1) })
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance()
		}()
	}
	wg.Wait()
	if fired.Load() != 1 {
		t.Fatalf("callback fired %d times, want exactly 1", fired.Load())
	}
	if !c.Done() {
		t.Fatal("Done() should be true once target reached")
	}
}

func TestBuildAlltoallRequestPartnumRequiresNonEmptySend(t *testing.T) {
	sizes := PeerSizes{SendBegin: []int64{0, 0, 0}, RecvBegin: []int64{0, 0, 0}}
	plan, st := BuildAlltoall(0, sizes, false)
	if st != nil {
		t.Fatalf("BuildAlltoall: %v", st)
	}
	if plan.RequestPartnum != 0 {
		t.Fatalf("RequestPartnum = %d, want 0 when every peer's send is empty", plan.RequestPartnum)
	}

	sizes = PeerSizes{SendBegin: []int64{0, 10, 10}, RecvBegin: []int64{0, 0, 0}}
	plan, st = BuildAlltoall(0, sizes, false)
	if st != nil {
		t.Fatalf("BuildAlltoall: %v", st)
	}
	if plan.RequestPartnum != 1 {
		t.Fatal("RequestPartnum should be 1 once at least one peer has a non-empty send")
	}
}

func TestBuildAlltoallIdentifiesSelfRank(t *testing.T) {
	sizes := PeerSizes{SendBegin: []int64{0, 5, 10}, RecvBegin: []int64{0, 4, 8}}
	plan, st := BuildAlltoall(1, sizes, false)
	if st != nil {
		t.Fatalf("BuildAlltoall: %v", st)
	}
	if plan.SelfRank != 1 {
		t.Fatalf("SelfRank = %d, want 1", plan.SelfRank)
	}
	if plan.ResponsePartnum != 2 {
		t.Fatalf("ResponsePartnum = %d, want 2 (both peers have non-zero recv)", plan.ResponsePartnum)
	}
}

func TestBuildAlltoallOutputSizeUnknownCollapsesToOneResponse(t *testing.T) {
	sizes := PeerSizes{SendBegin: []int64{0, 5}, RecvBegin: []int64{0, 5}}
	plan, st := BuildAlltoall(0, sizes, true)
	if st != nil {
		t.Fatalf("BuildAlltoall: %v", st)
	}
	if plan.ResponsePartnum != 1 {
		t.Fatalf("ResponsePartnum = %d, want 1 when output size is unknown", plan.ResponsePartnum)
	}
}

func TestBuildAlltoallRejectsMismatchedLengths(t *testing.T) {
	sizes := PeerSizes{SendBegin: []int64{0, 1, 2}, RecvBegin: []int64{0, 1}}
	if _, st := BuildAlltoall(0, sizes, false); st == nil {
		t.Fatal("expected an error for mismatched send_begin/recv_begin lengths")
	}
}
