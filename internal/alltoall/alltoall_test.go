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

package alltoall

import (
	"testing"

	"distcomm/internal/dispatch"
	"distcomm/internal/keycodec"
	"distcomm/internal/partition"
	"distcomm/internal/readytable"
)

func TestInitTensorAlltoallFreezesOnFirstCall(t *testing.T) {
	c := NewController(0, 2.0, 16, 4)
	req := []int64{100, 50}
	resp := []int64{80, 60}
	if st := c.InitTensorAlltoall(1, req, resp); st != nil {
		t.Fatalf("first InitTensorAlltoall: %v", st)
	}

	// A later call within the frozen bound succeeds.
	if st := c.InitTensorAlltoall(1, []int64{90, 40}, []int64{70, 50}); st != nil {
		t.Fatalf("second call within bound: %v", st)
	}
}

func TestInitTensorAlltoallRejectsExceedingFrozenBound(t *testing.T) {
	c := NewController(0, 1.0, 1, 4)
	if st := c.InitTensorAlltoall(1, []int64{100}, []int64{100}); st != nil {
		t.Fatalf("first call: %v", st)
	}
	if st := c.InitTensorAlltoall(1, []int64{1000}, []int64{100}); st == nil {
		t.Fatal("expected an error when a later call exceeds the frozen per-peer bound")
	}
}

func TestInitTensorAlltoallAppliesMinBound(t *testing.T) {
	c := NewController(0, 1.0, 500, 4)
	if st := c.InitTensorAlltoall(1, []int64{10}, []int64{10}); st != nil {
		t.Fatalf("InitTensorAlltoall: %v", st)
	}
	// A call asking for 500 bytes should still fit since min bound is 500.
	if st := c.InitTensorAlltoall(1, []int64{500}, []int64{500}); st != nil {
		t.Fatalf("expected the min bound of 500 to admit a 500-byte request: %v", st)
	}
}

func TestInitTensorAlltoallRejectsMismatchedLengths(t *testing.T) {
	c := NewController(0, 1.0, 1, 4)
	if st := c.InitTensorAlltoall(1, []int64{1, 2}, []int64{1}); st == nil {
		t.Fatal("expected an error for mismatched request/response peer counts")
	}
}

func TestBuildResponsesPreIncrementsSelfInReadyTable(t *testing.T) {
	c := NewController(1, 2.0, 16, 4)
	table := readytable.New()
	plan := &partition.AlltoallPlan{SelfRank: 1, NonzeroRecvs: []int{0, 1}}
	counter := partition.NewCounter(2, nil)

	tasks := c.BuildResponses(7, plan, dispatch.AlltoallSend, false, false, 0, counter, table, func(peer int) any { return peer })
	if len(tasks) != 2 {
		t.Fatalf("got %d response tasks, want 2", len(tasks))
	}

	// The self-peer task's key must already be ready without any external AddReady call.
	found := false
	for i, peer := range plan.NonzeroRecvs {
		if peer == plan.SelfRank {
			if !table.IsReady(tasks[i].Key) {
				t.Fatal("self-send response task's ready-table entry should already be ready")
			}
			found = true
		}
	}
	if !found {
		t.Fatal("test setup error: no self-rank peer in NonzeroRecvs")
	}
}

func TestBuildResponsesSetsReadyEventOnlyWhenOutputSizeUnknown(t *testing.T) {
	c := NewController(1, 2.0, 16, 4)
	plan := &partition.AlltoallPlan{SelfRank: -1, NonzeroRecvs: []int{0}}
	counter := partition.NewCounter(1, nil)

	known := c.BuildResponses(7, plan, dispatch.AlltoallSend, false, false, 0, counter, nil, func(peer int) any { return peer })
	if known[0].ReadyEvent != nil {
		t.Fatal("a known-output-size response task should not carry a copy-group ReadyEvent")
	}

	unknown := c.BuildResponses(7, plan, dispatch.AlltoallSend, true, false, 0, counter, nil, func(peer int) any { return peer })
	if unknown[0].ReadyEvent == nil {
		t.Fatal("an unknown-output-size response task should be gated on a copy-group token")
	}
}

func TestGroupCopyTokensBoundConcurrency(t *testing.T) {
	c := NewController(1, 2.0, 16, 2)
	plan := &partition.AlltoallPlan{SelfRank: -1, NonzeroRecvs: []int{0, 1, 2}}
	counter := partition.NewCounter(3, nil)
	tasks := c.BuildResponses(7, plan, dispatch.AlltoallSend, true, false, 0, counter, nil, func(peer int) any { return peer })

	acquired := 0
	for _, t := range tasks {
		select {
		case <-t.ReadyEvent:
			acquired++
		default:
		}
	}
	if acquired != 2 {
		t.Fatalf("acquired %d copy-group tokens before any release, want 2 (copyGroupSize)", acquired)
	}

	c.ReleaseGroupCopy()
	select {
	case <-tasks[2].ReadyEvent:
	default:
		t.Fatal("expected a token to be available for the third task after ReleaseGroupCopy")
	}
}

func TestBuildRequestUsesMyRankInKey(t *testing.T) {
	c := NewController(3, 2.0, 16, 4)
	counter := partition.NewCounter(1, nil)
	task := c.BuildRequest(5, &partition.AlltoallPlan{}, dispatch.AlltoallSend, 0, counter, "payload")
	if task.Payload != "payload" {
		t.Fatal("BuildRequest should carry through the given payload")
	}
	if len(task.StageList) != 1 || task.StageList[0] != dispatch.Send {
		t.Fatalf("StageList = %v, want [Send] for AlltoallSend mode", task.StageList)
	}
	if want := keycodec.EncodeAlltoall(5, 3); task.Key != want {
		t.Fatalf("Key = %#x, want %#x (declared id 5, my rank 3)", task.Key, want)
	}
}
