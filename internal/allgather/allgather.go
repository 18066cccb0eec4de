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

// Package allgather builds the request/response task graph for one
// ALLGATHER enqueue per spec §4.9: one key per physical node, with the
// worker-local-root and signal-root carrying asymmetric response duties.
package allgather

import (
	"distcomm/internal/dispatch"
	"distcomm/internal/keycodec"
	"distcomm/internal/partition"
	"distcomm/internal/taskqueue"
)

// Controller builds allgather task graphs for one rank.
type Controller struct {
	myPhyNode    int32
	numPhyNodes  int
	role         dispatch.AllgatherRole
	ackRequired  bool
}

// NewController constructs a Controller for this rank's role.
func NewController(myPhyNode int32, numPhyNodes int, role dispatch.AllgatherRole, ackRequired bool) *Controller {
	return &Controller{myPhyNode: myPhyNode, numPhyNodes: numPhyNodes, role: role, ackRequired: ackRequired}
}

// BuildRequest constructs this rank's single request task. Per spec
// §4.9, total_partitions is numPhyNodes on worker-local-root and
// signal-root, else 1 — callers pass the already-sized shared Counter so
// that value is established once per enqueue, not recomputed here.
func (c *Controller) BuildRequest(declaredID int32, priority int, counter *partition.Counter, payload any) *taskqueue.Task {
	key := keycodec.EncodeAllgather(c.myPhyNode, declaredID)
	return &taskqueue.Task{
		Key:       key,
		Priority:  priority,
		StageList: dispatch.BuildAllgatherRequest(c.role),
		Counter:   counter,
		// CoordinateAllgather/CoordinateAllgatherBcast appear in
		// dispatch.BuildAllgatherRequest's stage list exactly when role
		// isn't AllgatherSignalRoot, so gate on the ready table the same
		// way — see pkg/collective/stages.go's admissionFor doc comment
		// for what closing this gate's loop still needs.
		RequiresGate: c.role != dispatch.AllgatherSignalRoot,
		GateKey:      key,
		Payload:      payload,
	}
}

// BuildResponses constructs one response task per peer physical node this
// rank must answer, per its role: local-root and signal-root respond to
// every other physical node (numPhyNodes-1 peers); an ordinary non-root
// responds to none.
func (c *Controller) BuildResponses(declaredID int32, priority int, counter *partition.Counter, payloadFor func(peerPhyNode int32) any) []*taskqueue.Task {
	stages := dispatch.BuildAllgatherResponse(c.role, c.ackRequired)
	if stages == nil {
		return nil
	}

	tasks := make([]*taskqueue.Task, 0, c.numPhyNodes-1)
	for peer := 0; peer < c.numPhyNodes; peer++ {
		if int32(peer) == c.myPhyNode {
			continue
		}
		key := keycodec.EncodeAllgather(int32(peer), declaredID)
		tasks = append(tasks, &taskqueue.Task{
			Key:       key,
			Priority:  priority,
			StageList: append([]dispatch.Stage(nil), stages...),
			Counter:   counter,
			Payload:   payloadFor(int32(peer)),
		})
	}
	return tasks
}

// TotalPartitions reports the Counter target for this rank's role, per
// spec §4.9: numPhyNodes for local-root/signal-root, else 1.
func (c *Controller) TotalPartitions() int64 {
	if c.role == dispatch.AllgatherLocalRoot || c.role == dispatch.AllgatherSignalRoot {
		return int64(c.numPhyNodes)
	}
	return 1
}
