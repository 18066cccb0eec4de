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

// Package dispatch builds the per-op stage sequence (the "queue list")
// from device/mode/operation, the way the teacher's tfd.Classify is a
// pure function from an incoming Op to a routing decision — here the
// routing decision is an ordered list of named stages rather than a
// channel.
package dispatch

// Stage names the fixed set of pipeline steps from spec §4.3; each is
// backed by exactly one ScheduledQueue and one StageWorker.
type Stage int

const (
	CoordinateReduce Stage = iota
	Reduce
	CopyD2H
	PcieReduce
	CoordinatePush
	Push
	Pull
	Compress
	Decompress
	CopyH2D
	CoordinateBroadcast
	Broadcast

	CPUCopy
	CPUReduce
	CPUBcast
	CPUBcastFinish

	GDRv1PushPull
	GDRv2PushPull
	GDRWait

	P2PPull
	P2PPullResponse
	P2PWaitAck
	P2PGroupCopyH2D
	Send
	Recv

	CoordinateAllgather
	Allgather
	AllgatherCopyD2H
	AllgatherCopyH2D
	AllgatherPullWorkerLocalRoot
	AllgatherPull
	CoordinateAllgatherBcast
	AllgatherBcast
	AllgatherPullWorkerLocalRootResp
	AllgatherPullResp
	AllgatherPullAck
)

func (s Stage) String() string {
	switch s {
	case CoordinateReduce:
		return "CoordinateReduce"
	case Reduce:
		return "Reduce"
	case CopyD2H:
		return "CopyD2H"
	case PcieReduce:
		return "PcieReduce"
	case CoordinatePush:
		return "CoordinatePush"
	case Push:
		return "Push"
	case Pull:
		return "Pull"
	case Compress:
		return "Compress"
	case Decompress:
		return "Decompress"
	case CopyH2D:
		return "CopyH2D"
	case CoordinateBroadcast:
		return "CoordinateBroadcast"
	case Broadcast:
		return "Broadcast"
	case CPUCopy:
		return "CpuCopy"
	case CPUReduce:
		return "CpuReduce"
	case CPUBcast:
		return "CpuBcast"
	case CPUBcastFinish:
		return "CpuBcastFinish"
	case GDRv1PushPull:
		return "GDRv1PushPull"
	case GDRv2PushPull:
		return "GDRv2PushPull"
	case GDRWait:
		return "GDRWait"
	case P2PPull:
		return "P2PPull"
	case P2PPullResponse:
		return "P2PPullResponse"
	case P2PWaitAck:
		return "P2PWaitAck"
	case P2PGroupCopyH2D:
		return "P2PGroupCopyH2D"
	case Send:
		return "Send"
	case Recv:
		return "Recv"
	case CoordinateAllgather:
		return "CoordinateAllgather"
	case Allgather:
		return "Allgather"
	case AllgatherCopyD2H:
		return "AllgatherCopyD2H"
	case AllgatherCopyH2D:
		return "AllgatherCopyH2D"
	case AllgatherPullWorkerLocalRoot:
		return "AllgatherPullWorkerLocalRoot"
	case AllgatherPull:
		return "AllgatherPull"
	case CoordinateAllgatherBcast:
		return "CoordinateAllgatherBcast"
	case AllgatherBcast:
		return "AllgatherBcast"
	case AllgatherPullWorkerLocalRootResp:
		return "AllgatherPullWorkerLocalRootResp"
	case AllgatherPullResp:
		return "AllgatherPullResp"
	case AllgatherPullAck:
		return "AllgatherPullAck"
	default:
		return "Unknown"
	}
}
