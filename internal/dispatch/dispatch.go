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

package dispatch

// Device selects the reduce/broadcast path a PushPull op takes.
type Device int

const (
	DeviceGPU Device = iota
	DeviceCPU
)

// GDRMode selects the GDR routing level, mirroring config.GDRLevel
// without importing it — dispatch stays a pure function of small value
// types, per the design-notes builder pattern (spec §9).
type GDRMode int

const (
	GDRNone GDRMode = iota
	GDRLevel1
	GDRLevel2
)

// PushPullFeatures carries every flag that perturbs the PUSH_PULL queue
// list: signal-root asymmetry, cross-PCIe-switch routing, GDR routing,
// and optional compression.
type PushPullFeatures struct {
	Device        Device
	IsSignalRoot  bool
	CrossPCIe     bool
	GDR           GDRMode
	CompressRoot  bool
}

// BuildPushPull returns the ordered stage list for one PUSH_PULL
// partition, per spec §4.6. Coordinate stages appear only on non-signal-root
// ranks; PcieReduce is inserted between CopyD2H and Push only in
// cross-PCIe-switch mode; compression brackets Push/Pull when enabled on
// the root device.
func BuildPushPull(f PushPullFeatures) []Stage {
	if f.Device == DeviceCPU {
		stages := []Stage{CPUCopy, CPUReduce}
		if !f.IsSignalRoot {
			stages = append(stages, Push)
		}
		stages = append(stages, CPUBcast)
		if f.IsSignalRoot {
			stages = append(stages, CPUBcastFinish)
		}
		return stages
	}

	if f.GDR != GDRNone {
		var stages []Stage
		if !f.IsSignalRoot {
			stages = append(stages, CoordinateReduce)
		}
		stages = append(stages, Reduce)
		if f.GDR == GDRLevel1 {
			stages = append(stages, GDRv1PushPull)
		} else {
			stages = append(stages, GDRv2PushPull)
		}
		stages = append(stages, GDRWait)
		if !f.IsSignalRoot {
			stages = append(stages, CoordinateBroadcast)
		}
		stages = append(stages, Broadcast)
		return stages
	}

	var stages []Stage
	if !f.IsSignalRoot {
		stages = append(stages, CoordinateReduce)
	}
	stages = append(stages, Reduce, CopyD2H)
	if f.CrossPCIe {
		stages = append(stages, PcieReduce)
	}
	if !f.IsSignalRoot {
		stages = append(stages, CoordinatePush)
	}
	if f.CompressRoot {
		stages = append(stages, Compress)
	}
	stages = append(stages, Push, Pull)
	if f.CompressRoot {
		stages = append(stages, Decompress)
	}
	stages = append(stages, CopyH2D)
	if !f.IsSignalRoot {
		stages = append(stages, CoordinateBroadcast)
	}
	stages = append(stages, Broadcast)
	return stages
}

// AlltoallMode selects between pull-mode and send-mode request stages.
type AlltoallMode int

const (
	AlltoallSend AlltoallMode = iota
	AlltoallPull
)

// BuildAlltoallRequest returns the request-side stage list for spec §4.6:
// `[P2PPull | Send]`.
func BuildAlltoallRequest(mode AlltoallMode) []Stage {
	if mode == AlltoallPull {
		return []Stage{P2PPull}
	}
	return []Stage{Send}
}

// BuildAlltoallResponse returns the response-side stage list: pull mode
// gets `P2PPullResponse [+ P2PWaitAck]`; unknown output size funnels
// through a single `P2PGroupCopyH2D`; otherwise a plain `Recv`.
func BuildAlltoallResponse(mode AlltoallMode, outputSizeUnknown bool, waitAck bool) []Stage {
	if outputSizeUnknown {
		return []Stage{P2PGroupCopyH2D}
	}
	if mode == AlltoallPull {
		stages := []Stage{P2PPullResponse}
		if waitAck {
			stages = append(stages, P2PWaitAck)
		}
		return stages
	}
	return []Stage{Recv}
}

// AllgatherRole distinguishes the three roles a rank plays in an
// allgather: an ordinary non-root worker, the per-node local root, or the
// cross-node signal root.
type AllgatherRole int

const (
	AllgatherNonRoot AllgatherRole = iota
	AllgatherLocalRoot
	AllgatherSignalRoot
)

// BuildAllgatherRequest returns the request-side stage list for spec
// §4.6's distributed GPU allgather path.
func BuildAllgatherRequest(role AllgatherRole) []Stage {
	var stages []Stage
	if role != AllgatherSignalRoot {
		stages = append(stages, CoordinateAllgather)
	}
	stages = append(stages, Allgather, AllgatherCopyD2H, AllgatherPullWorkerLocalRoot, AllgatherPull, AllgatherCopyH2D)
	if role != AllgatherSignalRoot {
		stages = append(stages, CoordinateAllgatherBcast)
	}
	stages = append(stages, AllgatherBcast)
	return stages
}

// BuildAllgatherResponse returns the response-side stage list for the
// given role: local-rank-0 responds with
// AllgatherPullWorkerLocalRootResp[+Ack]; the signal-root responds with
// AllgatherPullResp[+Ack] only; ordinary non-roots respond with
// nothing (they only enqueue the request task).
func BuildAllgatherResponse(role AllgatherRole, ack bool) []Stage {
	var stages []Stage
	switch role {
	case AllgatherLocalRoot:
		stages = append(stages, AllgatherPullWorkerLocalRootResp)
	case AllgatherSignalRoot:
		stages = append(stages, AllgatherPullResp)
	default:
		return nil
	}
	if ack {
		stages = append(stages, AllgatherPullAck)
	}
	return stages
}
