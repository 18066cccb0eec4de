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

import "testing"

func containsStage(stages []Stage, s Stage) bool {
	for _, x := range stages {
		if x == s {
			return true
		}
	}
	return false
}

func TestBuildPushPullSignalRootOmitsCoordinateStages(t *testing.T) {
	stages := BuildPushPull(PushPullFeatures{Device: DeviceGPU, IsSignalRoot: true})
	if containsStage(stages, CoordinateReduce) || containsStage(stages, CoordinatePush) || containsStage(stages, CoordinateBroadcast) {
		t.Fatalf("signal root should not carry Coordinate* stages: %v", stages)
	}
}

func TestBuildPushPullNonRootIncludesCoordinateStages(t *testing.T) {
	stages := BuildPushPull(PushPullFeatures{Device: DeviceGPU, IsSignalRoot: false})
	if !containsStage(stages, CoordinateReduce) || !containsStage(stages, CoordinatePush) || !containsStage(stages, CoordinateBroadcast) {
		t.Fatalf("non-root should carry every Coordinate* stage: %v", stages)
	}
}

func TestBuildPushPullCrossPCIeInsertsPcieReduce(t *testing.T) {
	stages := BuildPushPull(PushPullFeatures{Device: DeviceGPU, IsSignalRoot: true, CrossPCIe: true})
	if !containsStage(stages, PcieReduce) {
		t.Fatalf("cross-PCIe mode should insert PcieReduce: %v", stages)
	}
}

func TestBuildPushPullCompressionBracketsPushPull(t *testing.T) {
	stages := BuildPushPull(PushPullFeatures{Device: DeviceGPU, IsSignalRoot: true, CompressRoot: true})
	var compressIdx, pushIdx, pullIdx, decompressIdx = -1, -1, -1, -1
	for i, s := range stages {
		switch s {
		case Compress:
			compressIdx = i
		case Push:
			pushIdx = i
		case Pull:
			pullIdx = i
		case Decompress:
			decompressIdx = i
		}
	}
	if compressIdx == -1 || decompressIdx == -1 {
		t.Fatalf("expected both Compress and Decompress present: %v", stages)
	}
	if !(compressIdx < pushIdx && pushIdx < pullIdx && pullIdx < decompressIdx) {
		t.Fatalf("expected Compress < Push < Pull < Decompress, got %v", stages)
	}
}

func TestBuildPushPullGDRLevelsDiffer(t *testing.T) {
	v1 := BuildPushPull(PushPullFeatures{Device: DeviceGPU, IsSignalRoot: true, GDR: GDRLevel1})
	v2 := BuildPushPull(PushPullFeatures{Device: DeviceGPU, IsSignalRoot: true, GDR: GDRLevel2})
	if !containsStage(v1, GDRv1PushPull) {
		t.Fatalf("GDRLevel1 should produce GDRv1PushPull: %v", v1)
	}
	if !containsStage(v2, GDRv2PushPull) {
		t.Fatalf("GDRLevel2 should produce GDRv2PushPull: %v", v2)
	}
}

func TestBuildPushPullCPUDevicePath(t *testing.T) {
	stages := BuildPushPull(PushPullFeatures{Device: DeviceCPU, IsSignalRoot: false})
	if !containsStage(stages, CPUCopy) || !containsStage(stages, CPUReduce) || !containsStage(stages, Push) || !containsStage(stages, CPUBcast) {
		t.Fatalf("CPU non-root path missing expected stages: %v", stages)
	}
	if containsStage(stages, CPUBcastFinish) {
		t.Fatal("CPUBcastFinish should only appear for the signal root")
	}
}

func TestBuildAlltoallRequestModes(t *testing.T) {
	if s := BuildAlltoallRequest(AlltoallSend); len(s) != 1 || s[0] != Send {
		t.Fatalf("send mode request = %v, want [Send]", s)
	}
	if s := BuildAlltoallRequest(AlltoallPull); len(s) != 1 || s[0] != P2PPull {
		t.Fatalf("pull mode request = %v, want [P2PPull]", s)
	}
}

func TestBuildAlltoallResponseOutputSizeUnknown(t *testing.T) {
	s := BuildAlltoallResponse(AlltoallSend, true, true)
	if len(s) != 1 || s[0] != P2PGroupCopyH2D {
		t.Fatalf("output-size-unknown response = %v, want [P2PGroupCopyH2D]", s)
	}
}

func TestBuildAlltoallResponsePullWithAck(t *testing.T) {
	s := BuildAlltoallResponse(AlltoallPull, false, true)
	if !containsStage(s, P2PPullResponse) || !containsStage(s, P2PWaitAck) {
		t.Fatalf("pull+ack response = %v, want P2PPullResponse and P2PWaitAck", s)
	}
}

func TestBuildAlltoallResponseSendModeIsRecv(t *testing.T) {
	s := BuildAlltoallResponse(AlltoallSend, false, false)
	if len(s) != 1 || s[0] != Recv {
		t.Fatalf("send mode response = %v, want [Recv]", s)
	}
}

func TestBuildAllgatherResponseByRole(t *testing.T) {
	if s := BuildAllgatherResponse(AllgatherNonRoot, false); s != nil {
		t.Fatalf("non-root should have no response stages, got %v", s)
	}
	if s := BuildAllgatherResponse(AllgatherLocalRoot, false); len(s) != 1 || s[0] != AllgatherPullWorkerLocalRootResp {
		t.Fatalf("local root response = %v, want [AllgatherPullWorkerLocalRootResp]", s)
	}
	if s := BuildAllgatherResponse(AllgatherSignalRoot, true); !containsStage(s, AllgatherPullResp) || !containsStage(s, AllgatherPullAck) {
		t.Fatalf("signal root + ack response = %v, want AllgatherPullResp and AllgatherPullAck", s)
	}
}

func TestBuildAllgatherRequestSignalRootOmitsCoordinateStages(t *testing.T) {
	stages := BuildAllgatherRequest(AllgatherSignalRoot)
	if containsStage(stages, CoordinateAllgather) || containsStage(stages, CoordinateAllgatherBcast) {
		t.Fatalf("signal root request should omit Coordinate* stages: %v", stages)
	}
}

func TestBuildAllgatherRequestNonRootIncludesCoordinateStages(t *testing.T) {
	stages := BuildAllgatherRequest(AllgatherNonRoot)
	if !containsStage(stages, CoordinateAllgather) || !containsStage(stages, CoordinateAllgatherBcast) {
		t.Fatalf("non-root request should include both Coordinate* stages: %v", stages)
	}
}
