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

package collective

// opPayload is the mutable working state one task's Payload carries
// through its stage list: the byte buffer each collaborator call reads
// from or overwrites in place, and the length a Pull/Broadcast/Decompress
// call expects back. Concrete device buffers (GPU/PCIe/NUMA) are out of
// scope per the Non-goals — every stage operates on this single
// in-process buffer regardless of which Device the dispatch builder
// targeted, since CopyD2H/CopyH2D/CPUCopy are no-ops in a single address
// space.
type opPayload struct {
	buf    []byte
	length int
}
