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

import (
	"strconv"
	"time"

	"distcomm/internal/dispatch"
	"distcomm/internal/keycodec"
	"distcomm/internal/status"
	"distcomm/internal/telemetry/trace"
)

func stageTraceEvent(stage dispatch.Stage, key uint64, dur time.Duration) trace.Event {
	decoded := keycodec.Decode(key)
	return trace.Event{
		Ph:   "X",
		TS:   time.Now().UnixMicro(),
		Dur:  dur.Microseconds(),
		Cat:  "Comm",
		Name: stage.String(),
		Args: trace.EventArgs{Name: strconv.Itoa(int(decoded.DeclaredID))},
	}
}

func errorTraceEvent(key uint64, st *status.Status) trace.Event {
	decoded := keycodec.Decode(key)
	return trace.Event{
		Ph:   "X",
		TS:   time.Now().UnixMicro(),
		Cat:  "Comm",
		Name: "Error:" + st.Kind.String(),
		Args: trace.EventArgs{Name: strconv.Itoa(int(decoded.DeclaredID))},
	}
}
