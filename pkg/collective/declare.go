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
	"distcomm/internal/ctxreg"
	"distcomm/internal/status"
)

// OpType is the operation family a tensor is declared under, spec §4.4's
// PUSH_PULL/P2P/ALLTOALL/ALLGATHER.
type OpType = ctxreg.OpType

const (
	PushPull OpType = ctxreg.PushPull
	P2P      OpType = ctxreg.P2P
	Alltoall OpType = ctxreg.Alltoall
	Allgather OpType = ctxreg.Allgather
)

// Declare registers baseName under op, returning its declared id. A
// negative providedID asks the registry to assign the next free id in
// op's id space; session selects the session-scoped name variant
// (negative disables it). Declare is idempotent on an identical effective
// name, per spec §4.4.
func (r *Runtime) Declare(baseName string, op OpType, providedID int32, session int) (int32, *status.Status) {
	return r.registry.Declare(baseName, op, providedID, session)
}

// DeclareP2P registers a sender/receiver pair under the P2P id space
// keyed by (sender, receiver).
func (r *Runtime) DeclareP2P(name string, sender, receiver int32) (int32, *status.Status) {
	return r.registry.DeclareP2P(name, sender, receiver)
}

// DeclareAllgather registers baseName under the ALLGATHER op type — a
// thin alias over Declare, named separately per spec §6's callable
// surface so callers don't have to spell out ctxreg.Allgather.
func (r *Runtime) DeclareAllgather(baseName string, providedID int32) (int32, *status.Status) {
	return r.registry.Declare(baseName, Allgather, providedID, -1)
}

// Lookup returns the Context registered for name.
func (r *Runtime) Lookup(name string) (*ctxreg.Context, *status.Status) {
	return r.registry.Lookup(name)
}
