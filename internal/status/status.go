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

// Package status carries the small, fixed set of error kinds used across
// the communication core so stage callbacks and enqueue paths can classify
// failures without inspecting error strings.
package status

import "fmt"

// Kind is one of the fixed status kinds a collective operation can fail with.
type Kind int

const (
	Ok Kind = iota
	Unknown
	Precondition
	Aborted
	DataLoss
	InvalidArgument
	InProgress
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "Ok"
	case Unknown:
		return "Unknown"
	case Precondition:
		return "Precondition"
	case Aborted:
		return "Aborted"
	case DataLoss:
		return "DataLoss"
	case InvalidArgument:
		return "InvalidArgument"
	case InProgress:
		return "InProgress"
	default:
		return "Unrecognized"
	}
}

// Status is an error carrying a Kind plus a human-readable reason.
type Status struct {
	Kind   Kind
	Reason string
	Err    error
}

func (s *Status) Error() string {
	if s.Err != nil {
		return fmt.Sprintf("%s: %s: %v", s.Kind, s.Reason, s.Err)
	}
	return fmt.Sprintf("%s: %s", s.Kind, s.Reason)
}

func (s *Status) Unwrap() error { return s.Err }

// New builds a Status with the given kind and reason.
func New(kind Kind, reason string) *Status {
	return &Status{Kind: kind, Reason: reason}
}

// Wrap builds a Status that carries an underlying collaborator error.
// Per spec §7, failures from external collaborators surface as Unknown
// unless the caller names a more specific kind.
func Wrap(kind Kind, reason string, err error) *Status {
	return &Status{Kind: kind, Reason: reason, Err: err}
}

// FromCollaborator classifies an arbitrary collaborator error as Unknown,
// the default per spec §7 ("All other failures from collaborators are
// surfaced as Unknown with a reason string").
func FromCollaborator(reason string, err error) *Status {
	if err == nil {
		return nil
	}
	return Wrap(Unknown, reason, err)
}

// Is reports whether err is a *Status of the given kind.
func Is(err error, kind Kind) bool {
	s, ok := err.(*Status)
	return ok && s.Kind == kind
}
