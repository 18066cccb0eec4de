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

package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveIsNoOpWhenDisabled(t *testing.T) {
	Enable(Config{Enabled: false})
	before := testutil.ToFloat64(alltoallCompletions)
	ObserveAlltoallCompletion()
	after := testutil.ToFloat64(alltoallCompletions)
	if before != after {
		t.Fatalf("ObserveAlltoallCompletion should be a no-op while disabled: before=%v after=%v", before, after)
	}
}

func TestObserveRecordsWhenEnabled(t *testing.T) {
	Enable(Config{Enabled: true})
	defer Enable(Config{Enabled: false})

	before := testutil.ToFloat64(alltoallCompletions)
	ObserveAlltoallCompletion()
	after := testutil.ToFloat64(alltoallCompletions)
	if after != before+1 {
		t.Fatalf("ObserveAlltoallCompletion: before=%v after=%v, want +1", before, after)
	}
}

func TestObserveServerBytesRoutedIgnoresNonPositive(t *testing.T) {
	Enable(Config{Enabled: true})
	defer Enable(Config{Enabled: false})

	before := testutil.ToFloat64(serverBytesRouted.WithLabelValues("1"))
	ObserveServerBytesRouted(1, 0)
	ObserveServerBytesRouted(1, -5)
	after := testutil.ToFloat64(serverBytesRouted.WithLabelValues("1"))
	if before != after {
		t.Fatalf("non-positive byte counts should not be recorded: before=%v after=%v", before, after)
	}

	ObserveServerBytesRouted(1, 100)
	after = testutil.ToFloat64(serverBytesRouted.WithLabelValues("1"))
	if after != before+100 {
		t.Fatalf("ObserveServerBytesRouted(1, 100): before=%v after=%v, want +100", before, after)
	}
}

func TestEnabledReflectsConfig(t *testing.T) {
	Enable(Config{Enabled: true})
	if !Enabled() {
		t.Fatal("Enabled() should be true after Enable(Config{Enabled: true})")
	}
	Enable(Config{Enabled: false})
	if Enabled() {
		t.Fatal("Enabled() should be false after Enable(Config{Enabled: false})")
	}
}
