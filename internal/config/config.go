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

// Package config parses the environment-variable option table that
// governs a single collective-communication runtime instance. FromEnv
// reads every option once into an Options value that the caller passes
// to the runtime's constructor and holds for the lifetime of the process, the same load-once-then-pass-a-struct shape
// the teacher uses for vsa.Options and tfd.PipelineOptions.
package config

import (
	"os"
	"strconv"
	"strings"

	"distcomm/internal/keycodec"
)

// GDRLevel mirrors the original GDR_ALLREDUCE_LEVEL knob.
type GDRLevel int

const (
	GDRLevelNone GDRLevel = iota
	GDRLevelV1
	GDRLevelV2
)

// Options is the full set of tunables a runtime reads at Init. Every
// field has a documented default so a minimal environment still boots.
type Options struct {
	NumWorker int
	NumServer int
	JobID     string

	PartitionBytes        int64
	AlltoallBuffBytes     int64
	AlltoallMemFactor     float64
	AlltoallSessionSize   int
	AlltoallCopyGroupSize int

	MinCompressBytes int64
	KeyHashFn        keycodec.HashFn
	MixedModeBound   int
	ReduceRoots      []int

	GDRAllreduceLevel     GDRLevel
	GDRPhase1TensorThresh int64
	GDRPhase2TensorThresh int64
	UseGDRAllreduce       bool
	UseGDRAllgather       bool

	DisablePushPull bool
	DisableAlltoall bool
	DisableAllgather bool

	TraceOn        bool
	TraceStartStep int
	TraceEndStep   int
	TraceDir       string

	DebugSampleTensor string
}

// defaults returns the baseline Options before environment overrides,
// matching the original implementation's compiled-in defaults.
func defaults() Options {
	return Options{
		NumWorker:             1,
		NumServer:             1,
		JobID:                 "0",
		PartitionBytes:        4096000,
		AlltoallBuffBytes:     1024 * 1024 * 1024,
		AlltoallMemFactor:     1.5,
		AlltoallSessionSize:   2,
		AlltoallCopyGroupSize: 16,
		MinCompressBytes:      65536,
		KeyHashFn:             keycodec.HashBuiltIn,
		MixedModeBound:        101,
		GDRAllreduceLevel:     GDRLevelNone,
		GDRPhase1TensorThresh: 1024 * 1024,
		GDRPhase2TensorThresh: 1024 * 1024,
		TraceDir:              "",
		TraceStartStep:        -1,
		TraceEndStep:          -1,
	}
}

// FromEnv reads the BytePS-style environment variables into an Options,
// falling back to defaults() for anything unset or malformed.
func FromEnv() Options {
	o := defaults()

	if v, ok := os.LookupEnv("NUM_WORKER"); ok {
		o.NumWorker = atoiOr(v, o.NumWorker)
	}
	if v, ok := os.LookupEnv("NUM_SERVER"); ok {
		o.NumServer = atoiOr(v, o.NumServer)
	}
	if v, ok := os.LookupEnv("JOB_ID"); ok {
		o.JobID = v
	}
	if v, ok := os.LookupEnv("PARTITION_BYTES"); ok {
		o.PartitionBytes = atoi64Or(v, o.PartitionBytes)
	}
	if v, ok := os.LookupEnv("ALLTOALL_BUFF_BYTES"); ok {
		o.AlltoallBuffBytes = atoi64Or(v, o.AlltoallBuffBytes)
	}
	if v, ok := os.LookupEnv("ALLTOALL_MEM_FACTOR"); ok {
		o.AlltoallMemFactor = atofOr(v, o.AlltoallMemFactor)
	}
	if v, ok := os.LookupEnv("ALLTOALL_SESSION_SIZE"); ok {
		o.AlltoallSessionSize = atoiOr(v, o.AlltoallSessionSize)
	}
	if v, ok := os.LookupEnv("ALLTOALL_COPY_GROUP_SIZE"); ok {
		o.AlltoallCopyGroupSize = atoiOr(v, o.AlltoallCopyGroupSize)
	}
	if v, ok := os.LookupEnv("MIN_COMPRESS_BYTES"); ok {
		o.MinCompressBytes = atoi64Or(v, o.MinCompressBytes)
	}
	if v, ok := os.LookupEnv("KEY_HASH_FN"); ok && v != "" {
		o.KeyHashFn = keycodec.HashFn(v)
	}
	if v, ok := os.LookupEnv("BYTEPS_MIXED_MODE_BOUND"); ok {
		o.MixedModeBound = atoiOr(v, o.MixedModeBound)
	}
	if v, ok := os.LookupEnv("REDUCE_ROOTS"); ok && v != "" {
		o.ReduceRoots = parseIntList(v)
	}
	if v, ok := os.LookupEnv("GDR_ALLREDUCE_LEVEL"); ok {
		switch atoiOr(v, 0) {
		case 1:
			o.GDRAllreduceLevel = GDRLevelV1
		case 2:
			o.GDRAllreduceLevel = GDRLevelV2
		default:
			o.GDRAllreduceLevel = GDRLevelNone
		}
	}
	if v, ok := os.LookupEnv("GDR_PHASE1_TENSOR_THRESH"); ok {
		o.GDRPhase1TensorThresh = atoi64Or(v, o.GDRPhase1TensorThresh)
	}
	if v, ok := os.LookupEnv("GDR_PHASE2_TENSOR_THRESH"); ok {
		o.GDRPhase2TensorThresh = atoi64Or(v, o.GDRPhase2TensorThresh)
	}
	o.UseGDRAllreduce = boolEnv("USE_GDR_ALLREDUCE", false)
	o.UseGDRAllgather = boolEnv("USE_GDR_ALLGATHER", false)
	o.DisablePushPull = boolEnv("DISABLE_PUSH_PULL", false)
	o.DisableAlltoall = boolEnv("DISABLE_ALLTOALL", false)
	o.DisableAllgather = boolEnv("DISABLE_ALLGATHER", false)
	o.TraceOn = boolEnv("TRACE_ON", false)
	if v, ok := os.LookupEnv("TRACE_START_STEP"); ok {
		o.TraceStartStep = atoiOr(v, o.TraceStartStep)
	}
	if v, ok := os.LookupEnv("TRACE_END_STEP"); ok {
		o.TraceEndStep = atoiOr(v, o.TraceEndStep)
	}
	if v, ok := os.LookupEnv("TRACE_DIR"); ok {
		o.TraceDir = v
	}
	if v, ok := os.LookupEnv("DEBUG_SAMPLE_TENSOR"); ok {
		o.DebugSampleTensor = v
	}

	// spec §6's GDR phase thresholds are meant as an ascending pair; a
	// misconfigured environment (phase1 > phase2) would otherwise make
	// gdrLevelForSize's phase-2 check unreachable.
	if o.GDRPhase1TensorThresh > o.GDRPhase2TensorThresh {
		o.GDRPhase1TensorThresh, o.GDRPhase2TensorThresh = o.GDRPhase2TensorThresh, o.GDRPhase1TensorThresh
	}

	return o
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}

func atoi64Or(s string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func atofOr(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fallback
	}
	return f
}

func boolEnv(name string, fallback bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func parseIntList(s string) []int {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
