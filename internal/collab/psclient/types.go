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

// Package psclient provides demo/test-grade backends implementing
// collab.PSClient: an in-memory mock, a Redis-backed adapter, and a
// Kafka-backed adapter modeling asynchronous send. All three are
// idempotent-on-retry the way internal/ratelimiter/persistence's
// adapters are. StageWorker itself never retries a failed Push: it
// hands the failure to its ErrHandler and drops the task.
package psclient

import "context"

// RedisEvaler abstracts the minimal client surface the Redis adapter needs so
// tests can substitute a logging stand-in without pulling in a real
// broker or database, mirroring persistence.RedisEvaler/KafkaProducer.
type RedisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
	Get(ctx context.Context, key string) (string, error)
}

// KafkaProducer is the minimal send-side surface a Kafka-backed PSClient
// needs. Intentionally narrow, the same way the teacher avoids importing
// a specific Kafka client library.
type KafkaProducer interface {
	Produce(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error
}
