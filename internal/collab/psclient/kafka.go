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

package psclient

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"distcomm/internal/status"
)

// message is the serialized payload produced for one push, grounded on
// persistence.KafkaPersister's CommitMessage shape.
type message struct {
	Key      string `json:"key"`
	Data     []byte `json:"data"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}

// Kafka is a PSClient backed by a message-queue producer, modeling
// asynchronous P2P send/recv the way the teacher's KafkaPersister models
// asynchronous commit propagation: Push enqueues, and a local delivery
// buffer plays the role of the eventual consumer so Pull can observe
// what was sent without a real broker round-trip in tests.
type Kafka struct {
	producer KafkaProducer
	topic    string
	timeout  time.Duration

	mu       sync.Mutex
	delivered map[uint64][]byte
}

// NewKafka constructs a Kafka-backed PSClient publishing to topic.
func NewKafka(producer KafkaProducer, topic string) *Kafka {
	return &Kafka{
		producer:  producer,
		topic:     topic,
		timeout:   10 * time.Second,
		delivered: make(map[uint64][]byte),
	}
}

func (k *Kafka) Push(ctx context.Context, key uint64, data []byte) *status.Status {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok && k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}

	keyStr := strconv.FormatUint(key, 10)
	msg := message{Key: keyStr, Data: data, TsUnixMs: time.Now().UnixMilli()}
	b, err := json.Marshal(msg)
	if err != nil {
		return status.Wrap(status.Unknown, "marshal kafka message", err)
	}
	if err := k.producer.Produce(ctx, k.topic, []byte(keyStr), b, nil); err != nil {
		return status.FromCollaborator("kafka produce", err)
	}

	k.mu.Lock()
	k.delivered[key] = append([]byte(nil), data...)
	k.mu.Unlock()
	return nil
}

// Pull reads from the local delivery buffer filled by Push. A real
// deployment would consume from the broker instead; this in-process
// shortcut keeps the Kafka backend testable without a running cluster,
// consistent with spec's Non-goals excluding real PS transport here.
func (k *Kafka) Pull(ctx context.Context, key uint64, length int) ([]byte, *status.Status) {
	select {
	case <-ctx.Done():
		return nil, status.Wrap(status.Aborted, "pull canceled", ctx.Err())
	default:
	}
	k.mu.Lock()
	v, ok := k.delivered[key]
	k.mu.Unlock()
	if !ok {
		return nil, status.New(status.DataLoss, "no message delivered for key")
	}
	if length > 0 && len(v) != length {
		return nil, status.New(status.DataLoss, "pulled length mismatch")
	}
	return append([]byte(nil), v...), nil
}
