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
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// LoggingRedisEvaler is a dependency-free stand-in that logs instead of
// talking to a real Redis server, letting the demo binary select the
// Redis-backed adapter without infrastructure.
type LoggingRedisEvaler struct {
	store map[string]string
}

// NewLoggingRedisEvaler constructs a self-contained fake honoring Eval/Get
// against its own map, so Push-then-Pull round-trips even without Redis.
func NewLoggingRedisEvaler() *LoggingRedisEvaler {
	return &LoggingRedisEvaler{store: make(map[string]string)}
}

func (l *LoggingRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if len(keys) == 1 && len(args) == 1 {
		if v, ok := args[0].(string); ok {
			l.store[keys[0]] = v
		}
	}
	fmt.Printf("[psclient-redis-demo] EVAL KEYS=%v\n", keys)
	return int64(1), nil
}

func (l *LoggingRedisEvaler) Get(ctx context.Context, key string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	v, ok := l.store[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

// GoRedisEvaler wraps a real github.com/redis/go-redis/v9 client.
type GoRedisEvaler struct{ c *redis.Client }

// NewGoRedisEvaler dials addr with default options.
func NewGoRedisEvaler(addr string) *GoRedisEvaler {
	return &GoRedisEvaler{c: redis.NewClient(&redis.Options{Addr: addr})}
}

func (g *GoRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return g.c.Eval(ctx, script, keys, args...).Result()
}

func (g *GoRedisEvaler) Get(ctx context.Context, key string) (string, error) {
	return g.c.Get(ctx, key).Result()
}

// LoggingKafkaProducer is a dependency-free stand-in for a real Kafka
// client, logging produced messages instead of shipping them to a
// broker.
type LoggingKafkaProducer struct{}

func (LoggingKafkaProducer) Produce(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	fmt.Printf("[psclient-kafka-demo] TOPIC=%s KEY=%s LEN=%d\n", topic, string(key), len(value))
	return nil
}
