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
	"errors"
	"fmt"

	"distcomm/internal/collab"
)

// Options configures Build's demo/test-grade PSClient backends.
type Options struct {
	RedisAddr  string
	KafkaTopic string
}

// Build constructs a collab.PSClient for the named adapter:
//   - "" or "mock": in-process map, the default for tests.
//   - "redis": Lua-scripted overwrite via go-redis when RedisAddr is set,
//     otherwise a dependency-free logging fake that still round-trips.
//   - "kafka": produces to a logging producer and serves Pull from its own
//     local delivery buffer (no real broker required).
//   - "postgres": deliberately unsupported here — construct psclient.NewPostgres
//     directly with a real *sql.DB if you need it, the same way
//     persistence.BuildPersister refuses to hand back a nil-backed adapter.
func Build(adapter string, opts Options) (collab.PSClient, error) {
	switch adapter {
	case "", "mock":
		return NewMock(), nil
	case "redis":
		if opts.RedisAddr != "" {
			return NewRedis(NewGoRedisEvaler(opts.RedisAddr)), nil
		}
		return NewRedis(NewLoggingRedisEvaler()), nil
	case "kafka":
		topic := opts.KafkaTopic
		if topic == "" {
			topic = "distcomm-ps"
		}
		return NewKafka(LoggingKafkaProducer{}, topic), nil
	case "postgres":
		return nil, errors.New("postgres PSClient is not built by Build; construct psclient.NewPostgres with a real *sql.DB")
	default:
		return nil, fmt.Errorf("unknown psclient adapter: %s", adapter)
	}
}
