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
	"encoding/base64"
	"fmt"
	"strconv"

	"distcomm/internal/status"
)

// pushLuaScript overwrites the value at KEYS[1] with ARGV[1] unconditionally
// on push (unlike the counter-commit script in internal/ratelimiter/persistence,
// a PS push is a full overwrite, not a delta) but is still safe to retry:
// re-pushing the same bytes is a no-op observationally.
const pushLuaScript = `
redis.call('SET', KEYS[1], ARGV[1])
return 1
`

// Redis is a PSClient backed by an evaler that can run Lua scripts and
// issue GETs, grounded on persistence.RedisPersister's Lua-scripted
// idempotent-write shape.
type Redis struct {
	client RedisEvaler
}

// NewRedis constructs a Redis-backed PSClient.
func NewRedis(client RedisEvaler) *Redis {
	return &Redis{client: client}
}

func redisDataKey(key uint64) string {
	return fmt.Sprintf("pskey:%s", strconv.FormatUint(key, 10))
}

func (r *Redis) Push(ctx context.Context, key uint64, data []byte) *status.Status {
	encoded := base64.StdEncoding.EncodeToString(data)
	if _, err := r.client.Eval(ctx, pushLuaScript, []string{redisDataKey(key)}, encoded); err != nil {
		return status.FromCollaborator("redis push", err)
	}
	return nil
}

func (r *Redis) Pull(ctx context.Context, key uint64, length int) ([]byte, *status.Status) {
	v, err := r.client.Get(ctx, redisDataKey(key))
	if err != nil {
		return nil, status.FromCollaborator("redis pull", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, status.Wrap(status.DataLoss, "redis value not valid base64", err)
	}
	if length > 0 && len(decoded) != length {
		return nil, status.New(status.DataLoss, "pulled length mismatch")
	}
	return decoded, nil
}
