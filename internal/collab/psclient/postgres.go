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
	"database/sql"

	"distcomm/internal/status"
)

// Postgres schema (reference):
//
// CREATE TABLE IF NOT EXISTS ps_keys (
//   key TEXT PRIMARY KEY,
//   data BYTEA NOT NULL,
//   updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
// );
//
// A Push is `INSERT ... ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data`;
// a Pull is a plain SELECT. Both are naturally idempotent.

// Postgres is a PSClient backed by a *sql.DB. It is constructed but
// never wired into the factory's default set, matching
// persistence.BuildPersister's own precedent of refusing to hand back a
// "postgres" adapter rather than risk a nil *sql.DB — see DESIGN.md.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a Postgres-backed PSClient. Callers that want
// this backend must construct it directly; Build (factory.go) never
// selects it automatically.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Push(ctx context.Context, key uint64, data []byte) *status.Status {
	keyStr := formatKey(key)
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO ps_keys(key, data) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		keyStr, data)
	if err != nil {
		return status.FromCollaborator("postgres push", err)
	}
	return nil
}

func (p *Postgres) Pull(ctx context.Context, key uint64, length int) ([]byte, *status.Status) {
	keyStr := formatKey(key)
	var data []byte
	err := p.db.QueryRowContext(ctx, `SELECT data FROM ps_keys WHERE key = $1`, keyStr).Scan(&data)
	if err != nil {
		return nil, status.FromCollaborator("postgres pull", err)
	}
	if length > 0 && len(data) != length {
		return nil, status.New(status.DataLoss, "pulled length mismatch")
	}
	return data, nil
}

func formatKey(key uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[key&0xf]
		key >>= 4
	}
	return string(buf)
}
