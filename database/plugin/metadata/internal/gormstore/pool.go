// Copyright 2026 Blink Labs Software
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

package gormstore

import (
	"database/sql"
	"time"
)

// DefaultMaxConnections caps open connections to a networked database
const DefaultMaxConnections = 100

const maxIdleConnections = 10

// PoolLimits returns the open and idle connection caps for maxConns. Zero or
// less selects DefaultMaxConnections
func PoolLimits(maxConns int) (int, int) {
	if maxConns <= 0 {
		maxConns = DefaultMaxConnections
	}
	return maxConns, min(maxIdleConnections, maxConns)
}

// ConfigurePool applies PoolLimits to a connection pool
func ConfigurePool(db *sql.DB, maxConns int) {
	maxOpen, maxIdle := PoolLimits(maxConns)
	db.SetMaxIdleConns(maxIdle)
	db.SetMaxOpenConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)
}
