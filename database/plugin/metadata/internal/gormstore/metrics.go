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
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics exposes connection pool stats for the metadata database
func (s *Store) RegisterMetrics(reg prometheus.Registerer) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "database_metadata_open_connections",
				Help: "number of established connections to the metadata database",
			},
			func() float64 {
				return float64(sqlDB.Stats().OpenConnections)
			},
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "database_metadata_in_use_connections",
				Help: "number of metadata database connections currently in use",
			},
			func() float64 {
				return float64(sqlDB.Stats().InUse)
			},
		),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
