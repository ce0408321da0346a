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

package timelock

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type timelockMetrics struct {
	queued    prometheus.Gauge
	queue     prometheus.Counter
	cancelled prometheus.Counter
	executed  prometheus.Counter
}

func (t *Timelock) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	labels := prometheus.Labels{"timelock": t.name}
	t.metrics = &timelockMetrics{
		queued: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name:        "timelock_queued_entries",
			Help:        "entries currently waiting in the timelock queue",
			ConstLabels: labels,
		}),
		queue: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name:        "timelock_queue_total",
			Help:        "total entries queued",
			ConstLabels: labels,
		}),
		cancelled: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name:        "timelock_cancel_total",
			Help:        "total entries cancelled",
			ConstLabels: labels,
		}),
		executed: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name:        "timelock_execute_total",
			Help:        "total entries executed",
			ConstLabels: labels,
		}),
	}
}
