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

package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type managerMetrics struct {
	proposed   prometheus.Counter
	approvals  prometheus.Counter
	queued     prometheus.Counter
	executed   prometheus.Counter
	rolledBack prometheus.Counter
	cancelled  prometheus.Counter
}

func (m *Manager) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	labels := prometheus.Labels{"manager": m.name}
	counter := func(name, help string) prometheus.Counter {
		return promautoFactory.NewCounter(prometheus.CounterOpts{
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	m.metrics = &managerMetrics{
		proposed:   counter("manager_proposals_total", "total proposals created"),
		approvals:  counter("manager_approvals_total", "total distinct approvals recorded"),
		queued:     counter("manager_queued_total", "total proposals that reached quorum and were queued"),
		executed:   counter("manager_executed_total", "total proposals executed successfully"),
		rolledBack: counter("manager_rolled_back_total", "total executions rolled back after a failed migration"),
		cancelled:  counter("manager_cancelled_total", "total proposals cancelled"),
	}
}
