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

package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type proxyMetrics struct {
	version   prometheus.Gauge
	upgrades  prometheus.Counter
	rollbacks prometheus.Counter
	invokes   prometheus.Counter
}

func (p *Proxy) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	labels := prometheus.Labels{"target": p.target}
	p.metrics = &proxyMetrics{
		version: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name:        "proxy_version",
			Help:        "current implementation version of the proxy",
			ConstLabels: labels,
		}),
		upgrades: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name:        "proxy_upgrade_total",
			Help:        "total implementation upgrades",
			ConstLabels: labels,
		}),
		rollbacks: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name:        "proxy_rollback_total",
			Help:        "total implementation rollbacks",
			ConstLabels: labels,
		}),
		invokes: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name:        "proxy_invoke_total",
			Help:        "total calls forwarded to the implementation",
			ConstLabels: labels,
		}),
	}
}
