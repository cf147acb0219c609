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

package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type indexerMetrics struct {
	height       prometheus.Gauge
	eventsTotal  *prometheus.CounterVec
	gapsTotal    prometheus.Counter
	reindexTotal prometheus.Counter
}

func (m *indexerMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.height = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "ballot_index_height",
		Help: "last ledger height applied to the index",
	})
	m.eventsTotal = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballot_index_events_total",
			Help: "ledger events indexed by action",
		},
		[]string{"action"},
	)
	m.gapsTotal = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "ballot_index_gaps_total",
		Help: "gaps in ledger events that forced a rebuild",
	})
	m.reindexTotal = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "ballot_index_rebuilds_total",
		Help: "full index rebuilds",
	})
}
