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

package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ledgerMetrics struct {
	height            prometheus.Gauge
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	txnConflicts      prometheus.Counter
	proposalsOpen     prometheus.Gauge
	payoutsTotal      *prometheus.CounterVec
}

func (m *ledgerMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.height = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "ballot_ledger_height",
		Help: "number of committed ledger transitions",
	})
	m.operationsTotal = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballot_ledger_operations_total",
			Help: "ledger operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	m.operationDuration = promautoFactory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ballot_ledger_operation_duration_seconds",
			Help:    "latency of ledger operations including retries",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15), // 100us to ~1.6s
		},
		[]string{"operation"},
	)
	m.txnConflicts = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "ballot_ledger_txn_conflicts_total",
		Help: "ledger transactions retried after a commit conflict",
	})
	m.proposalsOpen = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "ballot_ledger_proposals_open",
		Help: "proposals created and not yet finalized",
	})
	m.payoutsTotal = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballot_ledger_payout_amount_total",
			Help: "total value paid out of reward pools by kind",
		},
		[]string{"kind"},
	)
}
