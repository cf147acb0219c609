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

package badger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const badgerMetricNamePrefix = "database_blob_"

type blobMetrics struct {
	commitsTotal   prometheus.Counter
	conflictsTotal prometheus.Counter
}

func (d *BlobStoreBadger) registerBlobMetrics() {
	factory := promauto.With(d.promRegistry)
	d.metrics = &blobMetrics{
		commitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: badgerMetricNamePrefix + "commits_total",
				Help: "Total number of committed read-write blob transactions",
			},
		),
		conflictsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: badgerMetricNamePrefix + "conflicts_total",
				Help: "Total number of blob transactions rejected on commit due to conflicts",
			},
		),
	}
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: badgerMetricNamePrefix + "lsm_size_bytes",
			Help: "Size of the badger LSM tree",
		},
		func() float64 {
			lsm, _ := d.DB().Size()
			return float64(lsm)
		},
	)
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: badgerMetricNamePrefix + "vlog_size_bytes",
			Help: "Size of the badger value log",
		},
		func() float64 {
			_, vlog := d.DB().Size()
			return float64(vlog)
		},
	)
}
