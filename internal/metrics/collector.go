// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package metrics collects operational counters for a tom-node process,
// backed by github.com/prometheus/client_golang. Only the internal/node
// wiring records metrics (runtime.State stays I/O-free); this mirrors
// the teacher's internal/metrics collector shape, swapped from a
// hand-rolled in-memory snapshot to real Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles every metric a tom-node instance records.
type Collector struct {
	RelayCount       prometheus.Counter
	BytesRelayed     prometheus.Counter
	BackupStored     prometheus.Counter
	BackupReplicas   prometheus.Gauge
	BackupDeliveries prometheus.Counter
	RolePromotions   prometheus.Counter
	RoleDemotions    prometheus.Counter
	GroupElections   prometheus.Counter
}

// NewCollector registers every metric against reg and returns the bundle.
// Passing prometheus.NewRegistry() isolates metrics per test; passing
// prometheus.DefaultRegisterer matches the teacher's process-wide usage.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		RelayCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "tom_relay_count_total",
			Help: "Total envelopes this node has relayed toward another peer.",
		}),
		BytesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "tom_bytes_relayed_total",
			Help: "Total wire bytes relayed.",
		}),
		BackupStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "tom_backup_entries_stored_total",
			Help: "Total backup entries this node has accepted for storage.",
		}),
		BackupReplicas: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tom_backup_replicas_current",
			Help: "Current number of backup entries held by this node.",
		}),
		BackupDeliveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "tom_backup_deliveries_total",
			Help: "Total backup entries this node has delivered to their recipient.",
		}),
		RolePromotions: factory.NewCounter(prometheus.CounterOpts{
			Name: "tom_role_promotions_total",
			Help: "Total Peer-to-Relay promotions observed (self and remote).",
		}),
		RoleDemotions: factory.NewCounter(prometheus.CounterOpts{
			Name: "tom_role_demotions_total",
			Help: "Total Relay-to-Peer demotions observed (self and remote).",
		}),
		GroupElections: factory.NewCounter(prometheus.CounterOpts{
			Name: "tom_group_hub_elections_total",
			Help: "Total group hub elections this node has participated in.",
		}),
	}
}

// Handler returns the HTTP handler to mount at the configured metrics
// path (config.MetricsConfig.Path).
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

var (
	globalRegistry  = prometheus.NewRegistry()
	globalCollector = NewCollector(globalRegistry)
)

// Global returns the process-wide Collector, registered against its own
// dedicated registry (not prometheus.DefaultRegisterer, so tests that
// import this package don't collide with each other or with an embedder's
// own default registry).
func Global() *Collector { return globalCollector }

// GlobalRegistry returns the registry Global's metrics are registered
// against, for mounting Handler.
func GlobalRegistry() *prometheus.Registry { return globalRegistry }
