// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package metrics exposes execution counters for observability. None of the
// values are part of any contract; they only feed dashboards.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the counters of the execution substrate.
type Metrics struct {
	// EffectiveGas is the accumulated conflict-scaled gas per execution
	// mode.
	EffectiveGas *prometheus.CounterVec
	// CommittedTxns counts committed transactions per execution mode.
	CommittedTxns *prometheus.CounterVec
	// EarlyHalts counts blocks ended by a gas or output limit before all
	// transactions were admitted.
	EarlyHalts *prometheus.CounterVec
	// RemoteCommits counts cross-shard commit messages applied per shard.
	RemoteCommits *prometheus.CounterVec
}

// New creates the metric set and registers it with the given registerer.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		EffectiveGas: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execution_effective_gas_total",
				Help: "Accumulated effective gas of committed transactions.",
			},
			[]string{"mode"},
		),
		CommittedTxns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execution_committed_txns_total",
				Help: "How many transactions have been committed.",
			},
			[]string{"mode"},
		),
		EarlyHalts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execution_early_halts_total",
				Help: "How many blocks were ended early by a block limit.",
			},
			[]string{"mode"},
		),
		RemoteCommits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execution_remote_commits_total",
				Help: "How many cross-shard commit messages were applied.",
			},
			[]string{"shard_id"},
		),
	}
	registerer.MustRegister(m.EffectiveGas, m.CommittedTxns, m.EarlyHalts, m.RemoteCommits)
	return m
}

// NewUnregistered creates a metric set on a private registry, mainly for
// tests and tools that do not export metrics.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
