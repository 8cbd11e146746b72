// Copyright The NRI Plugins Authors. All Rights Reserved.
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

// Package metrics instruments the selection core for operational
// visibility. None of it feeds back into selection: spec.md §6 is explicit
// that debug_flags/instrumentation must stay "side-effect-free to
// selection", and that holds here too. This is a narrowed-down version of
// the teacher's pkg/metrics Collector/Registry machinery (which also polls
// long-lived per-container gauges across a running daemon); a single
// synchronous eval_nodes call only needs direct counters/histograms, so we
// register prometheus collectors straight into a package-local registry
// rather than carry the polling abstraction.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "node_select"

var (
	registry = prometheus.NewRegistry()

	// Calls counts eval_nodes invocations by strategy and outcome.
	Calls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "eval_nodes_calls_total",
		Help:      "Number of eval_nodes calls by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	// SelectedNodes observes how many nodes a successful call selected.
	SelectedNodes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "selected_nodes",
		Help:      "Number of nodes selected by successful eval_nodes calls.",
		Buckets:   prometheus.LinearBuckets(1, 4, 8),
	})

	// LeafSwitchesUsed observes how many leaf switches/blocks a topology
	// strategy's successful selection spanned.
	LeafSwitchesUsed = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "leaf_domains_used",
		Help:      "Number of leaf switches or base blocks used by a successful topology-constrained selection.",
		Buckets:   prometheus.LinearBuckets(1, 1, 8),
	})

	// TopoRetries counts topo strategy retry-on-overshoot iterations.
	TopoRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "topo_retries_total",
		Help:      "Number of times the topo strategy relaxed req_nodes and retried after a leaf-switch overshoot.",
	})
)

func init() {
	registry.MustRegister(Calls, SelectedNodes, LeafSwitchesUsed, TopoRetries)
}

// Registry returns the prometheus.Gatherer backing this package's metrics,
// for a caller (e.g. cmd/select-nodes) to expose over /metrics.
func Registry() prometheus.Gatherer {
	return registry
}
