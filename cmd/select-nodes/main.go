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

// select-nodes is a demo CLI driving the selection core over a JSON
// scenario file: a cluster of nodes plus a job request. The core itself
// defines no wire format or CLI (spec.md §6); this binary exists only to
// exercise pkg/selectcore end to end, the same role
// cmd/plugins/topology-aware plays for pkg/cpuallocator in the teacher.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/nri-plugins/node-select/pkg/gres"
	logger "github.com/nri-plugins/node-select/pkg/log"
	"github.com/nri-plugins/node-select/pkg/metrics"
	"github.com/nri-plugins/node-select/pkg/nodeset"
	"github.com/nri-plugins/node-select/pkg/nodetable"
	"github.com/nri-plugins/node-select/pkg/selectcore"
	"github.com/nri-plugins/node-select/pkg/topology"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = logger.Get("select-nodes")

// scenario is the flat JSON shape a caller hands this CLI: a candidate
// cluster plus one job request. It is deliberately simpler than
// EvalContext: main.go's job is to translate it, not to expose the core's
// internal data model as a wire format.
type scenario struct {
	Nodes []struct {
		Name           string `json:"name"`
		SchedWeight    uint64 `json:"sched_weight"`
		CPUs           int    `json:"cpus"`
		Cores          int    `json:"cores"`
		ThreadsPerCore int    `json:"threads_per_core"`
		TotCores       int    `json:"tot_cores"`
		TotSockets     int    `json:"tot_sockets"`
		Boards         int    `json:"boards"`
		AvailCPUs      int    `json:"avail_cpus"`
		MaxCPUs        int    `json:"max_cpus"`
	} `json:"nodes"`

	Job struct {
		MinCPUs        int64  `json:"min_cpus"`
		MaxCPUs        *int64 `json:"max_cpus,omitempty"`
		RequiredNodes  []int  `json:"required_nodes,omitempty"`
		MinNodes       int    `json:"min_nodes"`
		ReqNodes       int    `json:"req_nodes"`
		MaxNodes       int    `json:"max_nodes"`
		NumTasks       int    `json:"num_tasks,omitempty"`
		CPUsPerTask    int    `json:"cpus_per_task,omitempty"`
		WholeNode      bool   `json:"whole_node,omitempty"`
		Contiguous     bool   `json:"contiguous,omitempty"`
		SpreadJob      bool   `json:"spread_job,omitempty"`
		ReqSwitchCount *int   `json:"req_switch_count,omitempty"`
	} `json:"job"`

	Candidates []int `json:"candidates,omitempty"`
}

func main() {
	scenarioPath := flag.String("scenario", "", "Path to a JSON scenario file.")
	debug := flag.Bool("debug", false, "Enable debug logging.")
	metricsAddr := flag.String("metrics-listen", "", "If set, serve Prometheus metrics on this address after the evaluation, until the process is stopped.")
	flag.Parse()

	if *debug {
		logger.SetLevel(logger.LevelDebug)
	}

	if *scenarioPath == "" {
		log.Fatal("missing required -scenario flag")
	}

	sc, err := loadScenario(*scenarioPath)
	if err != nil {
		log.Fatal("failed to load scenario: %v", err)
	}

	ctx := sc.toEvalContext()
	result, err := selectcore.EvalNodes(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "selection failed: %v\n", err)
		os.Exit(1)
	}

	printResult(ctx, result)

	if *metricsAddr != "" {
		http.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
		log.Info("serving metrics on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			log.Fatal("metrics server failed: %v", err)
		}
	}
}

func loadScenario(path string) (*scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &sc, nil
}

func (sc *scenario) toEvalContext() *selectcore.EvalContext {
	nodes := make([]nodetable.Node, len(sc.Nodes))
	avail := make([]nodetable.AvailRes, len(sc.Nodes))
	availCore := make([]nodeset.NodeSet, len(sc.Nodes))

	for i, n := range sc.Nodes {
		nodes[i] = nodetable.Node{
			Name:           n.Name,
			SchedWeight:    n.SchedWeight,
			CPUs:           n.CPUs,
			Cores:          n.Cores,
			ThreadsPerCore: n.ThreadsPerCore,
			TotCores:       n.TotCores,
			TotSockets:     n.TotSockets,
			Boards:         n.Boards,
		}
		avail[i] = nodetable.AvailRes{
			AvailCPUs: n.AvailCPUs,
			MaxCPUs:   n.MaxCPUs,
		}
		availCore[i] = nodeset.Range(0, n.CPUs)
	}

	candidates := sc.Candidates
	if len(candidates) == 0 {
		candidates = make([]int, len(nodes))
		for i := range nodes {
			candidates[i] = i
		}
	}

	job := &selectcore.Job{
		MinCPUs:        sc.Job.MinCPUs,
		MaxCPUs:        sc.Job.MaxCPUs,
		MinNodes:       sc.Job.MinNodes,
		ReqNodes:       sc.Job.ReqNodes,
		MaxNodes:       sc.Job.MaxNodes,
		NumTasks:       sc.Job.NumTasks,
		CPUsPerTask:    sc.Job.CPUsPerTask,
		WholeNode:      sc.Job.WholeNode,
		Contiguous:     sc.Job.Contiguous,
		SpreadJob:      sc.Job.SpreadJob,
		ReqSwitchCount: sc.Job.ReqSwitchCount,
	}
	if len(sc.Job.RequiredNodes) > 0 {
		job.HasRequiredNodes = true
		job.RequiredNodes = nodeset.New(sc.Job.RequiredNodes...)
	}

	return &selectcore.EvalContext{
		Job:         job,
		Nodes:       nodes,
		NodeMap:     nodeset.New(candidates...),
		AvailCore:   availCore,
		AvailRes:    avail,
		MinNodes:    sc.Job.MinNodes,
		ReqNodes:    sc.Job.ReqNodes,
		MaxNodes:    sc.Job.MaxNodes,
		CPUsPerCore: 1,
		GRES:        gres.None{},
		CoreFilter:  gres.None{},
		Switches:    &topology.Table{},
		Blocks:      &topology.BlockTable{},
		Log:         log,
	}
}

func printResult(ctx *selectcore.EvalContext, result *selectcore.Result) {
	type nodeOut struct {
		Name      string `json:"name"`
		AvailCPUs int    `json:"avail_cpus"`
	}
	out := struct {
		Strategy   string    `json:"strategy"`
		BestSwitch bool      `json:"best_switch"`
		Selected   []nodeOut `json:"selected"`
	}{
		Strategy:   result.Strategy,
		BestSwitch: result.BestSwitch,
	}

	nodeset.ForEach(result.NodeMap, func(idx int) {
		out.Selected = append(out.Selected, nodeOut{
			Name:      ctx.Nodes[idx].Name,
			AvailCPUs: ctx.AvailRes[idx].AvailCPUs,
		})
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal("failed to encode result: %v", err)
	}
}
