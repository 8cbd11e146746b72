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

// Package selectcore is the node-selection core: given a job's resource
// request and a bitmap of candidate nodes, eval_nodes picks a subset of
// nodes (and a CPU count on each) honoring topology, weight, and GRES
// constraints (spec.md §1-§2).
//
// The package is synchronous and single-threaded per call (spec.md §5): it
// performs no I/O, starts no goroutines, and is a pure function of the
// EvalContext it is given, aside from advisory mutation of that context.
package selectcore

import (
	"time"

	"github.com/nri-plugins/node-select/pkg/gres"
	logger "github.com/nri-plugins/node-select/pkg/log"
	"github.com/nri-plugins/node-select/pkg/nodeset"
	"github.com/nri-plugins/node-select/pkg/nodetable"
	"github.com/nri-plugins/node-select/pkg/topology"
)

var log = logger.Get("selectcore")

// CRFlags are the select_type_param bits spec.md §3/§6 describes.
type CRFlags uint

const (
	// CRSocket makes cpus_to_use reserve a socket's worth of cores
	// (Node.Cores) for each node still to be picked, instead of one core.
	CRSocket CRFlags = 1 << iota
	// CRLLN routes a request to the lln strategy when no earlier dispatch
	// rule (block, spread, busy) matches.
	CRLLN
	// CROneTaskPerCore sets avail_cpus to the number of candidate cores.
	CROneTaskPerCore
)

// Unbounded stands in for "no task-count ceiling" (spec.md §9: "retain a
// literal sentinel only for distances/counts where saturation is
// meaningful"); task counts saturate rather than wrap.
const Unbounded = 1 << 30

// Job is the resource request being scheduled (spec.md §3 "job").
// Optional fields absent from the request are nil, following spec.md §9's
// guidance to model NO_VAL/INFINITE as option types.
type Job struct {
	// JobID identifies the job for gres.Scheduler.Test and logging only.
	JobID string

	// MinCPUs is the job's required CPU count (min_cpus).
	MinCPUs int64
	// MaxCPUs caps the total CPUs charged to the job across all selected
	// nodes, if set.
	MaxCPUs *int64

	// RequiredNodes is the job's explicitly named node set, if any.
	// Every required node must end selected or the call fails.
	RequiredNodes nodeset.NodeSet
	// HasRequiredNodes distinguishes "no required nodes" from "required
	// nodes is the empty set", since NodeSet itself cannot be nil.
	HasRequiredNodes bool

	// ReqSwitchCount is the job's requested leaf-switch/block count, if
	// set (req_switch).
	ReqSwitchCount *int
	// Wait4Switch is how long the job is willing to wait for a better
	// topology fit: while TimeWaiting is below it, a topology selection that
	// uses more leaf switches than requested reports best_switch false.
	Wait4Switch time.Duration

	// PerNodeMinCPUs gives a per-node CPU floor (pn_min_cpus), keyed by
	// node index, when the job set one.
	PerNodeMinCPUs map[int]int
	// ArbitraryTPN gives a required per-node CPU override consumed only
	// by consec's absorption pass (spec.md §4.4, and the Open Question in
	// spec.md §9 about its scope).
	ArbitraryTPN map[int]int

	// MinGRESCPU is the GRES-induced per-node CPU minimum (min_gres_cpu),
	// if the GRES request carries one.
	MinGRESCPU *int64
	// MinJobGRESCPU is the GRES-induced aggregate CPU minimum
	// (min_job_gres_cpu), if the GRES request carries one.
	MinJobGRESCPU *int64
	// GRESRequest is passed opaquely to the gres.Scheduler.
	GRESRequest gres.Request

	// WholeNode, if set, charges a selected node's entire CPU count to the
	// job rather than trimming (cpus_to_use's short-circuit).
	WholeNode bool
	// Contiguous requires every required node, and the final selection for
	// locality-constrained strategies, to lie within one run/domain.
	Contiguous bool
	// Overcommit disables capping per-node task counts by avail_cpus /
	// cpus_per_task.
	Overcommit bool

	// NumTasks is the job's total task count (num_tasks).
	NumTasks int
	// NTasksPerNode, NTasksPerBoard, NTasksPerSocket, NTasksPerCore, and
	// NTasksPerTRES are the ntasks_per_* multicore-layout constraints, in
	// the priority order select_cores applies them (spec.md §4.1). Zero
	// means unset.
	NTasksPerNode   int
	NTasksPerBoard  int
	NTasksPerSocket int
	NTasksPerCore   int
	NTasksPerTRES   int
	// CPUsPerTask is cpus_per_task.
	CPUsPerTask int

	// MinNodes, ReqNodes, and MaxNodes are the request's node-count bounds
	// (min_nodes, the preferred req_nodes, and max_nodes).
	MinNodes int
	ReqNodes int
	MaxNodes int

	// SpreadJob routes the request to the spread strategy (spec.md §4.2
	// rule 2).
	SpreadJob bool
}

// MulticoreLayout mirrors spec.md's mc_ptr: the resolved per-task CPU
// layout request, cached on the EvalContext for the duration of a call.
type MulticoreLayout struct {
	CPUsPerTask     int
	NTasksPerNode   int
	NTasksPerBoard  int
	NTasksPerSocket int
	NTasksPerCore   int
}

// Tunables are the configuration-derived switches spec.md §6 says are
// cached once per process, not re-read on every call. spec.md §9 models
// the historical "one-shot set flag" as a lazily-initialized struct on the
// context; Tunables is that struct.
type Tunables struct {
	// PackSerialAtEnd enables the serial strategy gate (sched_params
	// pack_serial_at_end).
	PackSerialAtEnd bool
	// HaveDragonfly routes switch-topology requests to dfly instead of
	// topo (topology_param dragonfly).
	HaveDragonfly bool
	// TopoOptional limits the switch-topology strategies to requests that
	// explicitly asked for a switch count (topology_param TopoOptional).
	TopoOptional bool
}

// Result is eval_nodes' return value: the selection plus the advisory
// best_switch flag and (for logging/tests only) which strategy ran.
type Result struct {
	// NodeMap is the selected node subset.
	NodeMap nodeset.NodeSet
	// BestSwitch is advisory: false means a topology strategy met the
	// request but used more leaf domains than requested and is still
	// within its wait4switch budget (spec.md §4.5/§4.6).
	BestSwitch bool
	// Strategy names which of the eight strategies produced this result.
	Strategy string
}

// EvalContext is the parameter object threaded through every strategy
// (spec.md §3). Its lifetime is exactly one eval_nodes call: all scratch
// state a strategy allocates is local to that call and never escapes here.
type EvalContext struct {
	Job   *Job
	Nodes []nodetable.Node

	// NodeMap is in/out: on entry the candidate set, on success the
	// selected subset (spec.md invariant 1).
	NodeMap nodeset.NodeSet
	// AvailCore is the per-node bitmap of candidate cores.
	AvailCore []nodeset.NodeSet
	// AvailRes is the per-node resource-availability record.
	AvailRes []nodetable.AvailRes

	// MinNodes, ReqNodes, MaxNodes are the request's node-count bounds for
	// this call. busy, lln and serial lower MaxNodes to num_tasks; busy and
	// lln may also raise ReqNodes to MinNodes.
	MinNodes int
	ReqNodes int
	MaxNodes int

	// AvailCPUs is scratch: the CPU count chosen for whichever node a
	// strategy is currently processing.
	AvailCPUs int

	CRType CRFlags
	MC     *MulticoreLayout

	EnforceBinding   bool
	FirstPass        bool
	PreferAllocNodes bool

	// CPUsPerCore is the ratio cpus_to_use reserves headroom with.
	CPUsPerCore int

	// IdleNodes backs the busy strategy's idle/non-idle partition
	// (idle_node_bitmap).
	IdleNodes nodeset.NodeSet

	// Switches and Blocks are the read-only topology tables the dfly/topo
	// and block strategies traverse.
	Switches *topology.Table
	Blocks   *topology.BlockTable
	// BlocksNodesBitmap is the union of every base block's nodes,
	// consulted by eval_nodes' dispatch rule 1.
	BlocksNodesBitmap nodeset.NodeSet

	GRES       gres.Scheduler
	CoreFilter gres.SockCoreFilter
	// gresActive caches gres.Scheduler.Init's answer for this call: whether
	// the job carries per-job GRES constraints needing aggregate tracking.
	// EvalNodes sets it once before dispatch; every other GRES.* call below
	// Init is skipped when it's false (spec.md §6's gres_sched_init gate).
	gresActive bool

	Tunables Tunables
	// Now is carried on the context for the caller; the core does not read
	// it. Time already waited is taken from TimeWaiting.
	Now time.Time
	// TimeWaiting is how long this job has already waited for a better
	// topology fit, computed by the caller from its own persisted
	// wait4switch_start (the core itself keeps no state across calls).
	TimeWaiting time.Duration

	// BestSwitch is the advisory output flag: EvalNodes copies
	// Result.BestSwitch here on success, and the dfly/topo strategies clear
	// it on leaf-switch overshoot.
	BestSwitch bool

	Log logger.Logger
}

func (ctx *EvalContext) logger() logger.Logger {
	if ctx.Log != nil {
		return ctx.Log
	}
	return log
}
