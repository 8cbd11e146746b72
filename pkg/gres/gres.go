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

// Package gres defines the narrow interface the node-selection core uses to
// consult the generic-resource (GRES) subsystem. The core never inspects a
// GRES request or accumulator itself: it only calls through this interface,
// the same way the teacher's policy package only ever calls through
// resmgr/cache.Cache or policyapi.Backend rather than reaching into a
// concrete implementation.
package gres

// Request is an opaque, caller-defined description of a job's GRES ask
// (e.g. "2 gpu:tesla"). The core never inspects its contents.
type Request interface{}

// Accumulator is opaque, caller-defined aggregate GRES state built up while
// a strategy walks a run of nodes, a block, or a topology subtree.
type Accumulator interface{}

// SockGRES is an opaque, caller-defined per-node record of which sockets and
// cores carry which GRES, as referenced by avail_res_array[i].sock_gres_list
// in spec.md's data model.
type SockGRES interface{}

// Scheduler is the subset of Slurm's gres_sched_* family the core depends
// on. A caller-supplied implementation backs it; the core treats it as a
// pure, side-effect-free (from the core's point of view) oracle.
type Scheduler interface {
	// Init reports whether the job carries per-job GRES constraints that
	// require aggregate (cross-node) tracking at all. If false, every other
	// method on this interface is never called for the request.
	Init(req Request) bool

	// Add commits GRES for one node, given that node's sock_gres_list, and
	// may reduce availCPUs (e.g. because a core had to be reserved to bind
	// to the chosen GRES instance).
	Add(req Request, sock SockGRES, availCPUs int) (newAvailCPUs int, err error)

	// Consec tentatively folds one node's GRES into a running accumulator,
	// used by strategies (consec, dfly, topo, block) that must decide
	// GRES-sufficiency of a candidate run/leaf/block before committing to
	// it with Add.
	Consec(accum Accumulator, req Request, sock SockGRES) Accumulator

	// Sufficient reports whether an accumulator satisfies the job's GRES
	// request.
	Sufficient(req Request, accum Accumulator) bool

	// Test reports whether already-committed GRES (via Add) satisfies the
	// job's request. Called as the "gres_sched_test" gate every time a
	// strategy checks whether the request is satisfied.
	Test(req Request, jobID string) bool

	// String renders an accumulator for diagnostics. Debug only: its return
	// value never influences control flow.
	String(accum Accumulator) string
}

// SockCoreFilter is the select_cores "gres_filter_sock_core" collaborator:
// given a node and the number of remaining nodes still to be picked, it may
// prune avail_core for that node and report the number of CPUs the pruned
// cores still make available.
type SockCoreFilter interface {
	FilterSockCore(nodeIndex int, sock SockGRES, remNodes int, availCPUs int) (prunedAvailCPUs int, err error)
}

// None is the reference Scheduler for jobs with no GRES request at all:
// gres_sched_init returns false and every other method is a permissive
// no-op. Most test fixtures and the demo CLI use it directly.
type None struct{}

var _ Scheduler = None{}
var _ SockCoreFilter = None{}

// Init always reports no GRES constraints.
func (None) Init(Request) bool { return false }

// Add passes availCPUs through unchanged.
func (None) Add(_ Request, _ SockGRES, availCPUs int) (int, error) { return availCPUs, nil }

// Consec returns the accumulator unchanged.
func (None) Consec(accum Accumulator, _ Request, _ SockGRES) Accumulator { return accum }

// Sufficient always reports satisfied, since there is nothing to satisfy.
func (None) Sufficient(Request, Accumulator) bool { return true }

// Test always reports satisfied.
func (None) Test(Request, string) bool { return true }

// String returns a constant placeholder.
func (None) String(Accumulator) string { return "<no-gres>" }

// FilterSockCore passes availCPUs through unchanged.
func (None) FilterSockCore(_ int, _ SockGRES, _ int, availCPUs int) (int, error) {
	return availCPUs, nil
}
