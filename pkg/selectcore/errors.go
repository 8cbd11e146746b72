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

package selectcore

import "errors"

// All of these collapse to the single ERROR outcome spec.md §7 describes;
// they exist as distinct sentinels only so callers can log.wrapped causes
// and tests can assert on the reason without selection logic ever
// branching on them.
var (
	// ErrRequiredNodeUnavailable is returned when a required node has no
	// usable CPUs (avail_cpus == 0 after select_cores/cpus_to_use).
	ErrRequiredNodeUnavailable = errors.New("selectcore: required node has no usable resources")

	// ErrLocalityViolation is returned when required nodes straddle a
	// block/switch locality boundary.
	ErrLocalityViolation = errors.New("selectcore: required nodes do not share a topology domain")

	// ErrMaxNodesExceeded is returned when satisfying required nodes alone
	// would already exceed max_nodes.
	ErrMaxNodesExceeded = errors.New("selectcore: required nodes exceed max_nodes")

	// ErrInsufficientResources is returned when candidates are exhausted
	// without draining the job's remaining CPU/node counters.
	ErrInsufficientResources = errors.New("selectcore: insufficient resources to satisfy request")

	// ErrNoTopology is returned when a switch/block topology strategy runs
	// with an empty topology table, or when no top switch covers the
	// request. A block strategy that finds no fitting block group returns
	// ErrInsufficientResources instead.
	ErrNoTopology = errors.New("selectcore: no topology domain covers the request")

	// ErrPreconditionFailed is returned when eval_nodes' own
	// preconditions (candidate count, required-node subset) do not hold.
	ErrPreconditionFailed = errors.New("selectcore: precondition failed")
)
