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

import (
	"github.com/nri-plugins/node-select/pkg/nodeset"
	"github.com/nri-plugins/node-select/pkg/nodetable"
)

// buildWeightBuckets partitions candidates by node weight, ascending
// (spec.md §4.1, build_weight_buckets). It is a thin call-through to
// nodetable.BuildWeightBuckets so every strategy file gets it from the
// same place its other node-table reads come from.
func (ctx *EvalContext) buildWeightBuckets(candidates nodeset.NodeSet) []nodetable.WeightBucket {
	return nodetable.BuildWeightBuckets(ctx.Nodes, candidates)
}
