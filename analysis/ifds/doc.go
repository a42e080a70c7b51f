// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package ifds implements the tabulation algorithm that solves Interprocedural, Finite, Distributive, Subset (IFDS)
dataflow problems over a supergraph.

A client supplies a [Supergraph] (the control-flow graphs of all the methods, and the call graph between them) and a
[FlowFunctionsSpace] describing how facts are transformed by statements, calls and returns. An [Instance] computes
the path edges of the problem: a path edge (sp, d1) -> (n, d2) means that if d1 holds at the entry sp of a method,
then d2 may hold at the statement n of the same method.

The solver builds procedure summaries on the fly (summary edges), which makes the algorithm terminate on recursive
call graphs, and records the call-to-start edges used to reconstruct possible call stacks in a [Result].

All the sets of the solver only grow. The only way to affect an instance from the outside is [Instance.Propagate],
which is how the bidirectional analyses of the taint package hand edges from one instance to another.

An Instance is not safe for concurrent use. Listeners are called synchronously, and may call Propagate or Run on
other instances, or Propagate on the same instance.
*/
package ifds
