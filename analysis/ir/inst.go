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

package ir

import (
	"fmt"

	"github.com/awslabs/argot-ifds/internal/funcutil"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// An Inst is an instruction of a method. Instructions are identified by their address.
type Inst interface {
	fmt.Stringer
	// Method returns the method containing the instruction
	Method() *Method
	// Index returns the position of the instruction in its method
	Index() int
	// Operands returns the values read or written by the instruction. The arguments and the receiver of a call are
	// operands, the call itself is not.
	Operands() []Value
}

type instBase struct {
	method *Method
	index  int
}

func (b *instBase) Method() *Method { return b.method }
func (b *instBase) Index() int      { return b.index }

func (b *instBase) location() string {
	return fmt.Sprintf("%s#%d", b.method.Name, b.index)
}

// AssignInst is Lhs = Rhs. Lhs is a Local or a FieldRef.
type AssignInst struct {
	instBase
	Lhs Value
	Rhs Value
}

// CallInst is a call whose result is discarded
type CallInst struct {
	instBase
	Call *CallExpr
}

// IfInst jumps to the instruction labelled TrueLabel if Lhs Op Rhs holds, and to FalseLabel otherwise. An empty
// FalseLabel falls through to the next instruction.
type IfInst struct {
	instBase
	Op         CmpOp
	Lhs        Value
	Rhs        Value
	TrueLabel  string
	FalseLabel string

	trueTarget  int
	falseTarget int
}

// GotoInst jumps to the instruction labelled Label
type GotoInst struct {
	instBase
	Label  string
	target int
}

// ReturnInst returns Value from the method. Value is nil in methods that return nothing.
type ReturnInst struct {
	instBase
	Value Value
}

func (i *AssignInst) String() string {
	return fmt.Sprintf("%s: %s = %s", i.location(), i.Lhs, i.Rhs)
}

func (i *CallInst) String() string {
	return fmt.Sprintf("%s: %s", i.location(), i.Call)
}

func (i *IfInst) String() string {
	if i.FalseLabel == "" {
		return fmt.Sprintf("%s: if %s %s %s goto %s", i.location(), i.Lhs, i.Op, i.Rhs, i.TrueLabel)
	}
	return fmt.Sprintf("%s: if %s %s %s goto %s else %s", i.location(), i.Lhs, i.Op, i.Rhs, i.TrueLabel,
		i.FalseLabel)
}

func (i *GotoInst) String() string {
	return fmt.Sprintf("%s: goto %s", i.location(), i.Label)
}

func (i *ReturnInst) String() string {
	if i.Value == nil {
		return fmt.Sprintf("%s: return", i.location())
	}
	return fmt.Sprintf("%s: return %s", i.location(), i.Value)
}

func (i *AssignInst) Operands() []Value {
	if c, ok := i.Rhs.(*CallExpr); ok {
		return append([]Value{i.Lhs}, c.Operands()...)
	}
	return []Value{i.Lhs, i.Rhs}
}

func (i *CallInst) Operands() []Value { return i.Call.Operands() }
func (i *IfInst) Operands() []Value   { return []Value{i.Lhs, i.Rhs} }
func (i *GotoInst) Operands() []Value { return nil }

func (i *ReturnInst) Operands() []Value {
	if i.Value == nil {
		return nil
	}
	return []Value{i.Value}
}

// Operands returns the receiver, if any, and the arguments of the call
func (c *CallExpr) Operands() []Value {
	if c.Receiver == nil {
		return c.Args
	}
	return append([]Value{c.Receiver}, c.Args...)
}

// True returns the instruction executed when the condition holds
func (i *IfInst) True() Inst { return i.method.Insts[i.trueTarget] }

// False returns the instruction executed when the condition does not hold
func (i *IfInst) False() Inst { return i.method.Insts[i.falseTarget] }

// Target returns the instruction the goto jumps to
func (i *GotoInst) Target() Inst { return i.method.Insts[i.target] }

// CallOf returns the call expression of inst, if inst is a call or the assignment of the result of a call.
func CallOf(inst Inst) (*CallExpr, bool) {
	switch x := inst.(type) {
	case *CallInst:
		return x.Call, true
	case *AssignInst:
		c, ok := x.Rhs.(*CallExpr)
		return c, ok
	}
	return nil, false
}

// A Method is a named sequence of instructions with its control-flow graph. Methods are created by Program.Build.
type Method struct {
	Name   string
	Params []string
	// Nullable is true when the method may return null
	Nullable bool
	// NullableParams are the parameters that may be null when the method is called
	NullableParams []string
	// NullableFields are the fields of the receiver that may be null when the method is called
	NullableFields []string
	Insts          []Inst

	cfg   *simple.DirectedGraph
	succs [][]Inst
	preds [][]Inst
}

func (m *Method) String() string {
	return m.Name
}

// Entry returns the first instruction of the method
func (m *Method) Entry() Inst {
	return m.Insts[0]
}

// Exits returns the return instructions of the method
func (m *Method) Exits() []Inst {
	return funcutil.Filter(m.Insts, func(i Inst) bool {
		_, ok := i.(*ReturnInst)
		return ok
	})
}

// Returns returns the values returned by the method. Returns without value are skipped.
func (m *Method) Returns() []Value {
	var res []Value
	for _, exit := range m.Exits() {
		if v := exit.(*ReturnInst).Value; v != nil {
			res = append(res, v)
		}
	}
	return res
}

// Successors returns the instructions that may execute after i, in the order of the method
func (m *Method) Successors(i Inst) []Inst {
	return m.succs[i.Index()]
}

// Predecessors returns the instructions that may execute before i, in the order of the method
func (m *Method) Predecessors(i Inst) []Inst {
	return m.preds[i.Index()]
}

// Unreachable returns the instructions that cannot be reached from the entry of the method
func (m *Method) Unreachable() []Inst {
	var bf traverse.BreadthFirst
	bf.Walk(m.cfg, m.cfg.Node(0), nil)
	return funcutil.Filter(m.Insts, func(i Inst) bool {
		return !bf.Visited(simple.Node(i.Index()))
	})
}
