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
	"errors"
	"fmt"
	"sort"

	"github.com/awslabs/argot-ifds/internal/funcutil"
	"github.com/awslabs/argot-ifds/internal/ordered"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

var (
	// ErrUnknownLabel is returned by Build when a jump targets a label that is not defined in the method
	ErrUnknownLabel = errors.New("unknown label")
	// ErrDuplicateLabel is returned by Build when a label is defined twice in a method
	ErrDuplicateLabel = errors.New("duplicate label")
	// ErrEmptyMethod is returned by Build for methods without instructions
	ErrEmptyMethod = errors.New("empty method")
	// ErrUnknownMethod is returned by Build when a method calls or overrides a method that is not declared
	ErrUnknownMethod = errors.New("unknown method")
	// ErrArity is returned by Build when a call does not have as many arguments as the callee has parameters
	ErrArity = errors.New("wrong number of arguments")
	// ErrFallsOffEnd is returned by Build when the last instruction of a method is neither a return nor a jump
	ErrFallsOffEnd = errors.New("control falls off the end of the method")
	// ErrSelfLoop is returned by Build when an instruction jumps to itself
	ErrSelfLoop = errors.New("instruction jumps to itself")
	// ErrInvalidLhs is returned by Build when the left-hand side of an assignment is not a local or a field
	ErrInvalidLhs = errors.New("invalid left-hand side")
	// ErrDuplicateMethod is returned by Build when two methods have the same name
	ErrDuplicateMethod = errors.New("duplicate method")
)

// A Program collects the methods of a program before they are checked and linked by Build.
type Program struct {
	methods   []*MethodBuilder
	overrides *ordered.Map[string, []string]
}

// NewProgram returns an empty program
func NewProgram() *Program {
	return &Program{overrides: ordered.NewMap[string, []string]()}
}

// Method starts the declaration of a method with the given parameters.
func (p *Program) Method(name string, params ...string) *MethodBuilder {
	b := &MethodBuilder{
		m:      &Method{Name: name, Params: params},
		labels: map[string]int{},
	}
	p.methods = append(p.methods, b)
	return b
}

// Override registers override as a method that may be called instead of base by virtual calls.
func (p *Program) Override(base string, override string) {
	p.overrides.Store(base, append(p.overrides.Value(base), override))
}

// A MethodBuilder appends instructions to a method.
type MethodBuilder struct {
	m       *Method
	labels  map[string]int
	pending []string
	errs    []error
}

// Nullable marks the method as possibly returning null
func (b *MethodBuilder) Nullable() *MethodBuilder {
	b.m.Nullable = true
	return b
}

// NullableParams marks parameters that may be null when the method is called
func (b *MethodBuilder) NullableParams(names ...string) *MethodBuilder {
	b.m.NullableParams = append(b.m.NullableParams, names...)
	return b
}

// NullableFields marks fields of the receiver that may be null when the method is called
func (b *MethodBuilder) NullableFields(fields ...string) *MethodBuilder {
	b.m.NullableFields = append(b.m.NullableFields, fields...)
	return b
}

// Label attaches label to the next instruction of the method
func (b *MethodBuilder) Label(label string) *MethodBuilder {
	if _, ok := b.labels[label]; ok || funcutil.Contains(b.pending, label) {
		b.errs = append(b.errs, fmt.Errorf("%w %q in %s", ErrDuplicateLabel, label, b.m.Name))
		return b
	}
	b.pending = append(b.pending, label)
	return b
}

// Assign appends lhs = rhs
func (b *MethodBuilder) Assign(lhs Value, rhs Value) *AssignInst {
	i := &AssignInst{instBase: b.next(), Lhs: lhs, Rhs: rhs}
	b.add(i)
	return i
}

// Call appends a call whose result is discarded
func (b *MethodBuilder) Call(call *CallExpr) *CallInst {
	i := &CallInst{instBase: b.next(), Call: call}
	b.add(i)
	return i
}

// If appends a conditional jump. An empty falseLabel falls through.
func (b *MethodBuilder) If(op CmpOp, lhs Value, rhs Value, trueLabel string, falseLabel string) *IfInst {
	i := &IfInst{instBase: b.next(), Op: op, Lhs: lhs, Rhs: rhs, TrueLabel: trueLabel, FalseLabel: falseLabel}
	b.add(i)
	return i
}

// Goto appends a jump to label
func (b *MethodBuilder) Goto(label string) *GotoInst {
	i := &GotoInst{instBase: b.next(), Label: label}
	b.add(i)
	return i
}

// Return appends the return of v. v is nil when the method returns nothing.
func (b *MethodBuilder) Return(v Value) *ReturnInst {
	i := &ReturnInst{instBase: b.next(), Value: v}
	b.add(i)
	return i
}

func (b *MethodBuilder) next() instBase {
	return instBase{method: b.m, index: len(b.m.Insts)}
}

func (b *MethodBuilder) add(i Inst) {
	for _, l := range b.pending {
		b.labels[l] = i.Index()
	}
	b.pending = nil
	b.m.Insts = append(b.m.Insts, i)
}

// Build checks the methods of the program, resolves the jumps and computes the control-flow graphs. All the errors
// found are returned, joined.
func (p *Program) Build() (*Graph, error) {
	g := &Graph{
		byName:    map[string]*Method{},
		callers:   ordered.NewMap[*Method, []Inst](),
		overrides: map[*Method][]*Method{},
	}
	var errs []error
	for _, b := range p.methods {
		if _, ok := g.byName[b.m.Name]; ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateMethod, b.m.Name))
			continue
		}
		g.byName[b.m.Name] = b.m
		g.methods = append(g.methods, b.m)
	}
	for _, b := range p.methods {
		errs = append(errs, b.errs...)
		errs = append(errs, b.build()...)
	}
	for _, m := range g.methods {
		errs = append(errs, g.link(m)...)
	}
	p.overrides.OrderedRange(func(base string, overrides []string) bool {
		bm, ok := g.byName[base]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: overridden method %s", ErrUnknownMethod, base))
			return true
		}
		for _, o := range overrides {
			om, ok := g.byName[o]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: override %s of %s", ErrUnknownMethod, o, base))
				continue
			}
			if len(om.Params) != len(bm.Params) {
				errs = append(errs, fmt.Errorf("%w: override %s of %s", ErrArity, o, base))
				continue
			}
			g.overrides[bm] = append(g.overrides[bm], om)
		}
		return true
	})
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return g, nil
}

// build resolves the labels and computes the control-flow graph of the method
func (b *MethodBuilder) build() []error {
	m := b.m
	if len(b.pending) > 0 {
		return []error{fmt.Errorf("%w: %v at the end of %s", ErrUnknownLabel, b.pending, m.Name)}
	}
	if len(m.Insts) == 0 {
		return []error{fmt.Errorf("%w: %s", ErrEmptyMethod, m.Name)}
	}
	var errs []error
	resolve := func(i Inst, label string) int {
		target, ok := b.labels[label]
		if !ok {
			errs = append(errs, fmt.Errorf("%w %q at %s", ErrUnknownLabel, label, i))
			return -1
		}
		return target
	}
	targets := make([][]int, len(m.Insts))
	for _, inst := range m.Insts {
		idx := inst.Index()
		fallThrough := func() {
			if idx+1 == len(m.Insts) {
				errs = append(errs, fmt.Errorf("%w: %s", ErrFallsOffEnd, inst))
				return
			}
			targets[idx] = append(targets[idx], idx+1)
		}
		switch x := inst.(type) {
		case *AssignInst:
			if _, ok := x.Lhs.(Local); !ok {
				if _, ok := x.Lhs.(FieldRef); !ok {
					errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidLhs, inst))
				}
			}
			fallThrough()
		case *CallInst:
			fallThrough()
		case *IfInst:
			x.trueTarget = resolve(inst, x.TrueLabel)
			targets[idx] = append(targets[idx], x.trueTarget)
			if x.FalseLabel == "" {
				x.falseTarget = idx + 1
				fallThrough()
			} else {
				x.falseTarget = resolve(inst, x.FalseLabel)
				targets[idx] = append(targets[idx], x.falseTarget)
			}
		case *GotoInst:
			x.target = resolve(inst, x.Label)
			targets[idx] = append(targets[idx], x.target)
		case *ReturnInst:
		}
	}
	if len(errs) > 0 {
		return errs
	}

	cfg := simple.NewDirectedGraph()
	for _, inst := range m.Insts {
		cfg.AddNode(simple.Node(inst.Index()))
	}
	for idx, ts := range targets {
		for _, t := range ts {
			if t == idx {
				errs = append(errs, fmt.Errorf("%w: %s", ErrSelfLoop, m.Insts[idx]))
				continue
			}
			cfg.SetEdge(cfg.NewEdge(simple.Node(idx), simple.Node(t)))
		}
	}
	if len(errs) > 0 {
		return errs
	}
	m.cfg = cfg
	m.succs = make([][]Inst, len(m.Insts))
	m.preds = make([][]Inst, len(m.Insts))
	for _, inst := range m.Insts {
		id := int64(inst.Index())
		m.succs[inst.Index()] = m.instsOf(cfg.From(id))
		m.preds[inst.Index()] = m.instsOf(cfg.To(id))
	}
	return nil
}

// instsOf returns the instructions of the nodes, sorted by index
func (m *Method) instsOf(nodes graph.Nodes) []Inst {
	var ids []int
	for nodes.Next() {
		ids = append(ids, int(nodes.Node().ID()))
	}
	sort.Ints(ids)
	res := make([]Inst, len(ids))
	for i, id := range ids {
		res[i] = m.Insts[id]
	}
	return res
}
