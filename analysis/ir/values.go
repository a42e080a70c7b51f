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

// Package ir implements a small register-based intermediate representation for programs manipulating objects with
// fields, with a builder and a supergraph view for the IFDS solver.
//
// A program is a set of methods. Each method has named parameters, and a body made of instructions operating on
// local variables:
//
//	x = y         x = y.f        x.f = y       x = new T      x = null      x = "c"
//	x = m(a, b)   m(a, b)        x = r.m(a)    if x == null goto L1 else L2
//	goto L        return x
//
// Methods are built with a Program and its MethodBuilders, and Program.Build checks the labels and the callees, then
// computes the control-flow graph of every method.
package ir

import (
	"fmt"
	"strings"

	"github.com/awslabs/argot-ifds/analysis/paths"
	"github.com/awslabs/argot-ifds/internal/funcutil"
)

// ThisName is the name of the local holding the receiver of a method
const ThisName = "this"

// ReturnName is the root of the access paths of the value returned by a method. It cannot be the name of a local.
const ReturnName = "$ret"

// A Path is an access path rooted at a local variable.
type Path = paths.AccessPath[string, string]

// A Value is an operand or the right-hand side of an assignment.
type Value interface {
	fmt.Stringer
	isValue()
}

// Local is a local variable or a parameter
type Local struct {
	Name string
}

// FieldRef is a field access Base.Field
type FieldRef struct {
	Base  Value
	Field string
}

// NewExpr allocates a new object
type NewExpr struct {
	Type string
}

// NullConst is the null constant
type NullConst struct{}

// Const is a non-null constant
type Const struct {
	Value string
}

// CallExpr is a method call. Receiver is nil for static calls.
type CallExpr struct {
	Method   string
	Receiver Value
	Args     []Value
}

func (Local) isValue()     {}
func (FieldRef) isValue()  {}
func (NewExpr) isValue()   {}
func (NullConst) isValue() {}
func (Const) isValue()     {}
func (*CallExpr) isValue() {}

func (l Local) String() string    { return l.Name }
func (f FieldRef) String() string { return f.Base.String() + "." + f.Field }
func (n NewExpr) String() string  { return "new " + n.Type }
func (NullConst) String() string  { return "null" }
func (c Const) String() string    { return fmt.Sprintf("%q", c.Value) }

// IsVirtual returns true if the call has a receiver
func (c *CallExpr) IsVirtual() bool { return c.Receiver != nil }

func (c *CallExpr) String() string {
	args := strings.Join(funcutil.Map(c.Args, Value.String), ", ")
	if c.Receiver != nil {
		return fmt.Sprintf("%s.%s(%s)", c.Receiver, c.Method, args)
	}
	return fmt.Sprintf("%s(%s)", c.Method, args)
}

// L returns the local name
func L(name string) Local {
	return Local{Name: name}
}

// Ref returns the value root.fields[0]...
func Ref(root string, fields ...string) Value {
	var v Value = Local{Name: root}
	for _, f := range fields {
		v = FieldRef{Base: v, Field: f}
	}
	return v
}

// New returns the allocation of an object of type typ
func New(typ string) NewExpr {
	return NewExpr{Type: typ}
}

// Null returns the null constant
func Null() NullConst {
	return NullConst{}
}

// C returns the constant c
func C(c string) Const {
	return Const{Value: c}
}

// StaticCall returns the call of method with args
func StaticCall(method string, args ...Value) *CallExpr {
	return &CallExpr{Method: method, Args: args}
}

// VirtualCall returns the call of method on receiver with args
func VirtualCall(receiver Value, method string, args ...Value) *CallExpr {
	return &CallExpr{Method: method, Receiver: receiver, Args: args}
}

// PathOf returns the access path of v, truncated to k fields, if v is a local or a field access.
func PathOf(v Value, k int) (Path, bool) {
	switch x := v.(type) {
	case Local:
		return paths.New[string, string](x.Name), true
	case FieldRef:
		base, ok := PathOf(x.Base, k)
		if !ok {
			return Path{}, false
		}
		return paths.FromOther(base, []string{x.Field}, k), true
	}
	return Path{}, false
}

// CmpOp is the comparison operator of an IfInst
type CmpOp int

const (
	// Eq is ==
	Eq CmpOp = iota
	// Neq is !=
	Neq
)

func (op CmpOp) String() string {
	if op == Eq {
		return "=="
	}
	return "!="
}
