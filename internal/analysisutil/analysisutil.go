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

// Package analysisutil contains the helpers the SSA analyses use to match instructions and functions against the
// code identifiers of the configuration.
package analysisutil

import (
	"fmt"
	"go/types"

	"github.com/awslabs/argot-ifds/analysis/config"
	. "github.com/awslabs/argot-ifds/internal/funcutil"

	"golang.org/x/tools/go/ssa"
)

// FindTypePackage finds the package declaring t or returns an error
// Returns a package path and the name of the type declared in that package
func FindTypePackage(t types.Type) (string, string, error) {
	switch typ := t.(type) {
	case *types.Pointer:
		return FindTypePackage(typ.Elem())
	case *types.Named:
		obj := typ.Obj()
		if obj == nil {
			return "", "", fmt.Errorf("could not get name")
		}
		if pkg := obj.Pkg(); pkg != nil {
			return pkg.Path(), obj.Name(), nil
		}
		// obj is in Universe
		return "", obj.Name(), nil
	case *types.Array:
		return FindTypePackage(typ.Elem())
	case *types.Map:
		return FindTypePackage(typ.Elem())
	case *types.Slice:
		return FindTypePackage(typ.Elem())
	case *types.Chan:
		return FindTypePackage(typ.Elem())
	case *types.Struct:
		return "", "", fmt.Errorf("%s: not a type with a package and name", typ)
	default:
		return "", "", fmt.Errorf("%s: not a type with a package and name", t)
	}
}

// FindSafeCalleePkg returns the path of the package of the function called by n, if it can be determined statically
func FindSafeCalleePkg(n *ssa.CallCommon) Optional[string] {
	if n == nil {
		return None[string]()
	}
	if n.IsInvoke() && n.Method != nil {
		if n.Method.Pkg() == nil {
			return None[string]()
		}
		return Some(n.Method.Pkg().Path())
	}
	if n.StaticCallee() == nil || n.StaticCallee().Pkg == nil {
		return None[string]()
	}

	return Some(n.StaticCallee().Pkg.Pkg.Path())
}

// FieldAddrFieldName finds the name of a field access in ssa.FieldAddr
// if it cannot find a proper field name, returns "?"
func FieldAddrFieldName(fieldAddr *ssa.FieldAddr) string {
	return getFieldNameFromType(fieldAddr.X.Type().Underlying(), fieldAddr.Field)
}

// FieldFieldName finds the name of a field access in ssa.Field
// if it cannot find a proper field name, returns "?"
func FieldFieldName(field *ssa.Field) string {
	return getFieldNameFromType(field.X.Type().Underlying(), field.Field)
}

func getFieldNameFromType(t types.Type, i int) string {
	switch typ := t.(type) {
	case *types.Pointer:
		return getFieldNameFromType(typ.Elem().Underlying(), i)
	case *types.Struct:
		if 0 <= i && i < typ.NumFields() {
			return typ.Field(i).Name()
		}
		return "?"
	default:
		return "?"
	}
}

// CallIdentifier returns the code identifier of the function called by c. Invocations of interface methods are
// identified by the name of the receiver value, as in the configuration files.
func CallIdentifier(c *ssa.CallCommon) (config.CodeIdentifier, bool) {
	calleePkg := FindSafeCalleePkg(c)
	if calleePkg.IsNone() {
		return config.CodeIdentifier{}, false
	}
	if c.IsInvoke() {
		return config.CodeIdentifier{
			Package:  calleePkg.Value(),
			Method:   c.Method.Name(),
			Receiver: c.Value.Name(),
		}, true
	}
	callee := c.StaticCallee()
	cid := config.CodeIdentifier{Package: calleePkg.Value(), Method: callee.Name()}
	if recv := callee.Signature.Recv(); recv != nil {
		if _, typeName, err := FindTypePackage(recv.Type()); err == nil {
			cid.Receiver = typeName
		}
	}
	return cid, true
}

// FunctionIdentifier returns the code identifier of f, used to match entrypoints
func FunctionIdentifier(f *ssa.Function) config.CodeIdentifier {
	cid := config.CodeIdentifier{Method: f.Name()}
	if f.Pkg != nil {
		cid.Package = f.Pkg.Pkg.Path()
	}
	if recv := f.Signature.Recv(); recv != nil {
		if pkg, typeName, err := FindTypePackage(recv.Type()); err == nil {
			cid.Receiver = typeName
			if cid.Package == "" {
				cid.Package = pkg
			}
		}
	}
	return cid
}

// IsMatchingNode returns true if n is a node identified by f. Calls are identified by their callee, field accesses by
// the field and its struct type, and allocations by their type.
func IsMatchingNode(n ssa.Node, f func(config.CodeIdentifier) bool) bool {
	switch node := n.(type) {
	case *ssa.Call:
		if node == nil {
			return false
		}
		cid, ok := CallIdentifier(node.Common())
		return ok && f(cid)

	case *ssa.Field:
		packageName, typeName, err := FindTypePackage(node.X.Type())
		if err != nil {
			return false
		}
		return f(config.CodeIdentifier{Package: packageName, Field: FieldFieldName(node), Type: typeName})

	case *ssa.FieldAddr:
		packageName, typeName, err := FindTypePackage(node.X.Type())
		if err != nil {
			return false
		}
		return f(config.CodeIdentifier{Package: packageName, Field: FieldAddrFieldName(node), Type: typeName})

	case *ssa.Alloc:
		packageName, typeName, err := FindTypePackage(node.Type())
		if err != nil {
			return false
		}
		return f(config.CodeIdentifier{Package: packageName, Type: typeName})

	default:
		return false
	}
}
