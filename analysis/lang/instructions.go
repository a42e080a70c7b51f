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

package lang

import (
	"fmt"
	"go/token"

	"golang.org/x/tools/go/ssa"
)

// LastInstr returns the last instruction in a block. There is always a last instruction for a reachable block.
// Returns nil for an empty block (a block can be empty if it is non-reachable)
func LastInstr(block *ssa.BasicBlock) ssa.Instruction {
	if len(block.Instrs) == 0 {
		return nil
	}
	return block.Instrs[len(block.Instrs)-1]
}

// FirstInstr returns the first instruction in a block. There is always a first instruction for a reachable block.
// Returns nil for an empty block (a block can be empty if it is non-reachable)
func FirstInstr(block *ssa.BasicBlock) ssa.Instruction {
	if len(block.Instrs) == 0 {
		return nil
	}
	return block.Instrs[0]
}

// GetArgs returns the arguments of a function call including the receiver when the function called is a method.
// More precisely, it returns instr.Common().Args, but prepends instr.Common().Value if the call is "invoke" mode.
// The result lines up with the parameters of the callee.
func GetArgs(instr ssa.CallInstruction) []ssa.Value {
	var args []ssa.Value
	if instr.Common().IsInvoke() {
		args = append(args, instr.Common().Value)
	}
	args = append(args, instr.Common().Args...)
	return args
}

// FmtInstr returns a one-line description of instr prefixed by its function, naming the value it defines.
func FmtInstr(instr ssa.Instruction) string {
	prefix := "?"
	if instr.Parent() != nil {
		prefix = instr.Parent().Name()
	}
	if v, ok := instr.(ssa.Value); ok && v.Name() != "" {
		return fmt.Sprintf("%s: %s = %s", prefix, v.Name(), instr.String())
	}
	return fmt.Sprintf("%s: %s", prefix, instr.String())
}

// InstrPosition returns the position of instr, falling back to the position of its function when the instruction
// has none.
func InstrPosition(fset *token.FileSet, instr ssa.Instruction) token.Position {
	if pos := instr.Pos(); pos.IsValid() {
		return fset.Position(pos)
	}
	if instr.Parent() != nil {
		return fset.Position(FunctionPosition(instr.Parent()))
	}
	return token.Position{}
}
