// Copyright 2025 Google LLC
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

package epsilon

// matchingEnd returns the PC immediately after the `end` matching the
// block/loop opcode at opcodePC (bodyPC is the PC right after that
// opcode's block-type byte, where the scan should start). Results are
// memoized per opcodePC since the underlying bytecode never changes
// across invocations of the same function.
func (f *WasmFunction) matchingEnd(body []byte, opcodePC, bodyPC uint32) (uint32, error) {
	if target, ok := f.jumpCache[opcodePC]; ok {
		return target, nil
	}
	target, err := scanMatchingEnd(body, bodyPC)
	if err != nil {
		return 0, err
	}
	f.jumpCache[opcodePC] = target
	return target, nil
}

// matchingElseOrEnd is matchingEnd's counterpart for `if`: it returns
// where execution should resume when the condition is false (the byte
// right after a matching `else`, or right after `end` if there is none)
// alongside the matching `end` target itself.
func (f *WasmFunction) matchingElseOrEnd(body []byte, opcodePC, bodyPC uint32) (elseTarget uint32, hasElse bool, endTarget uint32, err error) {
	if endTarget, ok := f.jumpCache[opcodePC]; ok {
		elseTarget, hasElse = f.jumpElseCache[opcodePC]
		if !hasElse {
			elseTarget = endTarget
		}
		return elseTarget, hasElse, endTarget, nil
	}

	elseTarget, hasElse, endTarget, err = scanMatchingElseOrEnd(body, bodyPC)
	if err != nil {
		return 0, false, 0, err
	}
	f.jumpCache[opcodePC] = endTarget
	if hasElse {
		f.jumpElseCache[opcodePC] = elseTarget
	}
	return elseTarget, hasElse, endTarget, nil
}

// scanMatchingEnd walks forward from pc (just past a block/loop's
// block-type byte) counting nested block/loop/if opens against `end`
// closes, skipping every instruction's immediates along the way, per
// spec.md §4.4.3.
func scanMatchingEnd(body []byte, pc uint32) (uint32, error) {
	depth := 1
	for depth > 0 {
		if int(pc) >= len(body) {
			return 0, interpErrorf("malformed function body: unterminated block")
		}
		op := opcode(body[pc])
		pc++
		switch op {
		case opBlock, opLoop, opIf:
			depth++
		case opEnd:
			depth--
		}
		next, err := skipImmediates(body, pc, op)
		if err != nil {
			return 0, err
		}
		pc = next
	}
	return pc, nil
}

// scanMatchingElseOrEnd is scanMatchingEnd generalized to also record a
// depth-1 `else`, which only ever belongs to the `if` the scan started
// from (a nested if's own else is consumed at a deeper depth and never
// recorded here).
func scanMatchingElseOrEnd(body []byte, pc uint32) (elseTarget uint32, hasElse bool, endTarget uint32, err error) {
	depth := 1
	for depth > 0 {
		if int(pc) >= len(body) {
			return 0, false, 0, interpErrorf("malformed function body: unterminated if")
		}
		op := opcode(body[pc])
		pc++
		switch op {
		case opBlock, opLoop, opIf:
			depth++
		case opEnd:
			depth--
		}
		next, skipErr := skipImmediates(body, pc, op)
		if skipErr != nil {
			return 0, false, 0, skipErr
		}
		pc = next
		if op == opElse && depth == 1 {
			elseTarget = pc
			hasElse = true
		}
		if op == opEnd && depth == 0 {
			endTarget = pc
		}
	}
	return elseTarget, hasElse, endTarget, nil
}

// skipImmediates advances past the immediate operands of the instruction
// at pc (the opcode byte itself has already been consumed), returning the
// PC of the following instruction.
func skipImmediates(body []byte, pc uint32, op opcode) (uint32, error) {
	c := &cursor{data: body, pos: int(pc)}
	var err error
	switch {
	case op == opBlock || op == opLoop || op == opIf:
		_, err = c.readByte()
	case op == opBr || op == opBrIf || op == opCall ||
		op == opLocalGet || op == opLocalSet || op == opLocalTee ||
		op == opGlobalGet || op == opGlobalSet:
		_, err = c.readVaruint32()
	case op == opBrTable:
		var n uint32
		n, err = c.readVaruint32()
		for i := uint32(0); err == nil && i < n+1; i++ {
			_, err = c.readVaruint32()
		}
	case op == opCallIndirect:
		if _, err = c.readVaruint32(); err == nil {
			_, err = c.readVaruint32()
		}
	case op == opMemorySize || op == opMemoryGrow:
		_, err = c.readVaruint32()
	case op.hasMemarg():
		if _, err = c.readVaruint32(); err == nil {
			_, err = c.readVaruint32()
		}
	case op == opI32Const:
		_, err = c.readVarint32()
	case op == opI64Const:
		_, err = c.readVarint64()
	case op == opF32Const:
		_, err = c.readBytes(4)
	case op == opF64Const:
		_, err = c.readBytes(8)
	case op == opPrefixFC:
		_, err = c.readVaruint32()
	}
	if err != nil {
		return 0, err
	}
	return uint32(c.pos), nil
}
