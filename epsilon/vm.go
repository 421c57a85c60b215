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

// label is a structured-control-flow target: the PC a branch to it resumes
// at, the operand stack height it was pushed at, and how many values
// survive a branch across it. See spec.md §4.4.3.
type label struct {
	targetPC    uint32
	stackHeight uint
	resultArity uint
	isLoop      bool
}

// execFrame is one call frame: the function being run, its locals, its
// current program counter into the raw bytecode, and its label stack.
type execFrame struct {
	fn     *WasmFunction
	locals []value
	labels []label
	pc     uint32
}

func (f *execFrame) cursor() *cursor {
	return &cursor{data: f.fn.Code.Body, pos: int(f.pc)}
}

func (f *execFrame) advanceTo(c *cursor) { f.pc = uint32(c.pos) }

// executor holds the transient state of a single top-level Call: the
// shared operand stack and the call-frame stack. A fresh executor is
// created per Call/CallFunction; nothing here outlives the invocation.
type executor struct {
	rt     *Runtime
	inst   *ModuleInstance
	stack  *valueStack
	frames []*execFrame
}

func (ex *executor) currentFrame() *execFrame { return ex.frames[len(ex.frames)-1] }

// call dispatches to a module-defined or host function, pushing/popping
// the call-frame stack as needed.
func (ex *executor) call(fn FunctionInstance) error {
	switch f := fn.(type) {
	case *WasmFunction:
		return ex.callWasm(f)
	case *HostFunc:
		return ex.callHost(f)
	default:
		return interpErrorf("unknown function instance type %T", fn)
	}
}

func (ex *executor) callHost(f *HostFunc) error {
	args, err := ex.stack.popTyped(f.Type.Params)
	if err != nil {
		return err
	}
	results, err := f.Code(ex.inst, args)
	if err != nil {
		return err
	}
	if len(results) != len(f.Type.Results) {
		return interpErrorf("host function returned %d results, expected %d", len(results), len(f.Type.Results))
	}
	for i, r := range results {
		if r.Type != f.Type.Results[i] {
			return interpErrorf("host function result %d: expected %s, got %s", i, f.Type.Results[i], r.Type)
		}
		ex.stack.data = append(ex.stack.data, r.v)
	}
	return nil
}

func (ex *executor) callWasm(f *WasmFunction) error {
	maxDepth := ex.rt.config.MaxCallStackDepth
	if maxDepth <= 0 {
		maxDepth = DefaultConfig().MaxCallStackDepth
	}
	if len(ex.frames) >= maxDepth {
		return trap(ErrCallStackExhausted)
	}

	numParams := len(f.Type.Params)
	params, err := ex.stack.popN(numParams)
	if err != nil {
		return err
	}
	locals := make([]value, numParams+len(f.Code.Locals))
	copy(locals, params)
	for i, t := range f.Code.Locals {
		locals[numParams+i] = defaultValue(t)
	}

	frame := &execFrame{fn: f, locals: locals}
	frame.labels = append(frame.labels, label{
		targetPC:    uint32(len(f.Code.Body)),
		stackHeight: ex.stack.size(),
		resultArity: uint(len(f.Type.Results)),
	})

	ex.frames = append(ex.frames, frame)
	err = ex.run(frame)
	ex.frames = ex.frames[:len(ex.frames)-1]
	return err
}

func (ex *executor) run(frame *execFrame) error {
	body := frame.fn.Code.Body
	for frame.pc < uint32(len(body)) {
		if err := ex.step(frame, body); err != nil {
			return err
		}
	}
	return nil
}

// branch implements a structured branch to the label at labelIndex levels
// out from the innermost one (0 = innermost): unwind the operand stack to
// that label's height, preserving its branch arity (a loop's arity is its
// input count, always zero in this MVP; every other label's arity is its
// result count), pop every label in between, and jump the frame's PC.
func (ex *executor) branch(frame *execFrame, labelIndex uint32) error {
	idx := len(frame.labels) - 1 - int(labelIndex)
	if idx < 0 {
		return interpErrorf("branch target %d exceeds label stack depth", labelIndex)
	}
	target := frame.labels[idx]
	arity := target.resultArity
	if target.isLoop {
		arity = 0
	}
	if err := ex.stack.unwind(target.stackHeight, arity); err != nil {
		return err
	}
	frame.labels = frame.labels[:idx]
	if target.isLoop {
		frame.labels = append(frame.labels, target)
	}
	frame.pc = target.targetPC
	return nil
}

func blockResultArity(t ValueType) uint {
	if t == Void {
		return 0
	}
	return 1
}

// step executes a single instruction and advances frame.pc past it.
func (ex *executor) step(frame *execFrame, body []byte) error {
	c := frame.cursor()
	opByte, err := c.readByte()
	if err != nil {
		return interpErrorf("reading opcode: %w", err)
	}
	op := opcode(opByte)
	frame.advanceTo(c)

	switch op {
	case opUnreachable:
		return trap(ErrUnreachable)
	case opNop:
		return nil

	case opBlock, opLoop, opIf:
		return ex.stepBlockLike(frame, op)
	case opElse:
		return ex.stepElse(frame)
	case opEnd:
		return ex.stepEnd(frame)

	case opBr:
		idx, err := ex.readLabelIndex(frame)
		if err != nil {
			return err
		}
		return ex.branch(frame, idx)
	case opBrIf:
		idx, err := ex.readLabelIndex(frame)
		if err != nil {
			return err
		}
		cond, err := ex.stack.popInt32()
		if err != nil {
			return err
		}
		if cond == 0 {
			return nil
		}
		return ex.branch(frame, idx)
	case opBrTable:
		return ex.stepBrTable(frame)
	case opReturn:
		return ex.branch(frame, uint32(len(frame.labels)-1))

	case opCall:
		return ex.stepCall(frame)
	case opCallIndirect:
		return ex.stepCallIndirect(frame)

	case opDrop:
		return ex.stack.drop()
	case opSelect:
		return ex.stepSelect()

	case opLocalGet:
		idx, err := ex.readLocalIndex(frame)
		if err != nil {
			return err
		}
		if int(idx) >= len(frame.locals) {
			return interpErrorf("%w: local %d", ErrIndexOutOfRange, idx)
		}
		ex.stack.data = append(ex.stack.data, frame.locals[idx])
		return nil
	case opLocalSet:
		idx, err := ex.readLocalIndex(frame)
		if err != nil {
			return err
		}
		v, err := ex.stack.pop()
		if err != nil {
			return err
		}
		if int(idx) >= len(frame.locals) {
			return interpErrorf("%w: local %d", ErrIndexOutOfRange, idx)
		}
		frame.locals[idx] = v
		return nil
	case opLocalTee:
		idx, err := ex.readLocalIndex(frame)
		if err != nil {
			return err
		}
		v, err := ex.stack.peek()
		if err != nil {
			return err
		}
		if int(idx) >= len(frame.locals) {
			return interpErrorf("%w: local %d", ErrIndexOutOfRange, idx)
		}
		frame.locals[idx] = v
		return nil

	case opGlobalGet:
		idx, err := ex.readLocalIndex(frame)
		if err != nil {
			return err
		}
		if int(idx) >= len(ex.inst.globals) {
			return interpErrorf("%w: global %d", ErrIndexOutOfRange, idx)
		}
		ex.stack.data = append(ex.stack.data, ex.inst.globals[idx].get())
		return nil
	case opGlobalSet:
		idx, err := ex.readLocalIndex(frame)
		if err != nil {
			return err
		}
		v, err := ex.stack.pop()
		if err != nil {
			return err
		}
		if int(idx) >= len(ex.inst.globals) {
			return interpErrorf("%w: global %d", ErrIndexOutOfRange, idx)
		}
		return ex.inst.globals[idx].set(v)

	case opMemorySize:
		c := frame.cursor()
		if _, err := c.readVaruint32(); err != nil {
			return err
		}
		frame.advanceTo(c)
		mem, err := ex.memory()
		if err != nil {
			return err
		}
		ex.stack.pushInt32(int32(mem.Size()))
		return nil
	case opMemoryGrow:
		c := frame.cursor()
		if _, err := c.readVaruint32(); err != nil {
			return err
		}
		frame.advanceTo(c)
		mem, err := ex.memory()
		if err != nil {
			return err
		}
		delta, err := ex.stack.popInt32()
		if err != nil {
			return err
		}
		ex.stack.pushInt32(mem.Grow(delta))
		return nil

	case opI32Const:
		c := frame.cursor()
		v, err := c.readVarint32()
		if err != nil {
			return err
		}
		frame.advanceTo(c)
		ex.stack.pushInt32(v)
		return nil
	case opI64Const:
		c := frame.cursor()
		v, err := c.readVarint64()
		if err != nil {
			return err
		}
		frame.advanceTo(c)
		ex.stack.pushInt64(v)
		return nil
	case opF32Const:
		c := frame.cursor()
		v, err := c.readF32()
		if err != nil {
			return err
		}
		frame.advanceTo(c)
		ex.stack.pushFloat32(v)
		return nil
	case opF64Const:
		c := frame.cursor()
		v, err := c.readF64()
		if err != nil {
			return err
		}
		frame.advanceTo(c)
		ex.stack.pushFloat64(v)
		return nil

	case opPrefixFC:
		return ex.stepSaturatingConversion(frame)
	}

	if op.hasMemarg() {
		return ex.stepMemoryAccess(frame, op)
	}

	return ex.stepNumeric(op)
}

func (ex *executor) readLabelIndex(frame *execFrame) (uint32, error) {
	c := frame.cursor()
	idx, err := c.readVaruint32()
	if err != nil {
		return 0, err
	}
	frame.advanceTo(c)
	return idx, nil
}

// readLocalIndex also serves global/local/type indices: all are a single
// varuint32 immediately after the opcode byte.
func (ex *executor) readLocalIndex(frame *execFrame) (uint32, error) { return ex.readLabelIndex(frame) }

func (ex *executor) memory() (*Memory, error) {
	if ex.inst.memory == nil {
		return nil, interpErrorf("%w", ErrNoMemory)
	}
	return ex.inst.memory, nil
}

// stepBlockLike pushes the label introduced by block/loop/if, consulting
// (and populating) the function's jump caches to avoid rescanning the same
// bytecode region on every loop iteration.
func (ex *executor) stepBlockLike(frame *execFrame, op opcode) error {
	opcodePC := frame.pc - 1
	c := frame.cursor()
	blockType, err := c.readBlockType()
	if err != nil {
		return err
	}
	frame.advanceTo(c)
	arity := blockResultArity(blockType)

	switch op {
	case opLoop:
		frame.labels = append(frame.labels, label{
			targetPC:    frame.pc,
			stackHeight: ex.stack.size(),
			resultArity: arity,
			isLoop:      true,
		})
		return nil
	case opBlock:
		target, err := frame.fn.matchingEnd(frame.fn.Code.Body, opcodePC, frame.pc)
		if err != nil {
			return err
		}
		frame.labels = append(frame.labels, label{
			targetPC:    target,
			stackHeight: ex.stack.size(),
			resultArity: arity,
		})
		return nil
	default: // opIf
		cond, err := ex.stack.popInt32()
		if err != nil {
			return err
		}
		elseTarget, hasElse, endTarget, err := frame.fn.matchingElseOrEnd(frame.fn.Code.Body, opcodePC, frame.pc)
		if err != nil {
			return err
		}
		frame.labels = append(frame.labels, label{
			targetPC:    endTarget,
			stackHeight: ex.stack.size(),
			resultArity: arity,
		})
		if cond == 0 {
			if hasElse {
				frame.pc = elseTarget
			} else {
				// The then-arm never ran, so the label we just pushed for it
				// never gets closed by a matching `end`; drop it ourselves.
				frame.labels = frame.labels[:len(frame.labels)-1]
				frame.pc = endTarget
			}
		}
		return nil
	}
}

// stepElse is reached only by falling through the end of a then-arm: jump
// past the else-arm to the if's matching end. The then-arm, if well-typed,
// already left exactly the block's result arity on the stack, so unlike a
// branch this does not unwind.
func (ex *executor) stepElse(frame *execFrame) error {
	if len(frame.labels) == 0 {
		return interpErrorf("else with no enclosing if")
	}
	lbl := frame.labels[len(frame.labels)-1]
	frame.labels = frame.labels[:len(frame.labels)-1]
	frame.pc = lbl.targetPC
	return nil
}

func (ex *executor) stepEnd(frame *execFrame) error {
	if len(frame.labels) == 0 {
		return interpErrorf("end with no enclosing block")
	}
	lbl := frame.labels[len(frame.labels)-1]
	frame.labels = frame.labels[:len(frame.labels)-1]
	return ex.stack.unwind(lbl.stackHeight, lbl.resultArity)
}

func (ex *executor) stepBrTable(frame *execFrame) error {
	c := frame.cursor()
	count, err := c.readVaruint32()
	if err != nil {
		return err
	}
	targets := make([]uint32, count+1)
	for i := range targets {
		targets[i], err = c.readVaruint32()
		if err != nil {
			return err
		}
	}
	frame.advanceTo(c)

	index, err := ex.stack.popInt32()
	if err != nil {
		return err
	}
	var labelIndex uint32
	if index >= 0 && uint32(index) < count {
		labelIndex = targets[index]
	} else {
		labelIndex = targets[count]
	}
	return ex.branch(frame, labelIndex)
}

func (ex *executor) stepCall(frame *execFrame) error {
	idx, err := ex.readLabelIndex(frame)
	if err != nil {
		return err
	}
	if int(idx) >= len(ex.inst.funcs) {
		return interpErrorf("%w: function %d", ErrIndexOutOfRange, idx)
	}
	return ex.call(ex.inst.funcs[idx])
}

func (ex *executor) stepCallIndirect(frame *execFrame) error {
	c := frame.cursor()
	typeIdx, err := c.readVaruint32()
	if err != nil {
		return err
	}
	if _, err := c.readVaruint32(); err != nil { // reserved table index, always 0
		return err
	}
	frame.advanceTo(c)

	if int(typeIdx) >= len(ex.inst.module.Types) {
		return interpErrorf("%w: type %d", ErrIndexOutOfRange, typeIdx)
	}
	expected := &ex.inst.module.Types[typeIdx]

	if ex.inst.table == nil {
		return trap(ErrUndefinedElement)
	}
	elemIndex, err := ex.stack.popInt32()
	if err != nil {
		return err
	}
	funcIndex, err := ex.inst.table.Get(elemIndex)
	if err != nil {
		return err
	}
	if int(funcIndex) >= len(ex.inst.funcs) {
		return interpErrorf("%w: function %d", ErrIndexOutOfRange, funcIndex)
	}
	fn := ex.inst.funcs[funcIndex]
	if !fn.GetType().Equal(expected) {
		return trap(ErrIndirectCallTypeMismatch)
	}
	return ex.call(fn)
}

func (ex *executor) stepSelect() error {
	c, err := ex.stack.popInt32()
	if err != nil {
		return err
	}
	b, err := ex.stack.pop()
	if err != nil {
		return err
	}
	a, err := ex.stack.pop()
	if err != nil {
		return err
	}
	if c != 0 {
		ex.stack.data = append(ex.stack.data, a)
	} else {
		ex.stack.data = append(ex.stack.data, b)
	}
	return nil
}

func (ex *executor) stepMemoryAccess(frame *execFrame, op opcode) error {
	c := frame.cursor()
	if _, err := c.readVaruint32(); err != nil { // align, unused
		return err
	}
	offset, err := c.readVaruint32()
	if err != nil {
		return err
	}
	frame.advanceTo(c)

	mem, err := ex.memory()
	if err != nil {
		return err
	}

	if isStoreOpcode(op) {
		return ex.stepStore(mem, op, offset)
	}
	return ex.stepLoad(mem, op, offset)
}

func isStoreOpcode(op opcode) bool {
	switch op {
	case opI32Store, opI64Store, opF32Store, opF64Store,
		opI32Store8, opI32Store16, opI64Store8, opI64Store16, opI64Store32:
		return true
	default:
		return false
	}
}

func (ex *executor) stepLoad(mem *Memory, op opcode, offset uint32) error {
	base, err := ex.stack.popInt32()
	if err != nil {
		return err
	}
	addr, err := effectiveAddress(base, offset)
	if err != nil {
		return err
	}
	switch op {
	case opI32Load:
		v, err := mem.LoadU32(addr)
		if err != nil {
			return err
		}
		ex.stack.pushInt32(int32(v))
	case opI64Load:
		v, err := mem.LoadU64(addr)
		if err != nil {
			return err
		}
		ex.stack.pushInt64(int64(v))
	case opF32Load:
		v, err := mem.LoadU32(addr)
		if err != nil {
			return err
		}
		ex.stack.pushFloat32(float32FromBits(v))
	case opF64Load:
		v, err := mem.LoadU64(addr)
		if err != nil {
			return err
		}
		ex.stack.pushFloat64(float64FromBits(v))
	case opI32Load8S:
		v, err := mem.LoadU8(addr)
		if err != nil {
			return err
		}
		ex.stack.pushInt32(signExtend8To32(v))
	case opI32Load8U:
		v, err := mem.LoadU8(addr)
		if err != nil {
			return err
		}
		ex.stack.pushInt32(int32(v))
	case opI32Load16S:
		v, err := mem.LoadU16(addr)
		if err != nil {
			return err
		}
		ex.stack.pushInt32(signExtend16To32(v))
	case opI32Load16U:
		v, err := mem.LoadU16(addr)
		if err != nil {
			return err
		}
		ex.stack.pushInt32(int32(v))
	case opI64Load8S:
		v, err := mem.LoadU8(addr)
		if err != nil {
			return err
		}
		ex.stack.pushInt64(signExtend8To64(v))
	case opI64Load8U:
		v, err := mem.LoadU8(addr)
		if err != nil {
			return err
		}
		ex.stack.pushInt64(int64(v))
	case opI64Load16S:
		v, err := mem.LoadU16(addr)
		if err != nil {
			return err
		}
		ex.stack.pushInt64(signExtend16To64(v))
	case opI64Load16U:
		v, err := mem.LoadU16(addr)
		if err != nil {
			return err
		}
		ex.stack.pushInt64(int64(v))
	case opI64Load32S:
		v, err := mem.LoadU32(addr)
		if err != nil {
			return err
		}
		ex.stack.pushInt64(signExtend32To64(v))
	case opI64Load32U:
		v, err := mem.LoadU32(addr)
		if err != nil {
			return err
		}
		ex.stack.pushInt64(int64(v))
	default:
		return interpErrorf("%w: 0x%x", ErrUnknownOpcode, byte(op))
	}
	return nil
}

func (ex *executor) stepStore(mem *Memory, op opcode, offset uint32) error {
	switch op {
	case opI32Store, opI32Store8, opI32Store16:
		v, err := ex.stack.popInt32()
		if err != nil {
			return err
		}
		base, err := ex.stack.popInt32()
		if err != nil {
			return err
		}
		addr, err := effectiveAddress(base, offset)
		if err != nil {
			return err
		}
		switch op {
		case opI32Store:
			return mem.StoreU32(addr, uint32(v))
		case opI32Store8:
			return mem.StoreU8(addr, uint8(v))
		default:
			return mem.StoreU16(addr, uint16(v))
		}
	case opI64Store, opI64Store8, opI64Store16, opI64Store32:
		v, err := ex.stack.popInt64()
		if err != nil {
			return err
		}
		base, err := ex.stack.popInt32()
		if err != nil {
			return err
		}
		addr, err := effectiveAddress(base, offset)
		if err != nil {
			return err
		}
		switch op {
		case opI64Store:
			return mem.StoreU64(addr, uint64(v))
		case opI64Store8:
			return mem.StoreU8(addr, uint8(v))
		case opI64Store16:
			return mem.StoreU16(addr, uint16(v))
		default:
			return mem.StoreU32(addr, uint32(v))
		}
	case opF32Store:
		v, err := ex.stack.popFloat32()
		if err != nil {
			return err
		}
		base, err := ex.stack.popInt32()
		if err != nil {
			return err
		}
		addr, err := effectiveAddress(base, offset)
		if err != nil {
			return err
		}
		return mem.StoreU32(addr, float32Bits(v))
	case opF64Store:
		v, err := ex.stack.popFloat64()
		if err != nil {
			return err
		}
		base, err := ex.stack.popInt32()
		if err != nil {
			return err
		}
		addr, err := effectiveAddress(base, offset)
		if err != nil {
			return err
		}
		return mem.StoreU64(addr, float64Bits(v))
	default:
		return interpErrorf("%w: 0x%x", ErrUnknownOpcode, byte(op))
	}
}

func (ex *executor) stepSaturatingConversion(frame *execFrame) error {
	c := frame.cursor()
	sub, err := c.readVaruint32()
	if err != nil {
		return err
	}
	frame.advanceTo(c)

	switch sub {
	case satI32TruncSatF32S:
		v, err := ex.stack.popFloat32()
		if err != nil {
			return err
		}
		ex.stack.pushInt32(truncSatF32SToI32(v))
	case satI32TruncSatF32U:
		v, err := ex.stack.popFloat32()
		if err != nil {
			return err
		}
		ex.stack.pushInt32(truncSatF32UToI32(v))
	case satI32TruncSatF64S:
		v, err := ex.stack.popFloat64()
		if err != nil {
			return err
		}
		ex.stack.pushInt32(truncSatF64SToI32(v))
	case satI32TruncSatF64U:
		v, err := ex.stack.popFloat64()
		if err != nil {
			return err
		}
		ex.stack.pushInt32(truncSatF64UToI32(v))
	case satI64TruncSatF32S:
		v, err := ex.stack.popFloat32()
		if err != nil {
			return err
		}
		ex.stack.pushInt64(truncSatF32SToI64(v))
	case satI64TruncSatF32U:
		v, err := ex.stack.popFloat32()
		if err != nil {
			return err
		}
		ex.stack.pushInt64(truncSatF32UToI64(v))
	case satI64TruncSatF64S:
		v, err := ex.stack.popFloat64()
		if err != nil {
			return err
		}
		ex.stack.pushInt64(truncSatF64SToI64(v))
	case satI64TruncSatF64U:
		v, err := ex.stack.popFloat64()
		if err != nil {
			return err
		}
		ex.stack.pushInt64(truncSatF64UToI64(v))
	default:
		return interpErrorf("%w: saturating sub-opcode %d", ErrUnknownOpcode, sub)
	}
	return nil
}

// stepNumeric dispatches every opcode with no immediates: comparisons,
// arithmetic, conversions. It is the largest switch in the interpreter by
// instruction count, mirroring the teacher's handle* family but folded
// into direct stack operations since each of these opcodes touches the
// stack exactly once.
func (ex *executor) stepNumeric(op opcode) error {
	s := ex.stack
	switch op {
	case opI32Eqz:
		v, err := s.popInt32()
		if err != nil {
			return err
		}
		s.pushInt32(boolToInt32(v == 0))
	case opI32Eq, opI32Ne, opI32LtS, opI32LtU, opI32GtS, opI32GtU, opI32LeS, opI32LeU, opI32GeS, opI32GeU:
		b, err := s.popInt32()
		if err != nil {
			return err
		}
		a, err := s.popInt32()
		if err != nil {
			return err
		}
		s.pushInt32(boolToInt32(compareI32(op, a, b)))
	case opI64Eqz:
		v, err := s.popInt64()
		if err != nil {
			return err
		}
		s.pushInt32(boolToInt32(v == 0))
	case opI64Eq, opI64Ne, opI64LtS, opI64LtU, opI64GtS, opI64GtU, opI64LeS, opI64LeU, opI64GeS, opI64GeU:
		b, err := s.popInt64()
		if err != nil {
			return err
		}
		a, err := s.popInt64()
		if err != nil {
			return err
		}
		s.pushInt32(boolToInt32(compareI64(op, a, b)))
	case opF32Eq, opF32Ne, opF32Lt, opF32Gt, opF32Le, opF32Ge:
		b, err := s.popFloat32()
		if err != nil {
			return err
		}
		a, err := s.popFloat32()
		if err != nil {
			return err
		}
		s.pushInt32(boolToInt32(compareF32(op, a, b)))
	case opF64Eq, opF64Ne, opF64Lt, opF64Gt, opF64Le, opF64Ge:
		b, err := s.popFloat64()
		if err != nil {
			return err
		}
		a, err := s.popFloat64()
		if err != nil {
			return err
		}
		s.pushInt32(boolToInt32(compareF64(op, a, b)))

	case opI32Clz:
		return unaryI32(s, clz32)
	case opI32Ctz:
		return unaryI32(s, ctz32)
	case opI32Popcnt:
		return unaryI32(s, popcnt32)
	case opI32Add:
		return binaryI32(s, func(a, b int32) int32 { return a + b })
	case opI32Sub:
		return binaryI32(s, func(a, b int32) int32 { return a - b })
	case opI32Mul:
		return binaryI32(s, func(a, b int32) int32 { return a * b })
	case opI32DivS:
		return binaryI32Trap(s, divS32)
	case opI32DivU:
		return binaryI32Trap(s, divU32)
	case opI32RemS:
		return binaryI32Trap(s, remS32)
	case opI32RemU:
		return binaryI32Trap(s, remU32)
	case opI32And:
		return binaryI32(s, func(a, b int32) int32 { return a & b })
	case opI32Or:
		return binaryI32(s, func(a, b int32) int32 { return a | b })
	case opI32Xor:
		return binaryI32(s, func(a, b int32) int32 { return a ^ b })
	case opI32Shl:
		return binaryI32(s, shl32)
	case opI32ShrS:
		return binaryI32(s, shrS32)
	case opI32ShrU:
		return binaryI32(s, shrU32)
	case opI32Rotl:
		return binaryI32(s, rotl32)
	case opI32Rotr:
		return binaryI32(s, rotr32)

	case opI64Clz:
		return unaryI64(s, clz64)
	case opI64Ctz:
		return unaryI64(s, ctz64)
	case opI64Popcnt:
		return unaryI64(s, popcnt64)
	case opI64Add:
		return binaryI64(s, func(a, b int64) int64 { return a + b })
	case opI64Sub:
		return binaryI64(s, func(a, b int64) int64 { return a - b })
	case opI64Mul:
		return binaryI64(s, func(a, b int64) int64 { return a * b })
	case opI64DivS:
		return binaryI64Trap(s, divS64)
	case opI64DivU:
		return binaryI64Trap(s, divU64)
	case opI64RemS:
		return binaryI64Trap(s, remS64)
	case opI64RemU:
		return binaryI64Trap(s, remU64)
	case opI64And:
		return binaryI64(s, func(a, b int64) int64 { return a & b })
	case opI64Or:
		return binaryI64(s, func(a, b int64) int64 { return a | b })
	case opI64Xor:
		return binaryI64(s, func(a, b int64) int64 { return a ^ b })
	case opI64Shl:
		return binaryI64(s, shl64)
	case opI64ShrS:
		return binaryI64(s, shrS64)
	case opI64ShrU:
		return binaryI64(s, shrU64)
	case opI64Rotl:
		return binaryI64(s, rotl64)
	case opI64Rotr:
		return binaryI64(s, rotr64)

	case opF32Abs:
		return unaryF32(s, func(a float32) float32 { return float32(absF(float64(a))) })
	case opF32Neg:
		return unaryF32(s, func(a float32) float32 { return -a })
	case opF32Ceil:
		return unaryF32(s, ceilF32)
	case opF32Floor:
		return unaryF32(s, floorF32)
	case opF32Trunc:
		return unaryF32(s, truncF32)
	case opF32Nearest:
		return unaryF32(s, nearest32)
	case opF32Sqrt:
		return unaryF32(s, sqrtF32)
	case opF32Add:
		return binaryF32(s, func(a, b float32) float32 { return a + b })
	case opF32Sub:
		return binaryF32(s, func(a, b float32) float32 { return a - b })
	case opF32Mul:
		return binaryF32(s, func(a, b float32) float32 { return a * b })
	case opF32Div:
		return binaryF32(s, func(a, b float32) float32 { return a / b })
	case opF32Min:
		return binaryF32(s, wasmMin32)
	case opF32Max:
		return binaryF32(s, wasmMax32)
	case opF32Copysign:
		return binaryF32(s, copysignF32)

	case opF64Abs:
		return unaryF64(s, absF)
	case opF64Neg:
		return unaryF64(s, func(a float64) float64 { return -a })
	case opF64Ceil:
		return unaryF64(s, ceilF64)
	case opF64Floor:
		return unaryF64(s, floorF64)
	case opF64Trunc:
		return unaryF64(s, truncF64)
	case opF64Nearest:
		return unaryF64(s, nearest64)
	case opF64Sqrt:
		return unaryF64(s, sqrtF64)
	case opF64Add:
		return binaryF64(s, func(a, b float64) float64 { return a + b })
	case opF64Sub:
		return binaryF64(s, func(a, b float64) float64 { return a - b })
	case opF64Mul:
		return binaryF64(s, func(a, b float64) float64 { return a * b })
	case opF64Div:
		return binaryF64(s, func(a, b float64) float64 { return a / b })
	case opF64Min:
		return binaryF64(s, wasmMin64)
	case opF64Max:
		return binaryF64(s, wasmMax64)
	case opF64Copysign:
		return binaryF64(s, copysignF64)

	case opI32WrapI64:
		v, err := s.popInt64()
		if err != nil {
			return err
		}
		s.pushInt32(int32(v))
	case opI32TruncF32S:
		return convert(s, s.popFloat32, s.pushInt32, truncF32SToI32)
	case opI32TruncF32U:
		return convert(s, s.popFloat32, s.pushInt32, truncF32UToI32)
	case opI32TruncF64S:
		return convert(s, s.popFloat64, s.pushInt32, truncF64SToI32)
	case opI32TruncF64U:
		return convert(s, s.popFloat64, s.pushInt32, truncF64UToI32)
	case opI64ExtendI32S:
		v, err := s.popInt32()
		if err != nil {
			return err
		}
		s.pushInt64(int64(v))
	case opI64ExtendI32U:
		v, err := s.popInt32()
		if err != nil {
			return err
		}
		s.pushInt64(int64(uint32(v)))
	case opI64TruncF32S:
		return convert(s, s.popFloat32, s.pushInt64, truncF32SToI64)
	case opI64TruncF32U:
		return convert(s, s.popFloat32, s.pushInt64, truncF32UToI64)
	case opI64TruncF64S:
		return convert(s, s.popFloat64, s.pushInt64, truncF64SToI64)
	case opI64TruncF64U:
		return convert(s, s.popFloat64, s.pushInt64, truncF64UToI64)
	case opF32ConvertI32S:
		v, err := s.popInt32()
		if err != nil {
			return err
		}
		s.pushFloat32(float32(v))
	case opF32ConvertI32U:
		v, err := s.popInt32()
		if err != nil {
			return err
		}
		s.pushFloat32(float32(uint32(v)))
	case opF32ConvertI64S:
		v, err := s.popInt64()
		if err != nil {
			return err
		}
		s.pushFloat32(float32(v))
	case opF32ConvertI64U:
		v, err := s.popInt64()
		if err != nil {
			return err
		}
		s.pushFloat32(float32(uint64(v)))
	case opF32DemoteF64:
		v, err := s.popFloat64()
		if err != nil {
			return err
		}
		s.pushFloat32(float32(v))
	case opF64ConvertI32S:
		v, err := s.popInt32()
		if err != nil {
			return err
		}
		s.pushFloat64(float64(v))
	case opF64ConvertI32U:
		v, err := s.popInt32()
		if err != nil {
			return err
		}
		s.pushFloat64(float64(uint32(v)))
	case opF64ConvertI64S:
		v, err := s.popInt64()
		if err != nil {
			return err
		}
		s.pushFloat64(float64(v))
	case opF64ConvertI64U:
		v, err := s.popInt64()
		if err != nil {
			return err
		}
		s.pushFloat64(float64(uint64(v)))
	case opF64PromoteF32:
		v, err := s.popFloat32()
		if err != nil {
			return err
		}
		s.pushFloat64(float64(v))
	case opI32ReinterpretF32:
		v, err := s.popFloat32()
		if err != nil {
			return err
		}
		s.pushInt32(int32(float32Bits(v)))
	case opI64ReinterpretF64:
		v, err := s.popFloat64()
		if err != nil {
			return err
		}
		s.pushInt64(int64(float64Bits(v)))
	case opF32ReinterpretI32:
		v, err := s.popInt32()
		if err != nil {
			return err
		}
		s.pushFloat32(float32FromBits(uint32(v)))
	case opF64ReinterpretI64:
		v, err := s.popInt64()
		if err != nil {
			return err
		}
		s.pushFloat64(float64FromBits(uint64(v)))

	default:
		return interpErrorf("%w: 0x%x", ErrUnknownOpcode, byte(op))
	}
	return nil
}

func compareI32(op opcode, a, b int32) bool {
	switch op {
	case opI32Eq:
		return a == b
	case opI32Ne:
		return a != b
	case opI32LtS:
		return a < b
	case opI32LtU:
		return lessThanU32(a, b)
	case opI32GtS:
		return a > b
	case opI32GtU:
		return greaterThanU32(a, b)
	case opI32LeS:
		return a <= b
	case opI32LeU:
		return lessOrEqualU32(a, b)
	case opI32GeS:
		return a >= b
	default: // opI32GeU
		return greaterOrEqualU32(a, b)
	}
}

func compareI64(op opcode, a, b int64) bool {
	switch op {
	case opI64Eq:
		return a == b
	case opI64Ne:
		return a != b
	case opI64LtS:
		return a < b
	case opI64LtU:
		return lessThanU64(a, b)
	case opI64GtS:
		return a > b
	case opI64GtU:
		return greaterThanU64(a, b)
	case opI64LeS:
		return a <= b
	case opI64LeU:
		return lessOrEqualU64(a, b)
	case opI64GeS:
		return a >= b
	default: // opI64GeU
		return greaterOrEqualU64(a, b)
	}
}

func compareF32(op opcode, a, b float32) bool {
	switch op {
	case opF32Eq:
		return a == b
	case opF32Ne:
		return a != b
	case opF32Lt:
		return a < b
	case opF32Gt:
		return a > b
	case opF32Le:
		return a <= b
	default: // opF32Ge
		return a >= b
	}
}

func compareF64(op opcode, a, b float64) bool {
	switch op {
	case opF64Eq:
		return a == b
	case opF64Ne:
		return a != b
	case opF64Lt:
		return a < b
	case opF64Gt:
		return a > b
	case opF64Le:
		return a <= b
	default: // opF64Ge
		return a >= b
	}
}

func unaryI32(s *valueStack, f func(int32) int32) error {
	v, err := s.popInt32()
	if err != nil {
		return err
	}
	s.pushInt32(f(v))
	return nil
}

func unaryI64(s *valueStack, f func(int64) int64) error {
	v, err := s.popInt64()
	if err != nil {
		return err
	}
	s.pushInt64(f(v))
	return nil
}

func unaryF32(s *valueStack, f func(float32) float32) error {
	v, err := s.popFloat32()
	if err != nil {
		return err
	}
	s.pushFloat32(f(v))
	return nil
}

func unaryF64(s *valueStack, f func(float64) float64) error {
	v, err := s.popFloat64()
	if err != nil {
		return err
	}
	s.pushFloat64(f(v))
	return nil
}

func binaryI32(s *valueStack, f func(a, b int32) int32) error {
	b, err := s.popInt32()
	if err != nil {
		return err
	}
	a, err := s.popInt32()
	if err != nil {
		return err
	}
	s.pushInt32(f(a, b))
	return nil
}

func binaryI64(s *valueStack, f func(a, b int64) int64) error {
	b, err := s.popInt64()
	if err != nil {
		return err
	}
	a, err := s.popInt64()
	if err != nil {
		return err
	}
	s.pushInt64(f(a, b))
	return nil
}

func binaryF32(s *valueStack, f func(a, b float32) float32) error {
	b, err := s.popFloat32()
	if err != nil {
		return err
	}
	a, err := s.popFloat32()
	if err != nil {
		return err
	}
	s.pushFloat32(f(a, b))
	return nil
}

func binaryF64(s *valueStack, f func(a, b float64) float64) error {
	b, err := s.popFloat64()
	if err != nil {
		return err
	}
	a, err := s.popFloat64()
	if err != nil {
		return err
	}
	s.pushFloat64(f(a, b))
	return nil
}

// binaryI32Trap/binaryI64Trap wrap numeric.go's trap-returning division and
// remainder helpers, converting their sentinel errors into Traps.
func binaryI32Trap(s *valueStack, f func(a, b int32) (int32, error)) error {
	b, err := s.popInt32()
	if err != nil {
		return err
	}
	a, err := s.popInt32()
	if err != nil {
		return err
	}
	r, err := f(a, b)
	if err != nil {
		return trap(err)
	}
	s.pushInt32(r)
	return nil
}

func binaryI64Trap(s *valueStack, f func(a, b int64) (int64, error)) error {
	b, err := s.popInt64()
	if err != nil {
		return err
	}
	a, err := s.popInt64()
	if err != nil {
		return err
	}
	r, err := f(a, b)
	if err != nil {
		return trap(err)
	}
	s.pushInt64(r)
	return nil
}

// convert pops a value with pop, runs the trapping conversion f, and
// pushes the result with push. Generic over the two popped/pushed Go
// numeric types since every truncating conversion follows this shape.
func convert[S, R any](s *valueStack, pop func() (S, error), push func(R), f func(S) (R, error)) error {
	v, err := pop()
	if err != nil {
		return err
	}
	r, err := f(v)
	if err != nil {
		return trap(err)
	}
	push(r)
	return nil
}
