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

// opcode is a single WASM instruction opcode byte.
// See https://webassembly.github.io/spec/core/binary/instructions.html
type opcode byte

const (
	opUnreachable opcode = 0x00
	opNop         opcode = 0x01
	opBlock       opcode = 0x02
	opLoop        opcode = 0x03
	opIf          opcode = 0x04
	opElse        opcode = 0x05
	opEnd         opcode = 0x0B
	opBr          opcode = 0x0C
	opBrIf        opcode = 0x0D
	opBrTable     opcode = 0x0E
	opReturn      opcode = 0x0F
	opCall        opcode = 0x10
	opCallIndirect opcode = 0x11

	opDrop   opcode = 0x1A
	opSelect opcode = 0x1B

	opLocalGet  opcode = 0x20
	opLocalSet  opcode = 0x21
	opLocalTee  opcode = 0x22
	opGlobalGet opcode = 0x23
	opGlobalSet opcode = 0x24

	opI32Load    opcode = 0x28
	opI64Load    opcode = 0x29
	opF32Load    opcode = 0x2A
	opF64Load    opcode = 0x2B
	opI32Load8S  opcode = 0x2C
	opI32Load8U  opcode = 0x2D
	opI32Load16S opcode = 0x2E
	opI32Load16U opcode = 0x2F
	opI64Load8S  opcode = 0x30
	opI64Load8U  opcode = 0x31
	opI64Load16S opcode = 0x32
	opI64Load16U opcode = 0x33
	opI64Load32S opcode = 0x34
	opI64Load32U opcode = 0x35
	opI32Store   opcode = 0x36
	opI64Store   opcode = 0x37
	opF32Store   opcode = 0x38
	opF64Store   opcode = 0x39
	opI32Store8  opcode = 0x3A
	opI32Store16 opcode = 0x3B
	opI64Store8  opcode = 0x3C
	opI64Store16 opcode = 0x3D
	opI64Store32 opcode = 0x3E
	opMemorySize opcode = 0x3F
	opMemoryGrow opcode = 0x40

	opI32Const opcode = 0x41
	opI64Const opcode = 0x42
	opF32Const opcode = 0x43
	opF64Const opcode = 0x44

	opI32Eqz opcode = 0x45
	opI32Eq  opcode = 0x46
	opI32Ne  opcode = 0x47
	opI32LtS opcode = 0x48
	opI32LtU opcode = 0x49
	opI32GtS opcode = 0x4A
	opI32GtU opcode = 0x4B
	opI32LeS opcode = 0x4C
	opI32LeU opcode = 0x4D
	opI32GeS opcode = 0x4E
	opI32GeU opcode = 0x4F

	opI64Eqz opcode = 0x50
	opI64Eq  opcode = 0x51
	opI64Ne  opcode = 0x52
	opI64LtS opcode = 0x53
	opI64LtU opcode = 0x54
	opI64GtS opcode = 0x55
	opI64GtU opcode = 0x56
	opI64LeS opcode = 0x57
	opI64LeU opcode = 0x58
	opI64GeS opcode = 0x59
	opI64GeU opcode = 0x5A

	opF32Eq opcode = 0x5B
	opF32Ne opcode = 0x5C
	opF32Lt opcode = 0x5D
	opF32Gt opcode = 0x5E
	opF32Le opcode = 0x5F
	opF32Ge opcode = 0x60

	opF64Eq opcode = 0x61
	opF64Ne opcode = 0x62
	opF64Lt opcode = 0x63
	opF64Gt opcode = 0x64
	opF64Le opcode = 0x65
	opF64Ge opcode = 0x66

	opI32Clz    opcode = 0x67
	opI32Ctz    opcode = 0x68
	opI32Popcnt opcode = 0x69
	opI32Add    opcode = 0x6A
	opI32Sub    opcode = 0x6B
	opI32Mul    opcode = 0x6C
	opI32DivS   opcode = 0x6D
	opI32DivU   opcode = 0x6E
	opI32RemS   opcode = 0x6F
	opI32RemU   opcode = 0x70
	opI32And    opcode = 0x71
	opI32Or     opcode = 0x72
	opI32Xor    opcode = 0x73
	opI32Shl    opcode = 0x74
	opI32ShrS   opcode = 0x75
	opI32ShrU   opcode = 0x76
	opI32Rotl   opcode = 0x77
	opI32Rotr   opcode = 0x78

	opI64Clz    opcode = 0x79
	opI64Ctz    opcode = 0x7A
	opI64Popcnt opcode = 0x7B
	opI64Add    opcode = 0x7C
	opI64Sub    opcode = 0x7D
	opI64Mul    opcode = 0x7E
	opI64DivS   opcode = 0x7F
	opI64DivU   opcode = 0x80
	opI64RemS   opcode = 0x81
	opI64RemU   opcode = 0x82
	opI64And    opcode = 0x83
	opI64Or     opcode = 0x84
	opI64Xor    opcode = 0x85
	opI64Shl    opcode = 0x86
	opI64ShrS   opcode = 0x87
	opI64ShrU   opcode = 0x88
	opI64Rotl   opcode = 0x89
	opI64Rotr   opcode = 0x8A

	opF32Abs      opcode = 0x8B
	opF32Neg      opcode = 0x8C
	opF32Ceil     opcode = 0x8D
	opF32Floor    opcode = 0x8E
	opF32Trunc    opcode = 0x8F
	opF32Nearest  opcode = 0x90
	opF32Sqrt     opcode = 0x91
	opF32Add      opcode = 0x92
	opF32Sub      opcode = 0x93
	opF32Mul      opcode = 0x94
	opF32Div      opcode = 0x95
	opF32Min      opcode = 0x96
	opF32Max      opcode = 0x97
	opF32Copysign opcode = 0x98

	opF64Abs      opcode = 0x99
	opF64Neg      opcode = 0x9A
	opF64Ceil     opcode = 0x9B
	opF64Floor    opcode = 0x9C
	opF64Trunc    opcode = 0x9D
	opF64Nearest  opcode = 0x9E
	opF64Sqrt     opcode = 0x9F
	opF64Add      opcode = 0xA0
	opF64Sub      opcode = 0xA1
	opF64Mul      opcode = 0xA2
	opF64Div      opcode = 0xA3
	opF64Min      opcode = 0xA4
	opF64Max      opcode = 0xA5
	opF64Copysign opcode = 0xA6

	opI32WrapI64      opcode = 0xA7
	opI32TruncF32S     opcode = 0xA8
	opI32TruncF32U     opcode = 0xA9
	opI32TruncF64S     opcode = 0xAA
	opI32TruncF64U     opcode = 0xAB
	opI64ExtendI32S    opcode = 0xAC
	opI64ExtendI32U    opcode = 0xAD
	opI64TruncF32S     opcode = 0xAE
	opI64TruncF32U     opcode = 0xAF
	opI64TruncF64S     opcode = 0xB0
	opI64TruncF64U     opcode = 0xB1
	opF32ConvertI32S   opcode = 0xB2
	opF32ConvertI32U   opcode = 0xB3
	opF32ConvertI64S   opcode = 0xB4
	opF32ConvertI64U   opcode = 0xB5
	opF32DemoteF64     opcode = 0xB6
	opF64ConvertI32S   opcode = 0xB7
	opF64ConvertI32U   opcode = 0xB8
	opF64ConvertI64S   opcode = 0xB9
	opF64ConvertI64U   opcode = 0xBA
	opF64PromoteF32    opcode = 0xBB
	opI32ReinterpretF32 opcode = 0xBC
	opI64ReinterpretF64 opcode = 0xBD
	opF32ReinterpretI32 opcode = 0xBE
	opF64ReinterpretI64 opcode = 0xBF

	// opPrefixFC introduces the saturating truncation sub-opcodes; the byte
	// that follows selects the operation (0x00..0x07).
	opPrefixFC opcode = 0xFC
)

// Saturating truncation sub-opcodes, selected by a varuint32 immediately
// after the 0xFC prefix byte.
const (
	satI32TruncSatF32S uint32 = 0
	satI32TruncSatF32U uint32 = 1
	satI32TruncSatF64S uint32 = 2
	satI32TruncSatF64U uint32 = 3
	satI64TruncSatF32S uint32 = 4
	satI64TruncSatF32U uint32 = 5
	satI64TruncSatF64S uint32 = 6
	satI64TruncSatF64U uint32 = 7
)

// hasMemarg reports whether op carries an (align, offset) memarg pair
// immediately after the opcode byte. Used by the label-matching forward
// scan to skip immediates correctly, per spec.md §4.4.3.
func (op opcode) hasMemarg() bool {
	switch op {
	case opI32Load, opI64Load, opF32Load, opF64Load,
		opI32Load8S, opI32Load8U, opI32Load16S, opI32Load16U,
		opI64Load8S, opI64Load8U, opI64Load16S, opI64Load16U,
		opI64Load32S, opI64Load32U,
		opI32Store, opI64Store, opF32Store, opF64Store,
		opI32Store8, opI32Store16, opI64Store8, opI64Store16, opI64Store32:
		return true
	default:
		return false
	}
}
