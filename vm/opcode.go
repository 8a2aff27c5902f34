// Package vm implements VM dispatch (component F), call/error machinery
// (component G), and coroutine integration (component J): the
// register-based bytecode interpreter and everything that runs inside
// one thread group.
//
// Opcode layout is grounded on the reference language's well-known
// 32-bit instruction encoding (6-bit opcode, 8-bit A, 9-bit B/C or an
// 18-bit Bx/signed sBx), which spec.md §4.F assumes without
// respecifying — the compiler and VM in this module are the only two
// consumers of the encoding, so it is defined once here.
package vm

import "github.com/taintscript/seclua/bytecode"

// Opcode is one VM instruction's operation code. Only the opcodes spec
// §4.F names explicit taint rules for, plus the minimal control-flow and
// table/closure support the compiler needs to emit anything runnable,
// are implemented.
type Opcode uint8

const (
	OpLoadK Opcode = iota
	OpLoadBool
	OpLoadNil
	OpMove
	OpGetGlobal
	OpSetGlobal
	OpGetUpval
	OpSetUpval
	OpGetTable
	OpSetTable
	OpSelf
	OpNewTable
	OpSetList
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpUnm
	OpNot
	OpLen
	OpConcat
	OpEq
	OpLt
	OpLe
	OpJmp
	OpTest
	OpTestSet
	OpCall
	OpTailCall
	OpReturn
	OpVararg
	OpClosure
	OpForPrep
	OpForLoop
	OpClose
)

const (
	// opMaxA/opMaxB/opMaxC/opMaxBx bound the packed operand fields; codegen must stay
	// within these or the encoding silently truncates, matching the
	// reference format's own fixed field widths.
	opBBits  = 9
	opCBits  = 9
	opABits  = 8
	opBxBits = opBBits + opCBits

	opMaxA  = 1<<opABits - 1
	opMaxB  = 1<<opBBits - 1
	opMaxC  = 1<<opCBits - 1
	opMaxBx = 1<<opBxBits - 1

	sBxBias = opMaxBx >> 1
)

// Instr is a decoded instruction: opcode plus its three operand fields.
// B/C double as a combined Bx (unsigned) or sBx (signed, bias-encoded)
// for opcodes that need a wider immediate (LOADK's constant index, JMP's
// branch offset, CLOSURE's prototype index).
type Instr struct {
	Op   Opcode
	A    int
	B    int
	C    int
}

// Bx reinterprets B/C as one unsigned 18-bit field.
func (i Instr) Bx() int { return i.B<<opCBits | i.C }

// SBx reinterprets B/C as one signed, bias-encoded 18-bit field.
func (i Instr) SBx() int { return i.Bx() - sBxBias }

// Encode packs op/A/B/C into a bytecode.Instruction word.
func Encode(op Opcode, a, b, c int) bytecode.Instruction {
	return bytecode.Instruction(uint32(op) | uint32(a)<<6 | uint32(b)<<(6+opABits) | uint32(c)<<(6+opABits+opBBits))
}

// EncodeBx packs op/A/Bx.
func EncodeBx(op Opcode, a, bx int) bytecode.Instruction {
	return Encode(op, a, bx>>opCBits, bx&opMaxC)
}

// EncodeSBx packs op/A/sBx.
func EncodeSBx(op Opcode, a, sbx int) bytecode.Instruction {
	return EncodeBx(op, a, sbx+sBxBias)
}

// Decode unpacks a raw instruction word.
func Decode(raw bytecode.Instruction) Instr {
	w := uint32(raw)
	return Instr{
		Op: Opcode(w & 0x3F),
		A:  int((w >> 6) & opMaxA),
		B:  int((w >> (6 + opABits)) & opMaxB),
		C:  int((w >> (6 + opABits + opBBits)) & opMaxC),
	}
}
