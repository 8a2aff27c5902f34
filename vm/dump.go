package vm

import (
	"github.com/taintscript/seclua/bytecode"
	"github.com/taintscript/seclua/value"
)

// ToChunk converts a runtime Proto tree back into a bytecode.Chunk ready
// for bytecode.Dump — the inverse of NewProtoFromChunk, used by
// cmd/secluac to precompile a source chunk to disk. Taint never
// round-trips through this conversion (spec §6): a dumped constant
// carries only its type tag and raw value, never the value.Value.Taint
// field a compiled chunk's constants may have accumulated at load time.
func (p *Proto) ToChunk() *bytecode.Chunk {
	return &bytecode.Chunk{Header: bytecode.DefaultHeader, Main: p.toBytecodeProto()}
}

func (p *Proto) toBytecodeProto() *bytecode.Proto {
	bp := &bytecode.Proto{
		Source:       p.Source,
		LineDefined:  p.LineDefined,
		LastLineDef:  p.LineDefined,
		NumUpvalues:  p.NumUpvalues,
		NumParams:    p.NumParams,
		IsVararg:     p.IsVararg,
		MaxStackSize: p.MaxStackSize,
		Lines:        p.Lines,
		Locals:       p.Locals,
		UpvalueNames: p.UpvalueNames,
	}
	bp.Code = make([]bytecode.Instruction, len(p.Code))
	for i, instr := range p.Code {
		bp.Code[i] = Encode(instr.Op, instr.A, instr.B, instr.C)
	}
	bp.Constants = make([]bytecode.Const, len(p.Constants))
	for i, c := range p.Constants {
		bp.Constants[i] = valueToConst(c)
	}
	bp.Prototypes = make([]*bytecode.Proto, len(p.Prototypes))
	for i, sub := range p.Prototypes {
		bp.Prototypes[i] = sub.toBytecodeProto()
	}
	return bp
}

func valueToConst(v value.Value) bytecode.Const {
	switch v.Type {
	case value.TypeBoolean:
		return bytecode.Const{Type: 1, Bool: v.Bool}
	case value.TypeNumber:
		return bytecode.Const{Type: 3, Num: v.Number}
	case value.TypeString:
		return bytecode.Const{Type: 4, Str: v.Str}
	default:
		return bytecode.Const{Type: 0}
	}
}
