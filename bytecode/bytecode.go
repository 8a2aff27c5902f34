// Package bytecode implements the precompiled-chunk wire format (spec
// §6): the base language's unmodified binary dump format — signature
// `ESC L u a`, a version byte, size-of-int/size-of-number header fields,
// and function prototype records (constant pool, code vector, line info,
// local/upvalue names). Taint is never part of this format: a loaded
// chunk's object taint comes from the loading thread's allocation state,
// not from the bytes on disk.
//
// Grounded on spec.md §6 (this runtime's own original_source/ retrieval
// did not include lundump.c — the dump/undump format is named only at
// the header level there too, so the concrete byte layout here follows
// the reference language's well-known precompiled-chunk format that
// spec.md §6 describes byte-for-byte).
package bytecode

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Signature is the four-byte magic every precompiled chunk starts with.
var Signature = [4]byte{0x1B, 'L', 'u', 'a'}

// Version is the single version byte this package writes and accepts.
const Version = 0x51

const (
	formatOfficial  = 0
	bigEndian       = 0
	littleEndianTag = 1
)

// Header carries the size-of-int/size-of-number fields a dump records, so
// Undump can refuse chunks built for an incompatible host.
type Header struct {
	Endian        byte // 0 big, 1 little
	SizeInt       byte
	SizeSizeT     byte
	SizeInstr     byte
	SizeNumber    byte
	NumberIsFloat byte // 0 integral lua_Number representation, 1 floating point
}

// DefaultHeader matches the sizes this package's own Dump produces.
var DefaultHeader = Header{
	Endian:        littleEndianTag,
	SizeInt:       4,
	SizeSizeT:     8,
	SizeInstr:     4,
	SizeNumber:    8,
	NumberIsFloat: 1,
}

// Instruction is one packed VM opcode word, opaque to this package —
// `compiler` produces them, `vm` decodes them; bytecode only moves bytes.
type Instruction uint32

// LocalVar names one local variable's live range, for debug info and the
// debug-API local-store accessor family in `query`.
type LocalVar struct {
	Name    string
	StartPC int
	EndPC   int
}

// Const is one constant-pool entry. Only the tag/value are stored — no
// taint field exists in the wire format (spec §6).
type Const struct {
	Type  byte // mirrors value.Type for Nil/Boolean/Number/String
	Bool  bool
	Num   float64
	Str   string
}

// Proto is one function prototype record.
type Proto struct {
	Source         string
	LineDefined    int
	LastLineDef    int
	NumUpvalues    int
	NumParams      int
	IsVararg       bool
	MaxStackSize   int
	Code           []Instruction
	Constants      []Const
	Prototypes     []*Proto
	Lines          []int
	Locals         []LocalVar
	UpvalueNames   []string
}

// Chunk is a fully decoded precompiled chunk: header plus the top-level
// function prototype (which nests every other prototype in the file).
type Chunk struct {
	Header Header
	Main   *Proto
}

// Dump writes chunk to w in the wire format described above. Dump never
// writes taint — callers that want a chunk's constants to start tainted
// stamp that taint after Undump, from the loading thread's state.
func Dump(w io.Writer, chunk *Chunk) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(Signature[:]); err != nil {
		return err
	}
	if err := bw.WriteByte(Version); err != nil {
		return err
	}
	if err := bw.WriteByte(formatOfficial); err != nil {
		return err
	}

	hdr := chunk.Header
	for _, b := range []byte{hdr.Endian, hdr.SizeInt, hdr.SizeSizeT, hdr.SizeInstr, hdr.SizeNumber, hdr.NumberIsFloat} {
		if err := bw.WriteByte(b); err != nil {
			return err
		}
	}

	if err := dumpProto(bw, chunk.Main); err != nil {
		return err
	}

	return bw.Flush()
}

func dumpProto(w *bufio.Writer, p *Proto) error {
	if err := dumpString(w, p.Source); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(p.LineDefined)); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(p.LastLineDef)); err != nil {
		return err
	}
	if err := w.WriteByte(byte(p.NumUpvalues)); err != nil {
		return err
	}
	if err := w.WriteByte(byte(p.NumParams)); err != nil {
		return err
	}
	if err := w.WriteByte(boolByte(p.IsVararg)); err != nil {
		return err
	}
	if err := w.WriteByte(byte(p.MaxStackSize)); err != nil {
		return err
	}

	if err := writeUint32(w, uint32(len(p.Code))); err != nil {
		return err
	}
	for _, instr := range p.Code {
		if err := writeUint32(w, uint32(instr)); err != nil {
			return err
		}
	}

	if err := writeUint32(w, uint32(len(p.Constants))); err != nil {
		return err
	}
	for _, c := range p.Constants {
		if err := dumpConst(w, c); err != nil {
			return err
		}
	}

	if err := writeUint32(w, uint32(len(p.Prototypes))); err != nil {
		return err
	}
	for _, sub := range p.Prototypes {
		if err := dumpProto(w, sub); err != nil {
			return err
		}
	}

	if err := writeUint32(w, uint32(len(p.Lines))); err != nil {
		return err
	}
	for _, l := range p.Lines {
		if err := writeUint32(w, uint32(l)); err != nil {
			return err
		}
	}

	if err := writeUint32(w, uint32(len(p.Locals))); err != nil {
		return err
	}
	for _, lv := range p.Locals {
		if err := dumpString(w, lv.Name); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(lv.StartPC)); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(lv.EndPC)); err != nil {
			return err
		}
	}

	if err := writeUint32(w, uint32(len(p.UpvalueNames))); err != nil {
		return err
	}
	for _, name := range p.UpvalueNames {
		if err := dumpString(w, name); err != nil {
			return err
		}
	}

	return nil
}

func dumpConst(w *bufio.Writer, c Const) error {
	if err := w.WriteByte(c.Type); err != nil {
		return err
	}
	switch c.Type {
	case constTypeBoolean:
		return w.WriteByte(boolByte(c.Bool))
	case constTypeNumber:
		return writeUint64(w, math.Float64bits(c.Num))
	case constTypeString:
		return dumpString(w, c.Str)
	default:
		return nil // nil constant carries no payload
	}
}

func dumpString(w *bufio.Writer, s string) error {
	if s == "" {
		return writeUint64(w, 0)
	}
	buf := []byte(s)
	if err := writeUint64(w, uint64(len(buf)+1)); err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return err
	}
	return w.WriteByte(0)
}

// Undump reads a chunk previously written by Dump (or, in principle, by
// the reference language's own luac, since the two formats coincide).
func Undump(r io.Reader, sourceName string) (*Chunk, error) {
	br := bufio.NewReader(r)

	var sig [4]byte
	if _, err := io.ReadFull(br, sig[:]); err != nil {
		return nil, fmt.Errorf("bytecode: %s: %w", sourceName, err)
	}
	if sig != Signature {
		return nil, fmt.Errorf("bytecode: %s: not a precompiled chunk", sourceName)
	}

	version, err := br.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, fmt.Errorf("bytecode: %s: version mismatch (got %#x, want %#x)", sourceName, version, Version)
	}
	if _, err := br.ReadByte(); err != nil { // format byte, unused
		return nil, err
	}

	var hdr Header
	fields := []*byte{&hdr.Endian, &hdr.SizeInt, &hdr.SizeSizeT, &hdr.SizeInstr, &hdr.SizeNumber, &hdr.NumberIsFloat}
	for _, f := range fields {
		b, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		*f = b
	}
	if hdr != DefaultHeader {
		return nil, errors.New("bytecode: chunk built for an incompatible host")
	}

	main, err := undumpProto(br, sourceName)
	if err != nil {
		return nil, err
	}

	return &Chunk{Header: hdr, Main: main}, nil
}

func undumpProto(r *bufio.Reader, chunkName string) (*Proto, error) {
	p := &Proto{}
	var err error

	if p.Source, err = undumpString(r); err != nil {
		return nil, err
	}
	if p.Source == "" {
		p.Source = chunkName
	}

	var lineDefined, lastLineDef uint32
	if lineDefined, err = readUint32(r); err != nil {
		return nil, err
	}
	if lastLineDef, err = readUint32(r); err != nil {
		return nil, err
	}
	p.LineDefined, p.LastLineDef = int(lineDefined), int(lastLineDef)

	nup, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	p.NumUpvalues = int(nup)

	nparams, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	p.NumParams = int(nparams)

	vararg, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	p.IsVararg = vararg != 0

	maxStack, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	p.MaxStackSize = int(maxStack)

	codeLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	p.Code = make([]Instruction, codeLen)
	for i := range p.Code {
		v, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		p.Code[i] = Instruction(v)
	}

	constLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	p.Constants = make([]Const, constLen)
	for i := range p.Constants {
		c, err := undumpConst(r)
		if err != nil {
			return nil, err
		}
		p.Constants[i] = c
	}

	protoLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	p.Prototypes = make([]*Proto, protoLen)
	for i := range p.Prototypes {
		sub, err := undumpProto(r, chunkName)
		if err != nil {
			return nil, err
		}
		p.Prototypes[i] = sub
	}

	lineCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	p.Lines = make([]int, lineCount)
	for i := range p.Lines {
		v, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		p.Lines[i] = int(v)
	}

	localCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	p.Locals = make([]LocalVar, localCount)
	for i := range p.Locals {
		name, err := undumpString(r)
		if err != nil {
			return nil, err
		}
		start, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		end, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		p.Locals[i] = LocalVar{Name: name, StartPC: int(start), EndPC: int(end)}
	}

	upvalCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	p.UpvalueNames = make([]string, upvalCount)
	for i := range p.UpvalueNames {
		name, err := undumpString(r)
		if err != nil {
			return nil, err
		}
		p.UpvalueNames[i] = name
	}

	return p, nil
}

const (
	constTypeNil     = 0
	constTypeBoolean = 1
	constTypeNumber  = 3
	constTypeString  = 4
)

func undumpConst(r *bufio.Reader) (Const, error) {
	t, err := r.ReadByte()
	if err != nil {
		return Const{}, err
	}
	c := Const{Type: t}
	switch t {
	case constTypeBoolean:
		b, err := r.ReadByte()
		if err != nil {
			return Const{}, err
		}
		c.Bool = b != 0
	case constTypeNumber:
		bits, err := readUint64(r)
		if err != nil {
			return Const{}, err
		}
		c.Num = math.Float64frombits(bits)
	case constTypeString:
		s, err := undumpString(r)
		if err != nil {
			return Const{}, err
		}
		c.Str = s
	}
	return c, nil
}

func undumpString(r *bufio.Reader) (string, error) {
	size, err := readUint64(r)
	if err != nil {
		return "", err
	}
	if size == 0 {
		return "", nil
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf[:size-1]), nil // drop the trailing NUL
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func writeUint32(w *bufio.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeUint64(w *bufio.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r *bufio.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readUint64(r *bufio.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
