package vm

import (
	"github.com/taintscript/seclua/barrier"
	"github.com/taintscript/seclua/bytecode"
	"github.com/taintscript/seclua/object"
	"github.com/taintscript/seclua/value"
)

// StringObj is the heap referent backing value.TypeString, so that a
// string's *object* taint (its header) is tracked independently of the
// *value* taint of any particular reference to it (spec §3 "Heap object
// header").
type StringObj struct {
	object.Header
	S string
}

// Table is the runtime hash+array table type. Keys and values are full
// value.Value (carrying their own per-value taint); Table itself also
// carries an object.Header for its own object taint.
type Table struct {
	object.Header
	array []value.Value
	hash  map[any]tableEntry
	meta  *Table
}

type tableEntry struct {
	key value.Value
	val value.Value
}

// NewTable allocates an empty table, stamped per the allocation hook.
func NewTable(st vmstateAllocator) *Table {
	t := &Table{hash: make(map[any]tableEntry)}
	t.Header = object.Alloc(object.KindTable, st)
	return t
}

// vmstateAllocator is the subset of *vmstate.Thread object.Alloc needs;
// declared locally so `vm` doesn't force every caller to import vmstate
// just to allocate a table.
type vmstateAllocator = object.AllocState

// Get reads t[k], ignoring taint for key comparison (spec §4.B) and
// returning Nil (secure) for an absent key.
func (t *Table) Get(k value.Value) value.Value {
	if idx, ok := arrayIndex(k); ok && idx >= 1 && idx <= len(t.array) {
		return t.array[idx-1]
	}
	if e, ok := t.hash[value.HashKey(k)]; ok {
		return e.val
	}
	return value.Nil
}

// SetTable stores v at key k following the SETTABLE write-barrier rule
// (spec §4.E): the stored value's own taint is kept verbatim, and a nil
// value deletes the key, clearing taint too (barrier.TableDelete).
func (t *Table) SetTable(k, v value.Value) {
	if idx, ok := arrayIndex(k); ok && idx >= 1 {
		t.setArray(idx, v)
		return
	}
	hk := value.HashKey(k)
	if v.IsNil() {
		delete(t.hash, hk)
		return
	}
	var dst value.Value
	barrier.TableStore(&dst, v)
	t.hash[hk] = tableEntry{key: k, val: dst}
}

// RawSet is the C-API raw-set entry point (spec §4.E: "no taint added").
func (t *Table) RawSet(k, v value.Value) {
	if idx, ok := arrayIndex(k); ok && idx >= 1 {
		t.setArrayRaw(idx, v)
		return
	}
	hk := value.HashKey(k)
	if v.IsNil() {
		delete(t.hash, hk)
		return
	}
	var dst value.Value
	barrier.RawSet(&dst, v)
	t.hash[hk] = tableEntry{key: k, val: dst}
}

func (t *Table) setArray(idx int, v value.Value) {
	t.growArray(idx)
	var dst value.Value
	barrier.TableStore(&dst, v)
	t.array[idx-1] = dst
}

func (t *Table) setArrayRaw(idx int, v value.Value) {
	t.growArray(idx)
	var dst value.Value
	barrier.RawSet(&dst, v)
	t.array[idx-1] = dst
}

func (t *Table) growArray(idx int) {
	for len(t.array) < idx {
		t.array = append(t.array, value.Nil)
	}
}

// Len implements the `#` length operator: the border of the array part.
func (t *Table) Len() int {
	n := len(t.array)
	for n > 0 && t.array[n-1].IsNil() {
		n--
	}
	return n
}

// Range calls f once per live key/value pair, array part first. f must
// not mutate t.
func (t *Table) Range(f func(k, v value.Value)) {
	for i, v := range t.array {
		if v.IsNil() {
			continue
		}
		f(value.Num(float64(i+1)), v)
	}
	for _, e := range t.hash {
		f(e.key, e.val)
	}
}

func arrayIndex(k value.Value) (int, bool) {
	if k.Type != value.TypeNumber {
		return 0, false
	}
	n := int(k.Number)
	if float64(n) != k.Number {
		return 0, false
	}
	return n, true
}

// Closure is either a Lua closure (Proto != nil) or a native Go function
// (Native != nil); exactly one is set.
type Closure struct {
	object.Header
	Proto    *Proto
	Upvalues []*Upvalue
	Native   GoFunction
	Name     string // diagnostic only, e.g. for stack traces
}

// GoFunction is a native function exposed to scripts, the same role
// lua_CFunction plays in the reference implementation.
type GoFunction func(th *Thread, args []value.Value) ([]value.Value, error)

// IsNative reports whether c wraps a Go function rather than a compiled prototype.
func (c *Closure) IsNative() bool { return c.Native != nil }

// Upvalue is a captured variable: while open it aliases a live stack
// slot by (owner thread, index) rather than a raw pointer, since a
// thread's stack slice can grow and reallocate underneath any frame
// still executing below the top; closed upvalues (after the enclosing
// frame returns) own their value directly.
type Upvalue struct {
	object.Header
	owner  *Thread
	idx    int
	open   bool
	closed value.Value
}

// newOpenUpvalue allocates an upvalue open over owner's stack slot idx,
// stamped by the allocation hook from the capturing thread's substate.
func newOpenUpvalue(owner *Thread, idx int) *Upvalue {
	u := &Upvalue{owner: owner, idx: idx, open: true}
	u.Header = object.Alloc(object.KindUpvalue, owner.taint)
	return u
}

func (u *Upvalue) Get() value.Value {
	if u.open {
		return u.owner.stack[u.idx]
	}
	return u.closed
}

// Set applies the upvalue-store write-barrier rule (spec §4.E: "source's
// taint; thread is not consulted").
func (u *Upvalue) Set(v value.Value) {
	if u.open {
		barrier.UpvalueStore(&u.owner.stack[u.idx], v)
		return
	}
	barrier.UpvalueStore(&u.closed, v)
}

// Close detaches the upvalue from the stack, copying out its current
// value (used when a frame returns and its open upvalues must outlive
// the frame).
func (u *Upvalue) Close() {
	if !u.open {
		return
	}
	u.closed = u.owner.stack[u.idx]
	u.open = false
	u.owner = nil
}

// UserData is an opaque host-allocated value with its own metatable and
// object taint; this runtime does not define any concrete userdata kind
// itself (that is left to the embedder), it only provides the carrier.
type UserData struct {
	object.Header
	Data any
	meta *Table
}

// Proto is the runtime form of a compiled function prototype: the
// decoded bytecode.Proto plus its constant pool converted to value.Value
// (constants start secure; taint, per spec §6, is never persisted and is
// assigned fresh from the loading thread's state — see Proto.Constants).
type Proto struct {
	Source       string
	LineDefined  int
	NumParams    int
	IsVararg     bool
	MaxStackSize int
	NumUpvalues  int
	Code         []Instr
	Lines        []int
	Constants    []value.Value
	Prototypes   []*Proto
	Locals       []bytecode.LocalVar
	UpvalueNames []string
}

// NewProtoFromChunk converts a decoded bytecode.Proto tree into a runtime
// Proto tree, decoding every instruction once up front.
func NewProtoFromChunk(p *bytecode.Proto) *Proto {
	rp := &Proto{
		Source:       p.Source,
		LineDefined:  p.LineDefined,
		NumParams:    p.NumParams,
		IsVararg:     p.IsVararg,
		MaxStackSize: p.MaxStackSize,
		NumUpvalues:  p.NumUpvalues,
		Lines:        p.Lines,
		Locals:       p.Locals,
		UpvalueNames: p.UpvalueNames,
	}
	rp.Code = make([]Instr, len(p.Code))
	for i, raw := range p.Code {
		rp.Code[i] = Decode(raw)
	}
	rp.Constants = make([]value.Value, len(p.Constants))
	for i, c := range p.Constants {
		rp.Constants[i] = constToValue(c)
	}
	rp.Prototypes = make([]*Proto, len(p.Prototypes))
	for i, sub := range p.Prototypes {
		rp.Prototypes[i] = NewProtoFromChunk(sub)
	}
	return rp
}

func constToValue(c bytecode.Const) value.Value {
	switch c.Type {
	case 1:
		return value.Boolean(c.Bool)
	case 3:
		return value.Num(c.Num)
	case 4:
		return value.Str(c.Str)
	default:
		return value.Nil
	}
}

// internString interns s against a state's string pool, allocating a
// fresh StringObj (stamped by the allocation hook from th's substate) on
// first use. Later interns of the same content reuse the first one's
// object taint, matching the reference string interner's own
// create-once semantics.
func internString(st *State, th *Thread, s string) *StringObj {
	if so, ok := st.strings[s]; ok {
		return so
	}
	so := &StringObj{S: s}
	so.Header = object.Alloc(object.KindString, th.taint)
	st.strings[s] = so
	return so
}

// StrValue builds a TypeString value.Value for s, interned against state
// st via th's allocation substate, with no value-taint of its own —
// callers needing value taint go through a barrier setter afterward.
func StrValue(st *State, th *Thread, s string) value.Value {
	return value.Value{Type: value.TypeString, Str: s, Ref: internString(st, th, s)}
}
