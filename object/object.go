// Package object implements heap object headers and the allocation-time
// taint hook (spec component C): every heap referent carries a taint
// header alongside its payload, and freshly allocated objects are stamped
// according to the priority order fixed by the host thread's allocation
// taint state.
//
// Grounded on _examples/original_source/liblua/lsec.h's luaR_taintalloc
// (the exact newgctaint > writetaint > newcltaint-if-function priority)
// and src/liblua/lmanip.h's setobj family (the "to new object" vs.
// "to stack" vs. "to table" distinction that `barrier` builds on top of
// this package's Header).
package object

import "github.com/taintscript/seclua/label"

// Kind enumerates the heap-allocated referent kinds named in spec §3
// (the value-tag list minus the non-heap tags nil/boolean/number/light
// userdata).
type Kind uint8

const (
	KindString Kind = iota
	KindTable
	KindClosure
	KindUserData
	KindPrototype
	KindUpvalue
	KindThread
)

// String names the kind for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindTable:
		return "table"
	case KindClosure:
		return "closure"
	case KindUserData:
		return "userdata"
	case KindPrototype:
		return "prototype"
	case KindUpvalue:
		return "upvalue"
	case KindThread:
		return "thread"
	default:
		return "unknown"
	}
}

// Header is the taint-carrying portion of every heap object (spec §4.C):
// a kind tag and a taint label, independent of the payload the concrete
// object type adds by embedding Header.
//
// Header deliberately does not carry GC mark bits or link-list pointers:
// spec.md's Non-goals exclude respecifying the real incremental
// collector, and Go's own garbage collector reclaims objects once
// unreferenced. Header only needs to answer "what taint does this
// object's header currently carry", which is all component C is
// responsible for.
type Header struct {
	Kind  Kind
	Taint *label.Label
}

// ObjectTaint and SetObjectTaint let Header satisfy value.Ref by
// embedding.
func (h *Header) ObjectTaint() *label.Label     { return h.Taint }
func (h *Header) SetObjectTaint(l *label.Label) { h.Taint = l }

// AllocState is the subset of a thread's taint substate that governs
// allocation-time stamping (spec §4.C, §4.D): the three allocation-taint
// fields a vmstate.Thread exposes, abstracted here to avoid an import
// cycle between `object` and `vmstate`.
type AllocState interface {
	// NewGCTaint is the override stamped on every fresh allocation
	// regardless of kind, when present.
	NewGCTaint() *label.Label
	// WriteTaint is the thread's current write-masked ambient taint
	// (stacktaint if the write mask is enabled, nil otherwise).
	WriteTaint() *label.Label
	// NewClosureTaint is stamped on freshly allocated closures only, and
	// only when NewGCTaint and WriteTaint are both absent.
	NewClosureTaint() *label.Label
}

// Alloc stamps a freshly allocated header's taint according to the exact
// priority order of luaR_taintalloc: an explicit newgctaint override wins
// over everything; failing that, the write-masked ambient stacktaint;
// failing that, newcltaint but only for closures; otherwise the object is
// allocated secure (nil taint).
func Alloc(kind Kind, st AllocState) Header {
	h := Header{Kind: kind}

	switch {
	case st.NewGCTaint() != nil:
		h.Taint = st.NewGCTaint()
	case st.WriteTaint() != nil:
		h.Taint = st.WriteTaint()
	case kind == KindClosure && st.NewClosureTaint() != nil:
		h.Taint = st.NewClosureTaint()
	}

	return h
}
