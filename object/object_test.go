package object

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taintscript/seclua/label"
)

type fakeAllocState struct {
	newgc, write, newcl *label.Label
}

func (f fakeAllocState) NewGCTaint() *label.Label      { return f.newgc }
func (f fakeAllocState) WriteTaint() *label.Label      { return f.write }
func (f fakeAllocState) NewClosureTaint() *label.Label { return f.newcl }

func TestAlloc_AllAbsentIsSecure(t *testing.T) {
	h := Alloc(KindTable, fakeAllocState{})
	assert.Nil(t, h.Taint)
	assert.Equal(t, KindTable, h.Kind)
}

func TestAlloc_PriorityOrder(t *testing.T) {
	store := label.NewStore()
	newgc := store.Intern("newgc")
	write := store.Intern("write")
	newcl := store.Intern("newcl")

	tests := []struct {
		name string
		kind Kind
		st   fakeAllocState
		want *label.Label
	}{
		{"newgc wins over everything", KindClosure, fakeAllocState{newgc: newgc, write: write, newcl: newcl}, newgc},
		{"write wins over newcl for closures", KindClosure, fakeAllocState{write: write, newcl: newcl}, write},
		{"newcl only applies to closures", KindClosure, fakeAllocState{newcl: newcl}, newcl},
		{"newcl ignored for non-closures", KindTable, fakeAllocState{newcl: newcl}, nil},
		{"write applies to any kind", KindString, fakeAllocState{write: write}, write},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Alloc(tt.kind, tt.st)
			assert.Same(t, tt.want, h.Taint)
		})
	}
}

func TestHeader_RefInterface(t *testing.T) {
	store := label.NewStore()
	taint := store.Intern("x")

	h := &Header{Kind: KindString}
	assert.Nil(t, h.ObjectTaint())

	h.SetObjectTaint(taint)
	assert.Same(t, taint, h.ObjectTaint())
}
