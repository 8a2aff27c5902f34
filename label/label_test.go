package label

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_InternSameNameSamePointer(t *testing.T) {
	s := NewStore()

	a := s.Intern("net.recv")
	b := s.Intern("net.recv")

	assert.Same(t, a, b)
	assert.True(t, Equal(a, b))
}

func TestStore_InternDifferentNamesDifferentPointers(t *testing.T) {
	s := NewStore()

	a := s.Intern("net.recv")
	b := s.Intern("file.read")

	assert.False(t, Equal(a, b))
}

func TestStore_InternEmptyNameIsAbsent(t *testing.T) {
	s := NewStore()

	assert.Nil(t, s.Intern(""))
	assert.Equal(t, 0, s.Len())
}

func TestStore_ReleaseDropsAndReallocates(t *testing.T) {
	s := NewStore()

	a := s.Intern("net.recv")
	s.Release("net.recv")
	assert.Equal(t, 0, s.Len())

	b := s.Intern("net.recv")
	assert.NotSame(t, a, b, "a dropped label must not be resurrected by name")
}

func TestStore_RefCountingKeepsSharedLabelAlive(t *testing.T) {
	s := NewStore()

	a := s.Intern("net.recv")
	_ = s.Intern("net.recv") // second reference
	s.Release("net.recv")    // drops one ref, one remains

	assert.Equal(t, 1, s.Len())
	assert.Same(t, a, s.Intern("net.recv"))
}

func TestStore_ForceInsecure(t *testing.T) {
	s := NewStore()

	l := s.ForceInsecure()
	assert.True(t, IsForceInsecure(l))
	assert.Equal(t, ForceInsecureName, l.Name)
}

func TestIsForceInsecure_NilIsNotForceInsecure(t *testing.T) {
	assert.False(t, IsForceInsecure(nil))
}

func TestEqual_NilsAreEqual(t *testing.T) {
	assert.True(t, Equal(nil, nil))
}
