package value

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taintscript/seclua/label"
)

func TestEqual_IgnoresTaint(t *testing.T) {
	store := label.NewStore()
	taint := store.Intern("net.recv")

	clean := Num(42)
	tainted := Num(42)
	tainted.Taint = taint

	assert.True(t, Equal(clean, tainted), "equality must ignore the taint slot")
}

func TestEqual_CrossTypeNeverEqual(t *testing.T) {
	assert.False(t, Equal(Num(0), Boolean(false)))
	assert.False(t, Equal(Str(""), Nil))
}

func TestEqual_Table(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"nil==nil", Nil, Nil, true},
		{"true==true", Boolean(true), Boolean(true), true},
		{"true!=false", Boolean(true), Boolean(false), false},
		{"1==1.0", Num(1), Num(1.0), true},
		{"1!=2", Num(1), Num(2), false},
		{"str==str", Str("a"), Str("a"), true},
		{"str!=str", Str("a"), Str("b"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestHashKey_IgnoresTaint(t *testing.T) {
	store := label.NewStore()
	taint := store.Intern("net.recv")

	clean := Str("key")
	tainted := Str("key")
	tainted.Taint = taint

	assert.Equal(t, HashKey(clean), HashKey(tainted))
}

func TestHashKey_NormalizesIntegralFloats(t *testing.T) {
	assert.Equal(t, HashKey(Num(1)), HashKey(Num(1.0)))
}

func TestTruthy(t *testing.T) {
	assert.False(t, Nil.Truthy())
	assert.False(t, Boolean(false).Truthy())
	assert.True(t, Boolean(true).Truthy())
	assert.True(t, Num(0).Truthy(), "0 is truthy in this language family")
	assert.True(t, Str("").Truthy())
}

func TestIsSecure(t *testing.T) {
	store := label.NewStore()
	v := Num(1)
	assert.True(t, v.IsSecure())

	v.Taint = store.Intern("x")
	assert.False(t, v.IsSecure())
}

func TestString_NeverRevealsTaint(t *testing.T) {
	store := label.NewStore()
	v := Str("hello")
	v.Taint = store.Intern("net.recv")

	assert.Equal(t, "hello", v.String())
}
