package compiler

import (
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
)

// Load compiles source under chunkName through cache (if non-nil) and
// wraps the result as a callable value.Value, the same role lua_load
// plays in the reference implementation's C API and what stdlib's
// loadstring pair needs to hand back a callable chunk. th is accepted
// for signature symmetry with the rest of the runtime's entry points
// and is not used. The returned closure's object header is left
// unstamped (secure); neither Load nor vm.Call stamps it.
func Load(th *vm.Thread, cache *Cache, source, chunkName string) (value.Value, error) {
	var proto *vm.Proto
	var err error
	if cache != nil {
		proto, err = cache.Compile(source, chunkName)
	} else {
		proto, err = Parse(source, chunkName)
	}
	if err != nil {
		return value.Value{}, err
	}
	return value.Value{Type: value.TypeFunction, Ref: &vm.Closure{Proto: proto, Name: chunkName}}, nil
}
