package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taintscript/seclua/compiler"
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
)

// run compiles source, calls it as a no-argument chunk on a fresh
// thread group, and returns whatever it returns, unpadded.
func run(t *testing.T, source string) []value.Value {
	t.Helper()
	proto, err := compiler.Parse(source, "test")
	require.NoError(t, err)

	st := vm.NewState()
	th := st.Main()
	fn := value.Value{Type: value.TypeFunction, Ref: &vm.Closure{Proto: proto}}
	results, cerr := th.Call(fn, nil)
	require.Nil(t, cerr)
	return results
}

func TestGlobalAssignmentAndReturn(t *testing.T) {
	results := run(t, `x = 41 return x + 1`)
	require.Len(t, results, 1)
	assert.Equal(t, float64(42), results[0].Number)
}

func TestLocalShadowing(t *testing.T) {
	results := run(t, `
		local a = 1
		do
			local a = 2
			a = a + 10
		end
		return a
	`)
	require.Len(t, results, 1)
	assert.Equal(t, float64(1), results[0].Number)
}

func TestIfElseif(t *testing.T) {
	results := run(t, `
		local n = 2
		if n == 1 then
			return "one"
		elseif n == 2 then
			return "two"
		else
			return "other"
		end
	`)
	require.Len(t, results, 1)
	assert.Equal(t, "two", results[0].Str)
}

func TestWhileLoopWithBreak(t *testing.T) {
	results := run(t, `
		local i = 0
		local sum = 0
		while true do
			i = i + 1
			if i > 5 then
				break
			end
			sum = sum + i
		end
		return sum
	`)
	require.Len(t, results, 1)
	assert.Equal(t, float64(15), results[0].Number)
}

func TestNumericForLoop(t *testing.T) {
	results := run(t, `
		local total = 0
		for i = 1, 10 do
			total = total + i
		end
		return total
	`)
	require.Len(t, results, 1)
	assert.Equal(t, float64(55), results[0].Number)
}

func TestNumericForLoopWithStep(t *testing.T) {
	results := run(t, `
		local total = 0
		for i = 10, 1, -2 do
			total = total + i
		end
		return total
	`)
	require.Len(t, results, 1)
	assert.Equal(t, float64(30), results[0].Number)
}

func TestFunctionLiteralAndCall(t *testing.T) {
	results := run(t, `
		local function add(a, b)
			return a + b
		end
		return add(3, 4)
	`)
	require.Len(t, results, 1)
	assert.Equal(t, float64(7), results[0].Number)
}

func TestClosureCapturesUpvalue(t *testing.T) {
	results := run(t, `
		local function counter()
			local n = 0
			local function inc()
				n = n + 1
				return n
			end
			return inc
		end
		local c = counter()
		c()
		c()
		return c()
	`)
	require.Len(t, results, 1)
	assert.Equal(t, float64(3), results[0].Number)
}

func TestTableConstructorAndFieldAccess(t *testing.T) {
	results := run(t, `
		local t = { x = 1, y = 2, [3] = "three" }
		t.x = t.x + t.y
		return t.x, t[3]
	`)
	require.Len(t, results, 2)
	assert.Equal(t, float64(3), results[0].Number)
	assert.Equal(t, "three", results[1].Str)
}

func TestMethodCallSugar(t *testing.T) {
	results := run(t, `
		local obj = {}
		obj.value = 10
		function obj:get()
			return self.value
		end
		return obj:get()
	`)
	require.Len(t, results, 1)
	assert.Equal(t, float64(10), results[0].Number)
}

func TestAndOrShortCircuit(t *testing.T) {
	results := run(t, `
		local a = nil
		local b = a or 5
		local c = b and "yes"
		return b, c
	`)
	require.Len(t, results, 2)
	assert.Equal(t, float64(5), results[0].Number)
	assert.Equal(t, "yes", results[1].Str)
}

func TestComparisonOperators(t *testing.T) {
	results := run(t, `
		return 1 < 2, 2 <= 2, 3 > 4, "a" == "a", "a" ~= "b"
	`)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Truef(t, r.Bool, "result %d should be true", i)
	}
}

func TestCacheReturnsSameProtoAndLoadedChunkRuns(t *testing.T) {
	cache := compiler.NewCache(8)
	const src = `return 1 + 1`

	p1, err := cache.Compile(src, "chunk")
	require.NoError(t, err)
	p2, err := cache.Compile(src, "chunk")
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	st := vm.NewState()
	fn, err := compiler.Load(st.Main(), cache, src, "chunk")
	require.NoError(t, err)
	results, cerr := st.Main().Call(fn, nil)
	require.Nil(t, cerr)
	require.Len(t, results, 1)
	assert.Equal(t, float64(2), results[0].Number)
}
