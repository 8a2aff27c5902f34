package seclua_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taintscript/seclua"
	"github.com/taintscript/seclua/value"
)

func TestDoStringReturnsValues(t *testing.T) {
	st := seclua.NewDefault()
	results, err := st.DoString(`return 1 + 2`, "test")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float64(3), results[0].Number)
}

func TestDoStringSyntaxErrorWrapsAsError(t *testing.T) {
	st := seclua.NewDefault()
	_, err := st.DoString(`return (`, "bad")
	require.Error(t, err)
	var secErr *seclua.Error
	require.ErrorAs(t, err, &secErr)
	assert.Equal(t, seclua.StatusSyntaxError, secErr.Kind)
}

func TestDoStringRuntimeErrorWrapsAsError(t *testing.T) {
	st := seclua.NewDefault()
	_, err := st.DoString(`error("boom")`, "bad")
	require.Error(t, err)
	var secErr *seclua.Error
	require.ErrorAs(t, err, &secErr)
	assert.Equal(t, seclua.StatusRuntimeError, secErr.Kind)
	assert.True(t, strings.Contains(secErr.Message, "boom"))
}

func TestLoadCompilesWithoutRunning(t *testing.T) {
	st := seclua.NewDefault()
	fn, err := st.Load(`return 1`, "chunk")
	require.NoError(t, err)
	assert.Equal(t, value.TypeFunction, fn.Type)
	assert.Empty(t, st.Collector().AllFuncStats())
}

func TestCacheIsSharedAcrossLoads(t *testing.T) {
	st := seclua.NewDefault()
	_, err := st.Load(`return 1`, "same")
	require.NoError(t, err)
	proto1, err := st.Cache.Compile(`return 1`, "same")
	require.NoError(t, err)
	proto2, err := st.Cache.Compile(`return 1`, "same")
	require.NoError(t, err)
	assert.Same(t, proto1, proto2)
}

func TestScriptTimeoutAborts(t *testing.T) {
	cfg := seclua.DefaultConfig()
	cfg.ScriptTimeout = time.Nanosecond
	st := seclua.New(cfg)
	_, err := st.DoString(`
		local x = 0
		for i = 1, 1000000 do x = x + i end
		return x
	`, "slow")
	require.Error(t, err)
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := seclua.DefaultConfig()
	cfg.ScriptTimeout = 5 * time.Second

	var buf strings.Builder
	_, err := cfg.WriteTo(&buf)
	require.NoError(t, err)

	var decoded seclua.Config
	_, err = decoded.ReadFrom(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, cfg.TaintMode, decoded.TaintMode)
	assert.Equal(t, cfg.ScriptTimeout, decoded.ScriptTimeout)
}
