package report_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taintscript/seclua/profile"
	"github.com/taintscript/seclua/report"
)

func TestWriteFuncReportPlain(t *testing.T) {
	fns := []profile.FuncEntry{
		{Source: "a.lua", Name: "f", FuncStats: profile.FuncStats{Calls: 2, Ticks: 500}},
		{Source: "b.lua", Name: "g", FuncStats: profile.FuncStats{Calls: 1, Ticks: 100}},
	}
	var buf strings.Builder
	require.NoError(t, report.WriteFuncReport(&buf, fns, false))

	out := buf.String()
	assert.Contains(t, out, "a.lua")
	assert.Contains(t, out, "calls=2")
	assert.Contains(t, out, "b.lua")
}

func TestWriteFuncReportColorDoesNotError(t *testing.T) {
	fns := []profile.FuncEntry{
		{Source: "a.lua", Name: "f", FuncStats: profile.FuncStats{Calls: 1, Ticks: 1000}},
	}
	var buf strings.Builder
	require.NoError(t, report.WriteFuncReport(&buf, fns, true))
	assert.NotEmpty(t, buf.String())
}

func TestWriteFuncReportEmpty(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, report.WriteFuncReport(&buf, nil, false))
	assert.Empty(t, buf.String())
}
