package platform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemClock_NowAdvances(t *testing.T) {
	c := SystemClock{}
	a := c.Now()
	b := c.Now()
	assert.False(t, b.Before(a))
}

func TestLineEditor_ReadsLinesThenEOF(t *testing.T) {
	e := NewLineEditor(strings.NewReader("first\nsecond\n"))

	line, ok := e.ReadLine()
	assert.True(t, ok)
	assert.Equal(t, "first", line)

	line, ok = e.ReadLine()
	assert.True(t, ok)
	assert.Equal(t, "second", line)

	_, ok = e.ReadLine()
	assert.False(t, ok)
}
