package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChunk() *Chunk {
	return &Chunk{
		Header: DefaultHeader,
		Main: &Proto{
			Source:       "=sample",
			LineDefined:  0,
			LastLineDef:  10,
			NumUpvalues:  0,
			NumParams:    1,
			IsVararg:     true,
			MaxStackSize: 4,
			Code:         []Instruction{1, 2, 3},
			Constants: []Const{
				{Type: constTypeNil},
				{Type: constTypeBoolean, Bool: true},
				{Type: constTypeNumber, Num: 3.5},
				{Type: constTypeString, Str: "hello"},
			},
			Prototypes: []*Proto{
				{Source: "", MaxStackSize: 2, Code: []Instruction{9}},
			},
			Lines:        []int{1, 1, 2},
			Locals:       []LocalVar{{Name: "x", StartPC: 0, EndPC: 3}},
			UpvalueNames: nil,
		},
	}
}

func TestDumpUndump_RoundTrip(t *testing.T) {
	chunk := sampleChunk()

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, chunk))

	got, err := Undump(&buf, "sample")
	require.NoError(t, err)

	assert.Equal(t, chunk.Header, got.Header)
	assert.Equal(t, chunk.Main.Source, got.Main.Source)
	assert.Equal(t, chunk.Main.Code, got.Main.Code)
	assert.Equal(t, chunk.Main.Constants, got.Main.Constants)
	assert.Equal(t, chunk.Main.Lines, got.Main.Lines)
	assert.Equal(t, chunk.Main.Locals, got.Main.Locals)
	require.Len(t, got.Main.Prototypes, 1)
	assert.Equal(t, chunk.Main.Prototypes[0].Code, got.Main.Prototypes[0].Code)
	assert.Equal(t, "sample", got.Main.Prototypes[0].Source, "empty nested source inherits the chunk name")
}

func TestUndump_RejectsBadSignature(t *testing.T) {
	_, err := Undump(bytes.NewReader([]byte("not a chunk at all")), "bad")
	assert.Error(t, err)
}

func TestUndump_RejectsVersionMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, sampleChunk()))
	raw := buf.Bytes()
	raw[4] = 0x00 // corrupt the version byte

	_, err := Undump(bytes.NewReader(raw), "bad-version")
	assert.Error(t, err)
}
