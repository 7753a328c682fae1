package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexByte(t *testing.T) {
	out, err := hexByte(63)
	require.NoError(t, err)
	assert.Equal(t, "0x3F", out)

	out, err = hexByte(255)
	require.NoError(t, err)
	assert.Equal(t, "0xFF", out)

	// YAML hands whole floats over for some documents
	out, err = hexByte(float64(5))
	require.NoError(t, err)
	assert.Equal(t, "0x05", out)
}

func TestHexByte_RejectsNonBytes(t *testing.T) {
	for _, value := range []interface{}{256, -1, 2.5, "abc", nil} {
		_, err := hexByte(value)
		assert.Error(t, err, "value %v", value)
	}
}

func TestCBytes(t *testing.T) {
	out, err := cBytes([]interface{}{0, 1, 2, 3, 4}, 2)
	require.NoError(t, err)
	assert.Equal(t, "0x00, 0x01,\n0x02, 0x03,\n0x04", out)
}

func TestCBytes_SingleRow(t *testing.T) {
	out, err := cBytes([]int{16, 32}, 8)
	require.NoError(t, err)
	assert.Equal(t, "0x10, 0x20", out)
}

func TestCBytes_ReportsOffendingElement(t *testing.T) {
	_, err := cBytes([]interface{}{0, 1, 999}, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element 2")
}

func TestCBytes_RejectsBadPerRow(t *testing.T) {
	_, err := cBytes([]int{1}, 0)
	require.Error(t, err)
}

func TestAsmBytes(t *testing.T) {
	out, err := asmBytes([]interface{}{0, 15, 42}, 8)
	require.NoError(t, err)
	assert.Equal(t, ".byte $00,$0F,$2A", out)
}

func TestAsmBytes_MultiRow(t *testing.T) {
	out, err := asmBytes([]int{0, 15, 42}, 2)
	require.NoError(t, err)
	assert.Equal(t, ".byte $00,$0F\n.byte $2A", out)
}

func TestChunk(t *testing.T) {
	rows, err := chunk([]interface{}{"a", "b", "c", "d", "e"}, 2)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []interface{}{"a", "b"}, rows[0])
	assert.Equal(t, []interface{}{"e"}, rows[2])
}

func TestChunk_RejectsNonSequence(t *testing.T) {
	_, err := chunk("abc", 2)
	require.Error(t, err)
}

func TestFuncs_HermeticOnly(t *testing.T) {
	funcs := Funcs()

	// Sprig's repeatable helpers are present
	assert.Contains(t, funcs, "upper")
	assert.Contains(t, funcs, "repeat")

	// Anything environment- or time-dependent would break the determinism
	// guarantee for generated sources
	assert.NotContains(t, funcs, "env")
	assert.NotContains(t, funcs, "now")
	assert.NotContains(t, funcs, "randAlpha")
	assert.NotContains(t, funcs, "uuidv4")
}
