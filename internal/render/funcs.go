// -----------------------------------------------------------------------
// Template Functions - Byte serialization helpers for generated sources
// -----------------------------------------------------------------------

package render

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Funcs returns the function map available inside templates: sprig's
// hermetic set plus byte-table serializers for C and ca65 assembly output.
// Non-repeatable sprig functions (time, random, uuid, env) are absent on
// purpose; template plus context must render byte-identical every run.
func Funcs() template.FuncMap {
	funcs := sprig.HermeticTxtFuncMap()
	funcs["hexbyte"] = hexByte
	funcs["cbytes"] = cBytes
	funcs["asmbytes"] = asmBytes
	funcs["chunk"] = chunk
	return funcs
}

// hexByte formats one value as a C hex byte literal, e.g. 63 -> "0x3F"
func hexByte(value interface{}) (string, error) {
	b, err := toByte(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("0x%02X", b), nil
}

// cBytes lays a byte sequence out as C initializer rows, perRow values per
// line. Rows carry trailing commas except the last, so the result drops
// straight into an array initializer.
func cBytes(values interface{}, perRow int) (string, error) {
	bytes, err := toByteSlice(values)
	if err != nil {
		return "", err
	}
	if perRow < 1 {
		return "", fmt.Errorf("cbytes: per-row count must be positive, got %d", perRow)
	}

	var rows []string
	for start := 0; start < len(bytes); start += perRow {
		end := start + perRow
		if end > len(bytes) {
			end = len(bytes)
		}
		cells := make([]string, 0, end-start)
		for _, b := range bytes[start:end] {
			cells = append(cells, fmt.Sprintf("0x%02X", b))
		}
		rows = append(rows, strings.Join(cells, ", "))
	}
	return strings.Join(rows, ",\n"), nil
}

// asmBytes lays a byte sequence out as ca65 .byte directives, perRow values
// per line, e.g. ".byte $00,$0F,$2A"
func asmBytes(values interface{}, perRow int) (string, error) {
	bytes, err := toByteSlice(values)
	if err != nil {
		return "", err
	}
	if perRow < 1 {
		return "", fmt.Errorf("asmbytes: per-row count must be positive, got %d", perRow)
	}

	var rows []string
	for start := 0; start < len(bytes); start += perRow {
		end := start + perRow
		if end > len(bytes) {
			end = len(bytes)
		}
		cells := make([]string, 0, end-start)
		for _, b := range bytes[start:end] {
			cells = append(cells, fmt.Sprintf("$%02X", b))
		}
		rows = append(rows, ".byte "+strings.Join(cells, ","))
	}
	return strings.Join(rows, "\n"), nil
}

// chunk splits a sequence into rows of at most size elements for custom
// template loops
func chunk(values interface{}, size int) ([][]interface{}, error) {
	seq, err := toSlice(values)
	if err != nil {
		return nil, err
	}
	if size < 1 {
		return nil, fmt.Errorf("chunk: size must be positive, got %d", size)
	}

	var rows [][]interface{}
	for start := 0; start < len(seq); start += size {
		end := start + size
		if end > len(seq) {
			end = len(seq)
		}
		rows = append(rows, seq[start:end])
	}
	return rows, nil
}

func toByteSlice(values interface{}) ([]int, error) {
	seq, err := toSlice(values)
	if err != nil {
		return nil, err
	}
	bytes := make([]int, 0, len(seq))
	for i, value := range seq {
		b, err := toByte(value)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		bytes = append(bytes, b)
	}
	return bytes, nil
}

func toSlice(values interface{}) ([]interface{}, error) {
	if values == nil {
		return nil, fmt.Errorf("expected a sequence, got nil")
	}
	v := reflect.ValueOf(values)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a sequence, got %T", values)
	}
	out := make([]interface{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = v.Index(i).Interface()
	}
	return out, nil
}

// toByte accepts the numeric shapes YAML and templates hand over and range
// checks them into 0-255
func toByte(value interface{}) (int, error) {
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint:
		n = int64(v)
	case uint8:
		n = int64(v)
	case uint16:
		n = int64(v)
	case uint32:
		n = int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d out of byte range 0-255", v)
		}
		n = int64(v)
	case float32:
		return toByte(float64(v))
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("value %v is not a whole number", v)
		}
		n = int64(v)
	default:
		return 0, fmt.Errorf("value %v (%T) is not a byte", value, value)
	}

	if n < 0 || n > 255 {
		return 0, fmt.Errorf("value %d out of byte range 0-255", n)
	}
	return int(n), nil
}
