package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"atlas/pkg/value"
)

func sampleModule() *Module {
	m := NewModule()
	m.AddConstant(value.Number(42))
	m.AddConstant(value.String("hi"))
	m.AddConstant(value.Bool(true))
	m.AddConstant(value.Null)
	m.AddGlobalName("counter")
	m.Functions = []FunctionEntry{
		{Name: "main", Arity: 0, LocalCount: 1, EntryOffset: 0, DebugIndex: -1},
		{Name: "add", Arity: 2, LocalCount: 2, EntryOffset: 12, DebugIndex: 0},
	}
	m.DebugInfo = []DebugEntry{
		{Offset: 0, File: "main.atl", Line: 1, Column: 1, Length: 3},
	}
	var code []byte
	code = Emit(code, OpConstant, 0)
	code = Emit(code, OpConstant, 1)
	code = Emit(code, OpAdd, 0)
	code = Emit(code, OpReturn, 0)
	m.Instructions = code
	return m
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := sampleModule()

	var buf bytes.Buffer
	require.NoError(t, Encode(original, &buf))
	require.NotZero(t, buf.Len())

	decoded, err := Decode(&buf)
	require.NoError(t, err)

	require.Equal(t, original.Instructions, decoded.Instructions)
	require.Equal(t, original.GlobalNames, decoded.GlobalNames)
	require.Equal(t, original.Functions, decoded.Functions)
	require.Equal(t, original.DebugInfo, decoded.DebugInfo)
	require.Len(t, decoded.Constants, 4)
	require.True(t, value.Eq(decoded.Constants[0], value.Number(42)))
	require.True(t, value.Eq(decoded.Constants[1], value.String("hi")))
	require.True(t, value.Eq(decoded.Constants[2], value.Bool(true)))
	require.True(t, value.Eq(decoded.Constants[3], value.Null))
}

func TestEncodeDeterministic(t *testing.T) {
	m := sampleModule()

	var a, b bytes.Buffer
	require.NoError(t, Encode(m, &a))
	require.NoError(t, Encode(m, &b))
	require.Equal(t, a.Bytes(), b.Bytes())
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF, 1, 0, 0, 0})

	_, err := Decode(&buf)
	require.Error(t, err)
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x41, 0x54, 0x42, 0x43}) // "ATBC" little-endian bytes
	buf.Write([]byte{99, 0, 0, 0})

	_, err := Decode(&buf)
	require.Error(t, err)
}

func TestEncodeDecodeEmptyModule(t *testing.T) {
	original := NewModule()

	var buf bytes.Buffer
	require.NoError(t, Encode(original, &buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	require.Empty(t, decoded.Constants)
	require.Empty(t, decoded.Functions)
	require.Empty(t, decoded.GlobalNames)
	require.Empty(t, decoded.Instructions)
	require.Empty(t, decoded.DebugInfo)
}

func TestEncodeDecodeUnicodeStrings(t *testing.T) {
	m := NewModule()
	m.AddConstant(value.String("Hello, 世界"))
	m.AddConstant(value.String("Привет, мир"))
	m.AddConstant(value.String("🎉🎊✨"))

	var buf bytes.Buffer
	require.NoError(t, Encode(m, &buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, "Hello, 世界", decoded.Constants[0].AsString())
	require.Equal(t, "Привет, мир", decoded.Constants[1].AsString())
	require.Equal(t, "🎉🎊✨", decoded.Constants[2].AsString())
}

func TestEncodeDecodeLargeJumpOperand(t *testing.T) {
	var code []byte
	code = Emit(code, OpJump, 30000)
	code = Emit(code, OpJump, -30000)

	m := NewModule()
	m.Instructions = code

	var buf bytes.Buffer
	require.NoError(t, Encode(m, &buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)

	first, ok := DecodeAt(decoded.Instructions, 0)
	require.True(t, ok)
	require.Equal(t, 30000, first.Operand)

	second, ok := DecodeAt(decoded.Instructions, first.Next)
	require.True(t, ok)
	require.Equal(t, -30000, second.Operand)
}
