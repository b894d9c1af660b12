// Serialization for Atlas's .atbc module format.
//
// Binary layout (all integers little-endian), grounded on smog's
// pkg/bytecode/format.go ("SMOG" header + length-prefixed sections + a
// per-constant type-tag byte), generalized to Atlas's constant pool
// (Number/String/Bool/Null only, per spec.md §3) and to the extra
// function-table, globals-name-table, and debug-info sections spec.md's
// Bytecode Module requires:
//
//   [Header]
//     Magic (4 bytes): "ATBC"
//     Version (4 bytes)
//   [Constants]    count (4) + tagged values
//   [Functions]    count (4) + {name, arity, localCount, entryOffset, debugIndex}
//   [Globals]      count (4) + names
//   [Instructions] length (4) + raw bytes
//   [DebugInfo]    count (4) + {offset, file, line, column, length}
//
// Serialization is deterministic: encoding the same Module twice yields
// byte-identical output, since every section is written in a fixed
// field order with no map iteration.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"

	"atlas/pkg/value"
)

const (
	// Magic is the 4-byte file signature for serialized Atlas modules.
	Magic uint32 = 0x43425441 // "ATBC" little-endian

	// FormatVersion is the current on-disk format version.
	FormatVersion uint32 = 1
)

const (
	constTagNull byte = iota
	constTagBool
	constTagNumber
	constTagString
)

// Encode serializes m to w in the .atbc format.
func Encode(m *Module, w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, Magic); err != nil {
		return fmt.Errorf("bytecode: write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, FormatVersion); err != nil {
		return fmt.Errorf("bytecode: write version: %w", err)
	}
	if err := writeConstants(w, m.Constants); err != nil {
		return fmt.Errorf("bytecode: write constants: %w", err)
	}
	if err := writeFunctions(w, m.Functions); err != nil {
		return fmt.Errorf("bytecode: write functions: %w", err)
	}
	if err := writeStrings(w, m.GlobalNames); err != nil {
		return fmt.Errorf("bytecode: write globals: %w", err)
	}
	if err := writeBytes(w, m.Instructions); err != nil {
		return fmt.Errorf("bytecode: write instructions: %w", err)
	}
	if err := writeDebugInfo(w, m.DebugInfo); err != nil {
		return fmt.Errorf("bytecode: write debug info: %w", err)
	}
	return nil
}

// Decode deserializes a Module from r. A magic or version mismatch is
// reported as a plain error, not as a value.Failure; nothing in pkg/vm
// converts it to the BytecodeInvalid failure kind.
func Decode(r io.Reader) (*Module, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("bytecode: read magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("bytecode: bad magic 0x%08X, expected 0x%08X", magic, Magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("bytecode: read version: %w", err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("bytecode: unsupported format version %d, expected %d", version, FormatVersion)
	}

	constants, err := readConstants(r)
	if err != nil {
		return nil, fmt.Errorf("bytecode: read constants: %w", err)
	}
	functions, err := readFunctions(r)
	if err != nil {
		return nil, fmt.Errorf("bytecode: read functions: %w", err)
	}
	globals, err := readStrings(r)
	if err != nil {
		return nil, fmt.Errorf("bytecode: read globals: %w", err)
	}
	instructions, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("bytecode: read instructions: %w", err)
	}
	debugInfo, err := readDebugInfo(r)
	if err != nil {
		return nil, fmt.Errorf("bytecode: read debug info: %w", err)
	}

	return &Module{
		Constants:    constants,
		Functions:    functions,
		GlobalNames:  globals,
		Instructions: instructions,
		DebugInfo:    debugInfo,
	}, nil
}

func writeConstants(w io.Writer, constants []Constant) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(constants))); err != nil {
		return err
	}
	for i, c := range constants {
		if err := writeConstant(w, c); err != nil {
			return fmt.Errorf("constant %d: %w", i, err)
		}
	}
	return nil
}

func writeConstant(w io.Writer, c Constant) error {
	switch c.Kind() {
	case value.KindNull:
		_, err := w.Write([]byte{constTagNull})
		return err
	case value.KindBool:
		b := byte(0)
		if c.AsBool() {
			b = 1
		}
		_, err := w.Write([]byte{constTagBool, b})
		return err
	case value.KindNumber:
		if _, err := w.Write([]byte{constTagNumber}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, c.AsNumber())
	case value.KindString:
		if _, err := w.Write([]byte{constTagString}); err != nil {
			return err
		}
		return writeString(w, c.AsString())
	default:
		return fmt.Errorf("constant pool may only hold null/bool/number/string, got %s", c.TypeName())
	}
}

func readConstants(r io.Reader) ([]Constant, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	constants := make([]Constant, count)
	for i := range constants {
		c, err := readConstant(r)
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, err)
		}
		constants[i] = c
	}
	return constants, nil
}

func readConstant(r io.Reader) (Constant, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return value.Null, err
	}
	switch tag[0] {
	case constTagNull:
		return value.Null, nil
	case constTagBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return value.Null, err
		}
		return value.Bool(b[0] != 0), nil
	case constTagNumber:
		var n float64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return value.Null, err
		}
		return value.Number(n), nil
	case constTagString:
		s, err := readString(r)
		if err != nil {
			return value.Null, err
		}
		return value.String(s), nil
	default:
		return value.Null, fmt.Errorf("unknown constant tag 0x%02X", tag[0])
	}
}

func writeFunctions(w io.Writer, fns []FunctionEntry) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(fns))); err != nil {
		return err
	}
	for _, f := range fns {
		if err := writeString(w, f.Name); err != nil {
			return err
		}
		for _, n := range []int{f.Arity, f.LocalCount, f.EntryOffset, f.DebugIndex} {
			if err := binary.Write(w, binary.LittleEndian, int32(n)); err != nil {
				return err
			}
		}
	}
	return nil
}

func readFunctions(r io.Reader) ([]FunctionEntry, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	fns := make([]FunctionEntry, count)
	for i := range fns {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		var arity, locals, entry, debugIdx int32
		for _, p := range []*int32{&arity, &locals, &entry, &debugIdx} {
			if err := binary.Read(r, binary.LittleEndian, p); err != nil {
				return nil, err
			}
		}
		fns[i] = FunctionEntry{
			Name:        name,
			Arity:       int(arity),
			LocalCount:  int(locals),
			EntryOffset: int(entry),
			DebugIndex:  int(debugIdx),
		}
	}
	return fns, nil
}

func writeDebugInfo(w io.Writer, entries []DebugEntry) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(entries))); err != nil {
		return err
	}
	for _, d := range entries {
		if err := binary.Write(w, binary.LittleEndian, int32(d.Offset)); err != nil {
			return err
		}
		if err := writeString(w, d.File); err != nil {
			return err
		}
		for _, n := range []int{d.Line, d.Column, d.Length} {
			if err := binary.Write(w, binary.LittleEndian, int32(n)); err != nil {
				return err
			}
		}
	}
	return nil
}

func readDebugInfo(r io.Reader) ([]DebugEntry, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	entries := make([]DebugEntry, count)
	for i := range entries {
		var offset int32
		if err := binary.Read(r, binary.LittleEndian, &offset); err != nil {
			return nil, err
		}
		file, err := readString(r)
		if err != nil {
			return nil, err
		}
		var line, col, length int32
		for _, p := range []*int32{&line, &col, &length} {
			if err := binary.Read(r, binary.LittleEndian, p); err != nil {
				return nil, err
			}
		}
		entries[i] = DebugEntry{Offset: int(offset), File: file, Line: int(line), Column: int(col), Length: int(length)}
	}
	return entries, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeStrings(w io.Writer, strs []string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(strs))); err != nil {
		return err
	}
	for _, s := range strs {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStrings(r io.Reader) ([]string, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	strs := make([]string, count)
	for i := range strs {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		strs[i] = s
	}
	return strs, nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
