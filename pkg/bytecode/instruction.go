package bytecode

// Instructions are encoded as a flat byte sequence: one opcode byte
// followed by 0, 1, or 2 inline operand bytes per Opcode.OperandWidth.
// Multi-byte operands are little-endian; jump operands are a signed i16
// displacement added to the address of the byte after the displacement
// (spec.md §4.2).

// Emit appends a single instruction (opcode + operand, if any) to buf and
// returns the updated buffer. Used by test fixtures and by pkg/compiler.
func Emit(buf []byte, op Opcode, operand int) []byte {
	buf = append(buf, byte(op))
	switch op.OperandWidth() {
	case 1:
		buf = append(buf, byte(int8(operand)))
	case 2:
		u := uint16(int16(operand))
		buf = append(buf, byte(u), byte(u>>8))
	}
	return buf
}

// Decoded is one decoded instruction: its opcode, its operand (sign
// already applied for jump targets), and the offset of the byte
// immediately following it.
type Decoded struct {
	Op      Opcode
	Operand int
	Offset  int
	Next    int
}

// DecodeAt decodes the instruction starting at offset. ok is false if the
// byte at offset is not a known opcode, or if the operand bytes would run
// past the end of code (both validator.go failure conditions); callers
// that have already validated the module may ignore ok.
func DecodeAt(code []byte, offset int) (Decoded, bool) {
	if offset < 0 || offset >= len(code) {
		return Decoded{}, false
	}
	op, known := KnownOpcode(code[offset])
	if !known {
		return Decoded{}, false
	}
	width := op.OperandWidth()
	if offset+1+width > len(code) {
		return Decoded{}, false
	}
	operand := 0
	switch width {
	case 1:
		operand = int(code[offset+1])
	case 2:
		u := uint16(code[offset+1]) | uint16(code[offset+2])<<8
		if op.IsJump() {
			operand = int(int16(u))
		} else {
			operand = int(u)
		}
	}
	return Decoded{Op: op, Operand: operand, Offset: offset, Next: offset + 1 + width}, true
}

// JumpTarget computes the absolute target offset of a jump instruction:
// the displacement is relative to the address of the byte after the
// displacement, i.e. Decoded.Next.
func (d Decoded) JumpTarget() int { return d.Next + d.Operand }
