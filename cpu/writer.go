package cpu

import (
	"encoding/binary"
)

// Writer appends encoded instructions to a destination buffer.
//
// The destination must be large enough for everything written to it;
// the Writer performs no bounds checking.
type Writer struct {
	Dest   []byte // Destination buffer, usually the CPU memory.
	Offset uint64 // Address the next instruction is written at.
}

// NewWriter creates a writer that starts at offset in dest.
func NewWriter(dest []byte, offset uint64) *Writer {
	return &Writer{Dest: dest, Offset: offset}
}

// Write appends a single instruction, returning the address it was written at.
func (w *Writer) Write(code Instruction) (addr uint64) {
	addr = w.Offset
	w.Offset += code.Put(w.Dest[addr:])
	return
}

// Quad appends a raw 8 byte big-endian value.
func (w *Writer) Quad(value int64) (addr uint64) {
	addr = w.Offset
	binary.BigEndian.PutUint64(w.Dest[addr:addr+QUAD_SIZE], uint64(value))
	w.Offset += QUAD_SIZE
	return
}

func (w *Writer) Halt() uint64 { return w.Write(MakeCode(OP_HALT)) }
func (w *Writer) Nop() uint64 { return w.Write(MakeCode(OP_NOP)) }
func (w *Writer) Ret() uint64 { return w.Write(MakeCode(OP_RET)) }

func (w *Writer) Rrmovq(ra, rb Register) uint64 { return w.Write(MakeCodeRegs(OP_RRMOVQ, ra, rb)) }
func (w *Writer) Cmovle(ra, rb Register) uint64 { return w.Write(MakeCodeRegs(OP_CMOVLE, ra, rb)) }
func (w *Writer) Cmovl(ra, rb Register) uint64 { return w.Write(MakeCodeRegs(OP_CMOVL, ra, rb)) }
func (w *Writer) Cmove(ra, rb Register) uint64 { return w.Write(MakeCodeRegs(OP_CMOVE, ra, rb)) }
func (w *Writer) Cmovne(ra, rb Register) uint64 { return w.Write(MakeCodeRegs(OP_CMOVNE, ra, rb)) }
func (w *Writer) Cmovge(ra, rb Register) uint64 { return w.Write(MakeCodeRegs(OP_CMOVGE, ra, rb)) }
func (w *Writer) Cmovg(ra, rb Register) uint64 { return w.Write(MakeCodeRegs(OP_CMOVG, ra, rb)) }

func (w *Writer) Irmovq(rb Register, value int64) uint64 {
	return w.Write(MakeCodeImm(rb, value))
}

// Rmmovq stores ra at disp(rb).
func (w *Writer) Rmmovq(ra, rb Register, disp int64) uint64 {
	return w.Write(MakeCodeMem(OP_RMMOVQ, ra, rb, disp))
}

// Mrmovq loads ra from disp(rb).
func (w *Writer) Mrmovq(ra, rb Register, disp int64) uint64 {
	return w.Write(MakeCodeMem(OP_MRMOVQ, ra, rb, disp))
}

func (w *Writer) Addq(ra, rb Register) uint64 { return w.Write(MakeCodeRegs(OP_ADDQ, ra, rb)) }
func (w *Writer) Subq(ra, rb Register) uint64 { return w.Write(MakeCodeRegs(OP_SUBQ, ra, rb)) }
func (w *Writer) Andq(ra, rb Register) uint64 { return w.Write(MakeCodeRegs(OP_ANDQ, ra, rb)) }
func (w *Writer) Xorq(ra, rb Register) uint64 { return w.Write(MakeCodeRegs(OP_XORQ, ra, rb)) }

func (w *Writer) Jmp(dest int64) uint64 { return w.Write(MakeCodeDest(OP_JMP, dest)) }
func (w *Writer) Jle(dest int64) uint64 { return w.Write(MakeCodeDest(OP_JLE, dest)) }
func (w *Writer) Jl(dest int64) uint64 { return w.Write(MakeCodeDest(OP_JL, dest)) }
func (w *Writer) Je(dest int64) uint64 { return w.Write(MakeCodeDest(OP_JE, dest)) }
func (w *Writer) Jne(dest int64) uint64 { return w.Write(MakeCodeDest(OP_JNE, dest)) }
func (w *Writer) Jge(dest int64) uint64 { return w.Write(MakeCodeDest(OP_JGE, dest)) }
func (w *Writer) Jg(dest int64) uint64 { return w.Write(MakeCodeDest(OP_JG, dest)) }
func (w *Writer) Call(dest int64) uint64 { return w.Write(MakeCodeDest(OP_CALL, dest)) }

func (w *Writer) Pushq(ra Register) uint64 { return w.Write(MakeCodeReg(OP_PUSHQ, ra)) }
func (w *Writer) Popq(ra Register) uint64 { return w.Write(MakeCodeReg(OP_POPQ, ra)) }
