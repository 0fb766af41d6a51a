package cpu

import (
	"encoding/binary"
	"errors"
	"iter"
)

// Statement represents a line of assembled code with its source location and generated output.
type Statement struct {
	LineNo    int
	Addr      uint64
	Words     []string
	Codes     []Instruction
	Data      []byte
	LinkLabel string
}

// Size returns the number of bytes the statement occupies in memory.
func (st *Statement) Size() (size uint64) {
	for _, code := range st.Codes {
		size += code.Len()
	}
	size += uint64(len(st.Data))
	return
}

type Program struct {
	Statements []Statement
	Labels     map[string]uint64
}

type Debug struct {
	*Statement
	Index int
}

// Debug finds the statement that generated the byte at addr.
func (prog *Program) Debug(addr uint64) (dbg Debug) {
	for n := range prog.Statements {
		st := &prog.Statements[n]
		if addr < st.Addr || addr >= st.Addr+st.Size() {
			continue
		}
		here := st.Addr
		for index, code := range st.Codes {
			if addr < here+code.Len() {
				dbg = Debug{Statement: st, Index: index}
				return
			}
			here += code.Len()
		}
		dbg = Debug{Statement: st, Index: len(st.Codes)}
		return
	}

	return
}

// Codes iterates over every instruction of the program with its address.
func (prog *Program) Codes() iter.Seq2[uint64, Instruction] {
	return func(yield func(addr uint64, code Instruction) bool) {
		for _, st := range prog.Statements {
			addr := st.Addr
			for _, code := range st.Codes {
				if !yield(addr, code) {
					return
				}
				addr += code.Len()
			}
		}
	}
}

// Size returns the address just past the highest byte of the program.
func (prog *Program) Size() (size uint64) {
	for n := range prog.Statements {
		st := &prog.Statements[n]
		size = max(size, st.Addr+st.Size())
	}
	return
}

// Load writes the program into mem, which must be at least Size() bytes.
func (prog *Program) Load(mem []byte) (err error) {
	if prog.Size() > uint64(len(mem)) {
		err = errors.Join(ErrAddress, ErrMemoryBounds)
		return
	}

	w := NewWriter(mem, 0)
	for _, st := range prog.Statements {
		w.Offset = st.Addr
		for _, code := range st.Codes {
			w.Write(code)
		}
		data := st.Data
		for len(data) >= QUAD_SIZE {
			w.Quad(int64(binary.BigEndian.Uint64(data)))
			data = data[QUAD_SIZE:]
		}
		copy(mem[w.Offset:], data)
	}

	return
}

// Binary returns the memory image of the program.
func (prog *Program) Binary() (bin []byte) {
	bin = make([]byte, prog.Size())
	_ = prog.Load(bin)
	return
}
