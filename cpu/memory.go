package cpu

import (
	"encoding/binary"
	"errors"
)

const (
	MEMORY_SIZE = 0x1000 // Default memory capacity in bytes.
	QUAD_SIZE   = 8      // Size of a memory word.
)

// inBounds returns true if the quad at addr lies inside memory.
func (cpu *Cpu) inBounds(addr int64) bool {
	return addr >= 0 && uint64(addr) <= uint64(len(cpu.Memory)) && uint64(len(cpu.Memory))-uint64(addr) >= QUAD_SIZE
}

// load reads the quad at addr.
func (cpu *Cpu) load(addr int64) (value int64, err error) {
	if !cpu.inBounds(addr) {
		err = ErrMemoryBounds
		return
	}

	value = int64(binary.BigEndian.Uint64(cpu.Memory[addr : addr+QUAD_SIZE]))
	return
}

// store writes the quad at addr.
// All 8 bytes must land below the current stack pointer, so the live
// stack cannot be overwritten. A negative %rsp admits no store.
func (cpu *Cpu) store(addr int64, value int64) (err error) {
	if !cpu.inBounds(addr) {
		err = ErrMemoryBounds
		return
	}

	if addr+QUAD_SIZE > cpu.Register[REG_RSP] {
		err = ErrStackLimit
		return
	}

	binary.BigEndian.PutUint64(cpu.Memory[addr:addr+QUAD_SIZE], uint64(value))
	return
}

// Load copies data into memory at offset.
func (cpu *Cpu) Load(offset uint64, data []byte) (err error) {
	if offset > uint64(len(cpu.Memory)) || uint64(len(data)) > uint64(len(cpu.Memory))-offset {
		err = errors.Join(ErrAddress, ErrMemoryBounds)
		return
	}

	copy(cpu.Memory[offset:], data)
	return
}

// Quad returns the memory quad at addr, if it is inside memory.
func (cpu *Cpu) Quad(addr uint64) (value int64, ok bool) {
	if addr > uint64(len(cpu.Memory)) {
		return
	}
	value, err := cpu.load(int64(addr))
	ok = err == nil
	return
}
