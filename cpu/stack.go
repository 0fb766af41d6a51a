package cpu

import (
	"iter"
)

// Push decrements %rsp by one quad, then stores value at the new %rsp.
func (cpu *Cpu) Push(value int64) (err error) {
	sp := cpu.Register[REG_RSP]

	err = cpu.store(sp-QUAD_SIZE, value)
	if err != nil {
		return
	}

	cpu.Register[REG_RSP] = sp - QUAD_SIZE
	return
}

// Pop loads the quad at %rsp, then increments %rsp by one quad.
func (cpu *Cpu) Pop() (value int64, err error) {
	sp := cpu.Register[REG_RSP]

	value, err = cpu.load(sp)
	if err != nil {
		return
	}

	cpu.Register[REG_RSP] = sp + QUAD_SIZE
	return
}

// Peek returns the quad at the top of the stack.
func (cpu *Cpu) Peek() (value int64, ok bool) {
	if cpu.Empty() {
		return
	}

	value, err := cpu.load(cpu.Register[REG_RSP])
	ok = err == nil
	return
}

// Empty returns true if nothing is on the stack.
func (cpu *Cpu) Empty() bool {
	return cpu.Depth() == 0
}

// Depth returns the number of quads between %rsp and the top of memory.
func (cpu *Cpu) Depth() int {
	sp := cpu.Register[REG_RSP]
	if sp < 0 || sp >= int64(len(cpu.Memory)) {
		return 0
	}
	return (len(cpu.Memory) - int(sp)) / QUAD_SIZE
}

// Stack iterates the stack from the top (lowest address) down to the
// bottom of memory, yielding each quad and its address.
func (cpu *Cpu) Stack() iter.Seq2[uint64, int64] {
	return func(yield func(addr uint64, value int64) bool) {
		sp := cpu.Register[REG_RSP]
		for n := range cpu.Depth() {
			addr := sp + int64(n*QUAD_SIZE)
			value, err := cpu.load(addr)
			if err != nil {
				return
			}
			if !yield(uint64(addr), value) {
				return
			}
		}
	}
}
