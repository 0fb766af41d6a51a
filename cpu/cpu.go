package cpu

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"
)

// Cpu is the simulation context of a Y86-64 processor and its memory.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Register [REG_COUNT]int64 // Register file. REG_NONE is never written.
	Flags    Flags            // Condition codes.
	Status   Status           // Run state.
	Pc       uint64           // Address of the next instruction.
	Memory   []byte           // Code and stack.

	Ticks int // Instructions executed since the last reset.
}

// NewCpu creates a new CPU with a specifically sized memory.
func NewCpu(size uint) (cpu *Cpu) {
	cpu = &Cpu{
		Memory: make([]byte, size),
	}
	cpu.Register[REG_RSP] = int64(size)

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"MEMORY_SIZE": fmt.Sprintf("%#x", len(cpu.Memory)),
		"STACK_TOP":   fmt.Sprintf("%#x", len(cpu.Memory)),
		"QUAD_SIZE":   fmt.Sprintf("%v", QUAD_SIZE),
	})
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	for reg := REG_RAX; reg < REG_NONE; reg++ {
		val := uint64(cpu.Register[reg])
		text += fmt.Sprintf("% 5s: %08X_%08X\n", reg.Name(), val>>32, val&0xffffffff)
	}
	text += fmt.Sprintf("% 5s: %v\n", "flags", cpu.Flags)
	text += fmt.Sprintf("% 5s: %v\n", "stat", cpu.Status)
	text += fmt.Sprintf("% 5s: %04x\n", "pc", cpu.Pc)

	top, ok := cpu.Peek()
	if ok {
		text += fmt.Sprintf("% 5s: %016X (%d deep)\n", "stack", uint64(top), cpu.Depth())
	} else {
		text += fmt.Sprintf("% 5s: ----------------\n", "stack")
	}

	return
}

// Reset the CPU state.
// - Clears the registers and condition codes.
// - Points %rsp at the top of memory.
// - Sets the PC to entry and the status to AOK.
//
// Memory is left untouched.
func (cpu *Cpu) Reset(entry uint64) {
	if cpu.Verbose {
		log.Printf("cpu: reset, entry %04x", entry)
	}

	clear(cpu.Register[:])
	cpu.Register[REG_RSP] = int64(len(cpu.Memory))
	cpu.Flags = 0
	cpu.Status = STAT_AOK
	cpu.Pc = entry
	cpu.Ticks = 0
}

// Writer returns an instruction writer into the CPU memory.
func (cpu *Cpu) Writer(offset uint64) *Writer {
	return NewWriter(cpu.Memory, offset)
}

// Fetch decodes the instruction at the PC.
func (cpu *Cpu) Fetch() (code Instruction, err error) {
	return Decode(cpu.Memory, cpu.Pc)
}

// halt moves the CPU into a terminal status.
func (cpu *Cpu) halt(status Status, err error) error {
	if cpu.Verbose {
		log.Printf("cpu: %04x: status %v", cpu.Pc, status)
	}

	cpu.Status = status
	if err == nil {
		return status.Err()
	}
	return errors.Join(status.Err(), err)
}

// Tick executes a single fetch, decode, execute, memory, writeback and
// PC update cycle. Returns nil while the CPU is still running.
func (cpu *Cpu) Tick() (err error) {
	if cpu.Status.Terminal() {
		return cpu.Status.Err()
	}

	code, err := cpu.Fetch()
	if err != nil {
		status := STAT_ADR
		if errors.Is(err, ErrInstruction) {
			status = STAT_INS
		}
		return cpu.halt(status, err)
	}

	return cpu.Execute(code)
}

// Run ticks until the CPU reaches a terminal status.
func (cpu *Cpu) Run() Status {
	for cpu.Tick() == nil {
	}

	return cpu.Status
}

// operands returns which register slots an instruction reads or writes.
func (code Instruction) operands() (ra, rb bool) {
	switch code.Op {
	case OP_IRMOVQ:
		return false, true
	case OP_PUSHQ, OP_POPQ:
		return true, false
	}

	switch code.Op.Form() {
	case FORM_REGS, FORM_REG_IMM:
		return true, true
	}

	return false, false
}

// Execute executes a single decoded instruction at the PC.
func (cpu *Cpu) Execute(code Instruction) (err error) {
	defer func() {
		if err != nil {
			err = errors.Join(ErrOpcode{Pc: cpu.Pc, Code: code}, err)
		}
	}()
	if cpu.Verbose {
		log.Printf("cpu: %04x: %v", cpu.Pc, code)
	}

	if cpu.Status.Terminal() {
		return cpu.Status.Err()
	}

	ra, rb := code.operands()
	if (ra && !code.RA.Valid()) || (rb && !code.RB.Valid()) {
		return cpu.halt(STAT_INS, ErrRegisterNone)
	}

	next_pc := cpu.Pc + code.Len()

	switch code.Op {
	case OP_HALT:
		cpu.Ticks++
		return cpu.halt(STAT_HLT, nil)
	case OP_NOP:
		// pass
	case OP_RRMOVQ, OP_CMOVLE, OP_CMOVL, OP_CMOVE, OP_CMOVNE, OP_CMOVGE, OP_CMOVG:
		if code.Op.Cond().Holds(cpu.Flags) {
			cpu.Register[code.RB] = cpu.Register[code.RA]
		}
	case OP_IRMOVQ:
		cpu.Register[code.RB] = code.Value
	case OP_RMMOVQ:
		addr := cpu.Register[code.RB] + code.Value
		err = cpu.store(addr, cpu.Register[code.RA])
		if err != nil {
			return cpu.halt(STAT_ADR, err)
		}
	case OP_MRMOVQ:
		addr := cpu.Register[code.RB] + code.Value
		var value int64
		value, err = cpu.load(addr)
		if err != nil {
			return cpu.halt(STAT_ADR, err)
		}
		cpu.Register[code.RA] = value
	case OP_ADDQ, OP_SUBQ, OP_ANDQ, OP_XORQ:
		var result int64
		result, cpu.Flags = doAlu(code.Op, cpu.Register[code.RA], cpu.Register[code.RB])
		cpu.Register[code.RB] = result
	case OP_JMP, OP_JLE, OP_JL, OP_JE, OP_JNE, OP_JGE, OP_JG:
		if code.Op.Cond().Holds(cpu.Flags) {
			next_pc = uint64(code.Value)
		}
	case OP_CALL:
		err = cpu.Push(int64(next_pc))
		if err != nil {
			return cpu.halt(STAT_ADR, err)
		}
		next_pc = uint64(code.Value)
	case OP_RET:
		var ret int64
		ret, err = cpu.Pop()
		if err != nil {
			return cpu.halt(STAT_ADR, errors.Join(ErrStackEmpty, err))
		}
		next_pc = uint64(ret)
	case OP_PUSHQ:
		err = cpu.Push(cpu.Register[code.RA])
		if err != nil {
			return cpu.halt(STAT_ADR, err)
		}
	case OP_POPQ:
		var value int64
		value, err = cpu.Pop()
		if err != nil {
			return cpu.halt(STAT_ADR, errors.Join(ErrStackEmpty, err))
		}
		cpu.Register[code.RA] = value
	default:
		return cpu.halt(STAT_INS, ErrOpcodeByte(code.Op))
	}

	cpu.Pc = next_pc
	cpu.Ticks++

	return
}

// doAlu performs the requested arithmetic or logical operation of
// rA into rB, and returns the output value with its condition codes.
func doAlu(op Opcode, a, b int64) (result int64, flags Flags) {
	switch op {
	case OP_ADDQ:
		result = b + a
		if (a < 0) == (b < 0) && (result < 0) != (b < 0) {
			flags |= FLAG_OF
		}
	case OP_SUBQ:
		result = b - a
		if (a < 0) != (b < 0) && (result < 0) != (b < 0) {
			flags |= FLAG_OF
		}
	case OP_ANDQ:
		result = b & a
	case OP_XORQ:
		result = b ^ a
	}

	if result == 0 {
		flags |= FLAG_ZF
	}
	if result < 0 {
		flags |= FLAG_SF
	}

	return
}
