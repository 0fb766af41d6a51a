package emulator

import (
	"errors"
	"fmt"
	"iter"
	"maps"

	"github.com/Brandhoej/Y86-64-VM/cpu"
	"github.com/Brandhoej/Y86-64-VM/internal"
)

// Emulator state. CPU + memory + the program listing loaded into it.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently running program listing.
	Entry    uint64       // Address execution starts at.
}

// NewEmulator creates a new emulator with the default memory size.
func NewEmulator() (emu *Emulator) {
	return NewEmulatorSize(cpu.MEMORY_SIZE)
}

// NewEmulatorSize creates a new emulator with a specific memory size.
func NewEmulatorSize(size uint) (emu *Emulator) {
	emu = &Emulator{
		Cpu:     cpu.NewCpu(size),
		Program: &cpu.Program{},
	}

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	emulator_defines := map[string]string{
		"ENTRY": fmt.Sprintf("%#x", emu.Entry),
	}
	return internal.IterSeq2Concat(maps.All(emulator_defines),
		emu.Cpu.Defines(),
	)
}

// Assembler returns an assembler primed with the emulator defines.
func (emu *Emulator) Assembler() (asm *cpu.Assembler) {
	asm = &cpu.Assembler{Verbose: emu.Verbose}
	for key, value := range internal.IterSeq2Sorted(maps.Collect(emu.Defines())) {
		asm.Predefine(key, value)
	}
	return
}

// Reset clears memory, loads the program, and resets the CPU to the entry point.
func (emu *Emulator) Reset() (err error) {
	emu.Cpu.Verbose = emu.Verbose

	clear(emu.Cpu.Memory)

	err = emu.Program.Load(emu.Cpu.Memory)
	if err != nil {
		return
	}

	emu.Cpu.Reset(emu.Entry)

	return
}

// Ticks returns the total ticks since a reset.
func (emu *Emulator) Ticks() int {
	return emu.Cpu.Ticks
}

// Pc returns current program counter.
func (emu *Emulator) Pc() uint64 {
	return emu.Cpu.Pc
}

// Code returns the current instruction code from the listing.
func (emu *Emulator) Code() cpu.Instruction {
	for addr, code := range emu.Program.Codes() {
		if emu.Cpu.Pc == addr {
			return code
		}
	}

	return cpu.Instruction{}
}

// LineNo returns the current line number for the executing instruction.
func (emu *Emulator) LineNo() int {
	dbg := emu.Program.Debug(emu.Cpu.Pc)
	if dbg.Statement == nil {
		return 0
	}

	return dbg.LineNo
}

// Tick performs a single tick of the emulator.
func (emu *Emulator) Tick() (done bool, err error) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	lineno := emu.LineNo()
	defer func() {
		if err != nil {
			err = &ErrRuntime{LineNo: lineno, Pc: emu.Cpu.Pc, Err: err}
		}
	}()

	err = emu.Cpu.Tick()
	if errors.Is(err, cpu.ErrHalt) {
		err = nil
		done = true
		return
	}

	return
}

// Run ticks until the program halts, faults, or has executed limit
// instructions. A limit of zero or less never expires.
func (emu *Emulator) Run(limit int) (status cpu.Status, err error) {
	for n := 0; limit <= 0 || n < limit; n++ {
		var done bool
		done, err = emu.Tick()
		if done || err != nil {
			status = emu.Cpu.Status
			return
		}
	}

	status = emu.Cpu.Status
	err = fmt.Errorf("%w: %v", ErrTickLimit, limit)
	return
}
