package cpu

import (
	"encoding/binary"
	"fmt"
)

// Register is a 4-bit register identifier.
type Register uint8

const (
	REG_RAX  = Register(0x0)
	REG_RCX  = Register(0x1)
	REG_RDX  = Register(0x2)
	REG_RBX  = Register(0x3)
	REG_RSP  = Register(0x4) // Stack pointer.
	REG_RBP  = Register(0x5) // Frame base pointer, managed by the callee.
	REG_RSI  = Register(0x6)
	REG_RDI  = Register(0x7)
	REG_R8   = Register(0x8)
	REG_R9   = Register(0x9)
	REG_R10  = Register(0xa)
	REG_R11  = Register(0xb)
	REG_R12  = Register(0xc)
	REG_R13  = Register(0xd)
	REG_R14  = Register(0xe)
	REG_NONE = Register(0xf) // No register.
)

// REG_COUNT is the size of the register file, including the REG_NONE slot.
const REG_COUNT = 16

var registerNames = [REG_COUNT]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "none",
}

// Valid returns true if the register is a storage location.
func (reg Register) Valid() bool {
	return reg < REG_NONE
}

// Name returns the bare register name, without the '%' prefix.
func (reg Register) Name() string {
	return registerNames[reg&0xf]
}

func (reg Register) String() string {
	return "%" + reg.Name()
}

// Flags are the condition codes set by the arithmetic instructions.
type Flags uint8

const (
	FLAG_ZF = Flags(1 << 0) // Zero
	FLAG_SF = Flags(1 << 1) // Sign
	FLAG_OF = Flags(1 << 2) // Overflow
)

func (fl Flags) ZF() bool { return fl&FLAG_ZF != 0 }
func (fl Flags) SF() bool { return fl&FLAG_SF != 0 }
func (fl Flags) OF() bool { return fl&FLAG_OF != 0 }

func (fl Flags) String() string {
	bit := func(set bool) int {
		if set {
			return 1
		}
		return 0
	}
	return fmt.Sprintf("ZF:%d SF:%d OF:%d", bit(fl.ZF()), bit(fl.SF()), bit(fl.OF()))
}

// Status is the run state of the CPU.
type Status int

const (
	STAT_AOK = Status(0) // Normal operation.
	STAT_HLT = Status(1) // Halt instruction encountered.
	STAT_ADR = Status(2) // Bad instruction or data address.
	STAT_INS = Status(3) // Invalid instruction.
)

var statusNames = [...]string{"AOK", "HLT", "ADR", "INS"}

func (st Status) String() string {
	if st < 0 || int(st) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(st))
	}
	return statusNames[st]
}

// Terminal returns true if the status ends a run.
func (st Status) Terminal() bool {
	return st != STAT_AOK
}

// Err returns the error matching a terminal status, or nil for STAT_AOK.
func (st Status) Err() error {
	switch st {
	case STAT_HLT:
		return ErrHalt
	case STAT_ADR:
		return ErrAddress
	case STAT_INS:
		return ErrInstruction
	}
	return nil
}

// CodeCond is the condition of a conditional move or jump.
type CodeCond int

const (
	COND_ALWAYS = CodeCond(0)
	COND_LE     = CodeCond(1) // SF | ZF
	COND_L      = CodeCond(2) // SF
	COND_E      = CodeCond(3) // ZF
	COND_NE     = CodeCond(4) // !ZF
	COND_GE     = CodeCond(5) // !SF
	COND_G      = CodeCond(6) // !SF & !ZF
)

var condNames = [...]string{"", "le", "l", "e", "ne", "ge", "g"}

func (cond CodeCond) String() string {
	if cond < 0 || int(cond) >= len(condNames) {
		return fmt.Sprintf("CodeCond(%d)", int(cond))
	}
	return condNames[cond]
}

// Holds returns true if the condition is satisfied by the flags.
func (cond CodeCond) Holds(fl Flags) bool {
	switch cond {
	case COND_ALWAYS:
		return true
	case COND_LE:
		return fl.SF() || fl.ZF()
	case COND_L:
		return fl.SF()
	case COND_E:
		return fl.ZF()
	case COND_NE:
		return !fl.ZF()
	case COND_GE:
		return !fl.SF()
	case COND_G:
		return !fl.SF() && !fl.ZF()
	}
	return false
}

// CodeForm is the operand layout of an instruction.
type CodeForm int

const (
	FORM_NONE    = CodeForm(0) // op
	FORM_REGS    = CodeForm(1) // op rA:rB
	FORM_REG_IMM = CodeForm(2) // op rA:rB imm64
	FORM_DEST    = CodeForm(3) // op dest64
)

var formLen = [...]uint64{1, 2, 10, 9}

// Len returns the encoded length of an instruction with this form.
func (form CodeForm) Len() uint64 {
	return formLen[form]
}

// Opcode is the first byte of an instruction.
type Opcode uint8

const (
	OP_HALT   = Opcode(0x00)
	OP_NOP    = Opcode(0x10)
	OP_RRMOVQ = Opcode(0x20)
	OP_CMOVLE = Opcode(0x21)
	OP_CMOVL  = Opcode(0x22)
	OP_CMOVE  = Opcode(0x23)
	OP_CMOVNE = Opcode(0x24)
	OP_CMOVGE = Opcode(0x25)
	OP_CMOVG  = Opcode(0x26)
	OP_IRMOVQ = Opcode(0x30)
	OP_RMMOVQ = Opcode(0x40)
	OP_MRMOVQ = Opcode(0x50)
	OP_ADDQ   = Opcode(0x60)
	OP_SUBQ   = Opcode(0x61)
	OP_ANDQ   = Opcode(0x62)
	OP_XORQ   = Opcode(0x63)
	OP_JMP    = Opcode(0x70)
	OP_JLE    = Opcode(0x71)
	OP_JL     = Opcode(0x72)
	OP_JE     = Opcode(0x73)
	OP_JNE    = Opcode(0x74)
	OP_JGE    = Opcode(0x75)
	OP_JG     = Opcode(0x76)
	OP_CALL   = Opcode(0x80)
	OP_RET    = Opcode(0x90)
	OP_PUSHQ  = Opcode(0xa0)
	OP_POPQ   = Opcode(0xb0)
)

type opcodeInfo struct {
	name string
	form CodeForm
}

var opcodeTable = map[Opcode]opcodeInfo{
	OP_HALT:   {"halt", FORM_NONE},
	OP_NOP:    {"nop", FORM_NONE},
	OP_RRMOVQ: {"rrmovq", FORM_REGS},
	OP_CMOVLE: {"cmovle", FORM_REGS},
	OP_CMOVL:  {"cmovl", FORM_REGS},
	OP_CMOVE:  {"cmove", FORM_REGS},
	OP_CMOVNE: {"cmovne", FORM_REGS},
	OP_CMOVGE: {"cmovge", FORM_REGS},
	OP_CMOVG:  {"cmovg", FORM_REGS},
	OP_IRMOVQ: {"irmovq", FORM_REG_IMM},
	OP_RMMOVQ: {"rmmovq", FORM_REG_IMM},
	OP_MRMOVQ: {"mrmovq", FORM_REG_IMM},
	OP_ADDQ:   {"addq", FORM_REGS},
	OP_SUBQ:   {"subq", FORM_REGS},
	OP_ANDQ:   {"andq", FORM_REGS},
	OP_XORQ:   {"xorq", FORM_REGS},
	OP_JMP:    {"jmp", FORM_DEST},
	OP_JLE:    {"jle", FORM_DEST},
	OP_JL:     {"jl", FORM_DEST},
	OP_JE:     {"je", FORM_DEST},
	OP_JNE:    {"jne", FORM_DEST},
	OP_JGE:    {"jge", FORM_DEST},
	OP_JG:     {"jg", FORM_DEST},
	OP_CALL:   {"call", FORM_DEST},
	OP_RET:    {"ret", FORM_NONE},
	OP_PUSHQ:  {"pushq", FORM_REGS},
	OP_POPQ:   {"popq", FORM_REGS},
}

// mnemonicTable is the reverse of opcodeTable.
var mnemonicTable = func() map[string]Opcode {
	table := make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		table[info.name] = op
	}
	return table
}()

// Valid returns true if the opcode names an instruction.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Form returns the operand layout of the opcode.
func (op Opcode) Form() CodeForm {
	return opcodeTable[op].form
}

// Len returns the encoded length of the instruction in bytes.
func (op Opcode) Len() uint64 {
	return op.Form().Len()
}

// Cond returns the condition of a cmovXX or jXX opcode, COND_ALWAYS otherwise.
func (op Opcode) Cond() CodeCond {
	switch op & 0xf0 {
	case OP_RRMOVQ, OP_JMP:
		return CodeCond(op & 0x0f)
	}
	return COND_ALWAYS
}

func (op Opcode) String() string {
	info, ok := opcodeTable[op]
	if !ok {
		return fmt.Sprintf(".byte 0x%02x", uint8(op))
	}
	return info.name
}

// Instruction is the logical form of a single Y86-64 instruction.
type Instruction struct {
	Op    Opcode
	RA    Register
	RB    Register
	Value int64 // Immediate, displacement or destination.
}

// MakeCode creates a no-operand instruction.
func MakeCode(op Opcode) Instruction {
	return Instruction{Op: op, RA: REG_NONE, RB: REG_NONE}
}

// MakeCodeRegs creates a register-pair instruction.
func MakeCodeRegs(op Opcode, ra, rb Register) Instruction {
	return Instruction{Op: op, RA: ra, RB: rb}
}

// MakeCodeReg creates a pushq or popq instruction.
func MakeCodeReg(op Opcode, ra Register) Instruction {
	return Instruction{Op: op, RA: ra, RB: REG_NONE}
}

// MakeCodeImm creates an irmovq instruction.
func MakeCodeImm(rb Register, value int64) Instruction {
	return Instruction{Op: OP_IRMOVQ, RA: REG_NONE, RB: rb, Value: value}
}

// MakeCodeMem creates an rmmovq or mrmovq instruction.
func MakeCodeMem(op Opcode, ra, rb Register, disp int64) Instruction {
	return Instruction{Op: op, RA: ra, RB: rb, Value: disp}
}

// MakeCodeDest creates a jump or call instruction.
func MakeCodeDest(op Opcode, dest int64) Instruction {
	return Instruction{Op: op, RA: REG_NONE, RB: REG_NONE, Value: dest}
}

// Len returns the encoded length of the instruction in bytes.
func (code Instruction) Len() uint64 {
	return code.Op.Len()
}

// Put encodes the instruction into dst, which must hold at least Len() bytes.
func (code Instruction) Put(dst []byte) (n uint64) {
	form := code.Op.Form()
	dst[0] = byte(code.Op)
	switch form {
	case FORM_REGS:
		dst[1] = byte(code.RA&0xf)<<4 | byte(code.RB&0xf)
	case FORM_REG_IMM:
		dst[1] = byte(code.RA&0xf)<<4 | byte(code.RB&0xf)
		binary.BigEndian.PutUint64(dst[2:10], uint64(code.Value))
	case FORM_DEST:
		binary.BigEndian.PutUint64(dst[1:9], uint64(code.Value))
	}
	return form.Len()
}

// Bytes returns the canonical encoding of the instruction.
func (code Instruction) Bytes() []byte {
	buf := make([]byte, code.Len())
	code.Put(buf)
	return buf
}

// Decode fetches and decodes the instruction at addr.
func Decode(mem []byte, addr uint64) (code Instruction, err error) {
	if addr >= uint64(len(mem)) {
		err = ErrAddress
		return
	}

	code.Op = Opcode(mem[addr])
	code.RA = REG_NONE
	code.RB = REG_NONE
	if !code.Op.Valid() {
		err = ErrOpcodeByte(mem[addr])
		return
	}

	size := code.Op.Len()
	if size > uint64(len(mem))-addr {
		err = ErrAddress
		return
	}

	text := mem[addr : addr+size]
	switch code.Op.Form() {
	case FORM_REGS:
		code.RA = Register(text[1] >> 4)
		code.RB = Register(text[1] & 0xf)
	case FORM_REG_IMM:
		code.RA = Register(text[1] >> 4)
		code.RB = Register(text[1] & 0xf)
		code.Value = int64(binary.BigEndian.Uint64(text[2:10]))
	case FORM_DEST:
		code.Value = int64(binary.BigEndian.Uint64(text[1:9]))
	}

	return
}

// String returns the assembly language representation of this instruction.
func (code Instruction) String() string {
	name := code.Op.String()

	switch code.Op {
	case OP_IRMOVQ:
		return fmt.Sprintf("%v $%#x, %v", name, code.Value, code.RB)
	case OP_RMMOVQ:
		return fmt.Sprintf("%v %v, %#x(%v)", name, code.RA, code.Value, code.RB)
	case OP_MRMOVQ:
		return fmt.Sprintf("%v %#x(%v), %v", name, code.Value, code.RB, code.RA)
	case OP_PUSHQ, OP_POPQ:
		return fmt.Sprintf("%v %v", name, code.RA)
	}

	switch code.Op.Form() {
	case FORM_REGS:
		return fmt.Sprintf("%v %v, %v", name, code.RA, code.RB)
	case FORM_DEST:
		return fmt.Sprintf("%v %#x", name, code.Value)
	}

	return name
}
