package cpu

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpcode_Table(t *testing.T) {
	assert := assert.New(t)

	valid := 0
	for n := range 256 {
		if Opcode(n).Valid() {
			valid++
		}
	}
	assert.Equal(27, valid)

	table := [](struct {
		op   Opcode
		name string
		size uint64
		cond CodeCond
	}){
		{OP_HALT, "halt", 1, COND_ALWAYS},
		{OP_NOP, "nop", 1, COND_ALWAYS},
		{OP_RRMOVQ, "rrmovq", 2, COND_ALWAYS},
		{OP_CMOVLE, "cmovle", 2, COND_LE},
		{OP_CMOVL, "cmovl", 2, COND_L},
		{OP_CMOVE, "cmove", 2, COND_E},
		{OP_CMOVNE, "cmovne", 2, COND_NE},
		{OP_CMOVGE, "cmovge", 2, COND_GE},
		{OP_CMOVG, "cmovg", 2, COND_G},
		{OP_IRMOVQ, "irmovq", 10, COND_ALWAYS},
		{OP_RMMOVQ, "rmmovq", 10, COND_ALWAYS},
		{OP_MRMOVQ, "mrmovq", 10, COND_ALWAYS},
		{OP_ADDQ, "addq", 2, COND_ALWAYS},
		{OP_SUBQ, "subq", 2, COND_ALWAYS},
		{OP_ANDQ, "andq", 2, COND_ALWAYS},
		{OP_XORQ, "xorq", 2, COND_ALWAYS},
		{OP_JMP, "jmp", 9, COND_ALWAYS},
		{OP_JLE, "jle", 9, COND_LE},
		{OP_JL, "jl", 9, COND_L},
		{OP_JE, "je", 9, COND_E},
		{OP_JNE, "jne", 9, COND_NE},
		{OP_JGE, "jge", 9, COND_GE},
		{OP_JG, "jg", 9, COND_G},
		{OP_CALL, "call", 9, COND_ALWAYS},
		{OP_RET, "ret", 1, COND_ALWAYS},
		{OP_PUSHQ, "pushq", 2, COND_ALWAYS},
		{OP_POPQ, "popq", 2, COND_ALWAYS},
	}

	for _, entry := range table {
		assert.True(entry.op.Valid(), entry.name)
		assert.Equal(entry.name, entry.op.String())
		assert.Equal(entry.size, entry.op.Len(), entry.name)
		assert.Equal(entry.cond, entry.op.Cond(), entry.name)
		assert.Equal(entry.op, mnemonicTable[entry.name])
	}

	assert.Equal(".byte 0xff", Opcode(0xff).String())
}

func TestCodeCond_Holds(t *testing.T) {
	assert := assert.New(t)

	flags := []Flags{0, FLAG_ZF, FLAG_SF, FLAG_SF | FLAG_ZF, FLAG_OF}

	table := map[CodeCond][]bool{
		COND_ALWAYS: {true, true, true, true, true},
		COND_LE:     {false, true, true, true, false},
		COND_L:      {false, false, true, true, false},
		COND_E:      {false, true, false, true, false},
		COND_NE:     {true, false, true, false, true},
		COND_GE:     {true, true, false, false, true},
		COND_G:      {true, false, false, false, true},
	}

	for cond, expected := range table {
		for n, fl := range flags {
			assert.Equal(expected[n], cond.Holds(fl), fmt.Sprintf("%v %v", cond, fl))
		}
	}
}

func TestStatus(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("AOK", STAT_AOK.String())
	assert.Equal("HLT", STAT_HLT.String())
	assert.Equal("ADR", STAT_ADR.String())
	assert.Equal("INS", STAT_INS.String())

	assert.False(STAT_AOK.Terminal())
	assert.True(STAT_HLT.Terminal())

	assert.NoError(STAT_AOK.Err())
	assert.ErrorIs(STAT_HLT.Err(), ErrHalt)
	assert.ErrorIs(STAT_ADR.Err(), ErrAddress)
	assert.ErrorIs(STAT_INS.Err(), ErrInstruction)
}

func TestRegister(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("%rax", REG_RAX.String())
	assert.Equal("%rsp", REG_RSP.String())
	assert.Equal("%r14", REG_R14.String())
	assert.Equal("%none", REG_NONE.String())
	assert.True(REG_R14.Valid())
	assert.False(REG_NONE.Valid())

	assert.Equal("ZF:1 SF:0 OF:1", (FLAG_ZF | FLAG_OF).String())
}

func TestInstruction_String(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		code Instruction
		text string
	}){
		{MakeCode(OP_HALT), "halt"},
		{MakeCode(OP_RET), "ret"},
		{MakeCodeRegs(OP_RRMOVQ, REG_RAX, REG_RCX), "rrmovq %rax, %rcx"},
		{MakeCodeRegs(OP_CMOVNE, REG_R8, REG_R9), "cmovne %r8, %r9"},
		{MakeCodeRegs(OP_ADDQ, REG_RAX, REG_RBX), "addq %rax, %rbx"},
		{MakeCodeImm(REG_R10, 16), "irmovq $0x10, %r10"},
		{MakeCodeImm(REG_RAX, -1), "irmovq $-0x1, %rax"},
		{MakeCodeMem(OP_RMMOVQ, REG_RAX, REG_RBP, 8), "rmmovq %rax, 0x8(%rbp)"},
		{MakeCodeMem(OP_MRMOVQ, REG_RAX, REG_RSP, 0), "mrmovq 0x0(%rsp), %rax"},
		{MakeCodeDest(OP_JNE, 0x1c), "jne 0x1c"},
		{MakeCodeDest(OP_CALL, 0x100), "call 0x100"},
		{MakeCodeReg(OP_PUSHQ, REG_RBX), "pushq %rbx"},
		{MakeCodeReg(OP_POPQ, REG_R14), "popq %r14"},
	}

	for _, entry := range table {
		assert.Equal(entry.text, entry.code.String())
	}
}

func TestInstruction_Bytes(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		code  Instruction
		bytes []byte
	}){
		{MakeCode(OP_HALT), []byte{0x00}},
		{MakeCode(OP_NOP), []byte{0x10}},
		{MakeCodeRegs(OP_RRMOVQ, REG_RAX, REG_RCX), []byte{0x20, 0x01}},
		{MakeCodeRegs(OP_CMOVG, REG_R14, REG_RSI), []byte{0x26, 0xe6}},
		{MakeCodeImm(REG_R10, 0x0102030405060708), []byte{0x30, 0xfa, 1, 2, 3, 4, 5, 6, 7, 8}},
		{MakeCodeImm(REG_RAX, -2), []byte{0x30, 0xf0, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe}},
		{MakeCodeMem(OP_RMMOVQ, REG_RSP, REG_RBX, 0x10), []byte{0x40, 0x43, 0, 0, 0, 0, 0, 0, 0, 0x10}},
		{MakeCodeMem(OP_MRMOVQ, REG_RDI, REG_RBP, 0x10), []byte{0x50, 0x75, 0, 0, 0, 0, 0, 0, 0, 0x10}},
		{MakeCodeRegs(OP_XORQ, REG_RDX, REG_RDX), []byte{0x63, 0x22}},
		{MakeCodeDest(OP_JMP, 0x10), []byte{0x70, 0, 0, 0, 0, 0, 0, 0, 0x10}},
		{MakeCodeDest(OP_CALL, 0x1234), []byte{0x80, 0, 0, 0, 0, 0, 0, 0x12, 0x34}},
		{MakeCode(OP_RET), []byte{0x90}},
		{MakeCodeReg(OP_PUSHQ, REG_RBX), []byte{0xa0, 0x3f}},
		{MakeCodeReg(OP_POPQ, REG_RBP), []byte{0xb0, 0x5f}},
	}

	for _, entry := range table {
		assert.Equal(entry.bytes, entry.code.Bytes(), entry.code.String())
		assert.Equal(uint64(len(entry.bytes)), entry.code.Len(), entry.code.String())

		decoded, err := Decode(entry.bytes, 0)
		assert.NoError(err, entry.code.String())
		assert.Equal(entry.code, decoded, entry.code.String())
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	assert := assert.New(t)

	values := []int64{0, 1, -1, 0x7f, 0x0102030405060708, math.MaxInt64, math.MinInt64}

	for op, info := range opcodeTable {
		for reg := REG_RAX; reg < REG_NONE; reg++ {
			for _, value := range values {
				var code Instruction
				switch {
				case op == OP_IRMOVQ:
					code = MakeCodeImm(reg, value)
				case op == OP_PUSHQ || op == OP_POPQ:
					code = MakeCodeReg(op, reg)
				case info.form == FORM_REGS:
					code = MakeCodeRegs(op, reg, REG_R14-reg)
				case info.form == FORM_REG_IMM:
					code = MakeCodeMem(op, reg, REG_R14-reg, value)
				case info.form == FORM_DEST:
					code = MakeCodeDest(op, value)
				default:
					code = MakeCode(op)
				}

				mem := make([]byte, 3+code.Len())
				w := NewWriter(mem, 3)
				addr := w.Write(code)
				assert.Equal(uint64(3), addr)
				assert.Equal(uint64(len(mem)), w.Offset)

				decoded, err := Decode(mem, addr)
				assert.NoError(err, code.String())
				assert.Equal(code, decoded, code.String())
			}
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	assert := assert.New(t)

	_, err := Decode(nil, 0)
	assert.ErrorIs(err, ErrAddress)

	_, err = Decode([]byte{0x00}, 1)
	assert.ErrorIs(err, ErrAddress)

	code, err := Decode([]byte{0xff}, 0)
	assert.ErrorIs(err, ErrInstruction)
	assert.Equal(ErrOpcodeByte(0xff), err)
	assert.Equal(Opcode(0xff), code.Op)

	// Truncated immediate.
	_, err = Decode([]byte{0x30, 0xf0, 0, 0, 0}, 0)
	assert.ErrorIs(err, ErrAddress)

	// Truncated register pair.
	_, err = Decode([]byte{0x10, 0x20}, 1)
	assert.ErrorIs(err, ErrAddress)

	// Unassigned function codes are invalid.
	for _, b := range []byte{0x01, 0x27, 0x64, 0x77, 0x81, 0x91, 0xa1, 0xc0} {
		_, err = Decode([]byte{b, 0xff, 0, 0, 0, 0, 0, 0, 0, 0}, 0)
		assert.ErrorIs(err, ErrInstruction, fmt.Sprintf("0x%02x", b))
	}
}
