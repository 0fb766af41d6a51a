package cpu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func parseProgram(t *testing.T, source string) *Program {
	t.Helper()

	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader(source))
	assert.NoError(t, err)
	return prog
}

func TestProgram_Debug(t *testing.T) {
	assert := assert.New(t)

	prog := parseProgram(t, directiveSource)

	table := [](struct {
		addr   uint64
		lineno int
		index  int
	}){
		{16, 3, 0},
		{25, 3, 0},
		{26, 4, 0},
		{32, 6, 0},
		{39, 6, 0},
		{40, 7, 0},
		{55, 8, 0},
	}

	for _, entry := range table {
		dbg := prog.Debug(entry.addr)
		if assert.NotNil(dbg.Statement, entry.addr) {
			assert.Equal(entry.lineno, dbg.LineNo, entry.addr)
			assert.Equal(entry.index, dbg.Index, entry.addr)
		}
	}

	for _, addr := range []uint64{0, 15, 27, 31, 56, 1000} {
		dbg := prog.Debug(addr)
		assert.Nil(dbg.Statement, addr)
	}
}

func TestProgram_Codes(t *testing.T) {
	assert := assert.New(t)

	prog := parseProgram(t, directiveSource)

	var addrs []uint64
	var codes []Instruction
	for addr, code := range prog.Codes() {
		addrs = append(addrs, addr)
		codes = append(codes, code)
	}
	assert.Equal([]uint64{16, 26}, addrs)
	assert.Equal([]Instruction{MakeCodeImm(REG_RDI, 32), MakeCode(OP_HALT)}, codes)

	// Early break.
	count := 0
	for range prog.Codes() {
		count++
		break
	}
	assert.Equal(1, count)
}

func TestProgram_Binary(t *testing.T) {
	assert := assert.New(t)

	prog := parseProgram(t, directiveSource)

	expected := make([]byte, 56)
	copy(expected[16:], []byte{0x30, 0xf7, 0, 0, 0, 0, 0, 0, 0, 0x20, 0x00})
	copy(expected[32:], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	copy(expected[40:], []byte{0, 0, 0, 0, 0, 0, 0, 0x20})
	copy(expected[48:], []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})

	assert.Equal(expected, prog.Binary())
}

func TestProgram_Load(t *testing.T) {
	assert := assert.New(t)

	prog := parseProgram(t, directiveSource)

	cpu := NewCpu(64)
	assert.NoError(prog.Load(cpu.Memory))
	assert.Equal(prog.Binary(), cpu.Memory[:56])

	cpu.Reset(16)
	assert.Equal(STAT_HLT, cpu.Run())
	assert.Equal(int64(32), cpu.Register[REG_RDI])

	value, ok := cpu.Quad(uint64(cpu.Register[REG_RDI]))
	assert.True(ok)
	assert.Equal(int64(0x0102030405060708), value)

	err := prog.Load(make([]byte, 55))
	assert.ErrorIs(err, ErrAddress)
	assert.ErrorIs(err, ErrMemoryBounds)
}

func TestProgram_Empty(t *testing.T) {
	assert := assert.New(t)

	prog := &Program{}
	assert.Equal(uint64(0), prog.Size())
	assert.Equal([]byte{}, prog.Binary())
	assert.Nil(prog.Debug(0).Statement)
}
