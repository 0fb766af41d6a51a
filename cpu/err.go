package cpu

import (
	"errors"

	"github.com/Brandhoej/Y86-64-VM/translate"
)

var f = translate.From

var (
	// Terminal status errors
	ErrHalt        = errors.New(f("halted"))
	ErrAddress     = errors.New(f("invalid address"))
	ErrInstruction = errors.New(f("invalid instruction"))

	// Execution errors
	ErrRegisterNone = errors.New(f("register slot is empty"))
	ErrStackLimit   = errors.New(f("store at or above stack pointer"))
	ErrStackEmpty   = errors.New(f("stack empty"))
	ErrMemoryBounds = errors.New(f("outside of memory"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrMacroSyntax        = errors.New(f(".macro syntax"))
	ErrMacroNesting       = errors.New(f(".macro in .macro prohibited"))
	ErrMacroDuplicate     = errors.New(f(".macro duplicated"))
	ErrMacroLonely        = errors.New(f(".macro without .endm"))
	ErrMacroLonelyEndm    = errors.New(f(".endm without .macro"))
	ErrDirectiveInvalid   = errors.New(f("directive invalid"))
	ErrOpcodeExtraArgs    = errors.New(f("excessive arguments"))
	ErrOpcodeMissing      = errors.New(f("operand missing"))
	ErrRegisterInvalid    = errors.New(f("register invalid"))
	ErrTargetInvalid      = errors.New(f("target invalid"))
	ErrAddressInvalid     = errors.New(f("address operand invalid"))
	ErrImmediateInvalid   = errors.New(f("immediate operand invalid"))
	ErrInstructionInvalid = errors.New(f("instruction invalid"))
	ErrPositionBackwards  = errors.New(f(".pos moves backwards"))
)

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

// ErrOpcode reports the instruction that ended a run.
type ErrOpcode struct {
	Pc   uint64
	Code Instruction
}

func (eo ErrOpcode) Error() string {
	return f("pc 0x%04x: %v", eo.Pc, eo.Code.String())
}

func (eo ErrOpcode) Is(err error) (ok bool) {
	_, ok = err.(ErrOpcode)
	return
}

// ErrOpcodeByte reports an opcode byte that decodes to no instruction.
type ErrOpcodeByte byte

func (eb ErrOpcodeByte) Error() string {
	return f("bad opcode 0x%02x", byte(eb))
}

func (eb ErrOpcodeByte) Unwrap() error {
	return ErrInstruction
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %v '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseRegister string

func (err ErrParseRegister) Error() string {
	return f("'%v' is not a register", string(err))
}

func (err ErrParseRegister) Unwrap() error {
	return ErrRegisterInvalid
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

type ErrMacro struct {
	Macro string
	Line  int
	Err   error
}

func (err ErrMacro) Error() string {
	return f("macro %v line %v %v", err.Macro, err.Line, err.Err.Error())
}

func (err ErrMacro) Unwrap() error {
	return err.Err
}
