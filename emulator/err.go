package emulator

import (
	"errors"

	"github.com/Brandhoej/Y86-64-VM/translate"
)

var f = translate.From

var (
	// ErrTickLimit indicates a run that did not terminate in time.
	ErrTickLimit = errors.New(f("tick limit reached"))
)

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	LineNo int
	Pc     uint64
	Err    error
}

func (err *ErrRuntime) Error() string {
	return f("line %v pc 0x%04x %v", err.LineNo, err.Pc, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}
