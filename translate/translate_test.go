package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom(t *testing.T) {
	assert := assert.New(t)

	assert.NotNil(Printer())
	assert.Equal("bad opcode 0xff", From("bad opcode 0x%02x", 0xff))
	assert.Equal("halted", From("halted"))
	assert.Same(Printer(), Printer())
}
