// Package cpu implements the Y86-64 processor, its instruction encoding and
// its assembler.
//
// The CPU consists of fifteen 64-bit general-purpose registers (%rax-%r14),
// a program counter, three condition codes (ZF, SF, OF) and a single flat
// byte addressable memory holding both the program, starting at address 0,
// and a stack that grows down from the top of memory.
//
// Instructions are 1, 2, 9 or 10 bytes long: an opcode byte, an optional
// register-pair byte (rA in the high nibble, rB in the low nibble, 0xF for
// no register), and an optional big-endian 64-bit immediate.
//
// A run ends in one of three terminal states: STAT_HLT after a halt
// instruction, STAT_ADR after an out of bounds access or a store at or
// above %rsp, and STAT_INS after an invalid opcode or register.
//
// The Writer encodes instructions into memory one at a time, and the
// Assembler builds a whole Program from assembly text, supporting macros,
// labels, equates, and compile-time expression evaluation.
package cpu
