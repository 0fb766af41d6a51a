package cpu

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO":    "0",
	"QUAD_SIZE": fmt.Sprintf("%v", QUAD_SIZE),
}

// Assembler is a single pass macro assembler for Y86-64 assembly text.
type Assembler struct {
	Verbose   bool        // If set, verbosely logs the assembler actions.
	Statement []Statement // List of generated statements.

	predefine map[string]string   // Predefines
	Label     map[string]uint64   // Map of labels to addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.

	pos uint64 // Location counter.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// regMap is a map of register names to register identifiers.
var regMap = func() map[string]Register {
	regs := make(map[string]Register, REG_COUNT)
	for reg := REG_RAX; reg < REG_NONE; reg++ {
		regs[reg.String()] = reg
	}
	return regs
}()

// registerOf returns the register named by a word.
func (asm *Assembler) registerOf(word string) (reg Register, err error) {
	reg, ok := regMap[word]
	if !ok {
		err = ErrParseRegister(word)
	}
	return
}

// valueOf returns the value of a simple word.
func (asm *Assembler) valueOf(word string) (value int64, err error) {
	if len(word) == 0 {
		err = ErrParseNumber(word)
		return
	}

	invert := false
	if word[0] == '~' {
		invert = true
		word = word[1:]
	}

	value, err = strconv.ParseInt(word, 0, 64)
	if err != nil {
		var u64 uint64
		u64, err = strconv.ParseUint(word, 0, 64)
		if err != nil {
			err = ErrParseNumber(word)
			return
		}
		value = int64(u64)
	}

	if invert {
		value = ^value
	}

	return
}

var labelRegexp = regexp.MustCompile(`^[A-Za-z_.][A-Za-z0-9_.]*$`)

// valueOrLabel returns either the value of a word, or the label it references.
func (asm *Assembler) valueOrLabel(word string) (value int64, label string, err error) {
	value, err = asm.valueOf(word)
	if err == nil {
		return
	}

	if labelRegexp.MatchString(word) {
		label = word
		err = nil
	}
	return
}

var memRegexp = regexp.MustCompile(`^([^()]*)\((%[a-z0-9]+)\)$`)

// memoryOf parses a D(%rB) memory operand.
func (asm *Assembler) memoryOf(word string) (disp int64, reg Register, err error) {
	parts := memRegexp.FindStringSubmatch(word)
	if parts == nil {
		err = ErrAddressInvalid
		return
	}

	if len(parts[1]) > 0 {
		word := parts[1]
		equate, ok := asm.Equate[word]
		if ok {
			word = equate
		}
		disp, err = asm.valueOf(word)
		if err != nil {
			return
		}
	}

	reg, err = asm.registerOf(parts[2])
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var value64 int64
		value64, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			continue
		}
		pred[key] = starlark.MakeInt64(value64)
	}
	err = nil

	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrParseExpression(expr), err)
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	return
}

var (
	charRegexp  = regexp.MustCompile(`'\\?[^']'`)
	parenRegexp = regexp.MustCompile(`\$\((?:[^()$]|\([^()$]*\))*\)`)
)

// parseLine parses a single line into words, handling equates, labels and macros.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do 'x' evaluations
	line = charRegexp.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "e":
				str = "\033"
			case "0":
				str = "\000"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	line = parenRegexp.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%#x", value)
	})
	if err != nil {
		return
	}

	line = strings.NewReplacer(",", " ", "\t", " ").Replace(line)
	words = slices.DeleteFunc(strings.Split(line, " "), func(a string) bool { return len(a) == 0 })

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
			continue
		}
		if strings.HasPrefix(word, "$") {
			equate, ok = asm.Equate[word[1:]]
			if ok {
				words[n] = "$" + equate
			}
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]uint64, 16)
		}
		asm.Label[label] = asm.pos
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = args[n]
		}
		defer func() { asm.Equate = old_equate }()

		prefix := fmt.Sprintf("%v_%v_%v_", name, lineno, len(asm.Statement))
		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", prefix)
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.Label = make(map[string]uint64, 16)
	asm.Statement = asm.Statement[:0]
	asm.pos = 0
	if asm.Macro == nil {
		asm.Macro = make(map[string](*Macro))
	}
	clear(asm.Macro)
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("asm: %v: %v\n", lineno, text)
		}

		if at := strings.IndexAny(text, "#;"); at >= 0 {
			text = text[:at]
		}
		line = strings.TrimSpace(text)
		words := strings.Fields(line)

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Final linking of labels.
	for n := range asm.Statement {
		st := &asm.Statement[n]

		if len(st.LinkLabel) == 0 {
			continue
		}
		label := st.LinkLabel
		addr, ok := asm.Label[label]
		if !ok {
			lineno = st.LineNo
			line = strings.Join(st.Words, " ")
			err = ErrLabelMissing(label)
			return
		}
		switch {
		case len(st.Codes) == 1:
			st.Codes[0].Value = int64(addr)
		case len(st.Data) == QUAD_SIZE:
			binary.BigEndian.PutUint64(st.Data, addr)
		default:
			log.Fatalf("Unable to link label '%s' to line %d: %v", label, st.LineNo, st.Words)
		}
	}

	prog = &Program{
		Statements: slices.Clone(asm.Statement),
		Labels:     maps.Clone(asm.Label),
	}

	return
}

// argCount checks that exactly n operands were given.
func argCount(args []string, n int) error {
	switch {
	case len(args) < n:
		return ErrOpcodeMissing
	case len(args) > n:
		return ErrOpcodeExtraArgs
	}
	return nil
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	var codes []Instruction
	var data []byte
	var label string

	// no-op
	if len(words) == 0 {
		return
	}

	initial_words := slices.Clone(words)

	defer func() {
		if len(codes) == 0 && len(data) == 0 {
			return
		}
		st := Statement{LineNo: lineno, Addr: asm.pos, Words: initial_words, Codes: codes, Data: data, LinkLabel: label}
		asm.Statement = append(asm.Statement, st)
		asm.pos += st.Size()
	}()

	mnemonic := words[0]
	args := words[1:]

	// Directives
	switch mnemonic {
	case ".pos", ".align":
		err = argCount(args, 1)
		if err != nil {
			return
		}
		var value int64
		value, err = asm.valueOf(args[0])
		if err != nil {
			return
		}
		if mnemonic == ".pos" {
			if value < 0 || uint64(value) < asm.pos {
				err = ErrPositionBackwards
				return
			}
			asm.pos = uint64(value)
			return
		}
		if value <= 0 {
			err = ErrDirectiveInvalid
			return
		}
		align := uint64(value)
		asm.pos = (asm.pos + align - 1) / align * align
		return
	case ".quad":
		err = argCount(args, 1)
		if err != nil {
			return
		}
		var value int64
		value, label, err = asm.valueOrLabel(args[0])
		if err != nil {
			return
		}
		data = binary.BigEndian.AppendUint64(nil, uint64(value))
		return
	}

	if strings.HasPrefix(mnemonic, ".") {
		err = ErrDirectiveInvalid
		return
	}

	op, ok := mnemonicTable[mnemonic]
	if !ok {
		err = ErrInstructionInvalid
		return
	}

	var code Instruction

	switch {
	case op == OP_IRMOVQ:
		// irmovq $V, %rB
		err = argCount(args, 2)
		if err != nil {
			return
		}
		var value int64
		value, label, err = asm.valueOrLabel(strings.TrimPrefix(args[0], "$"))
		if err != nil {
			err = ErrImmediateInvalid
			return
		}
		var rb Register
		rb, err = asm.registerOf(args[1])
		if err != nil {
			return
		}
		code = MakeCodeImm(rb, value)
	case op == OP_RMMOVQ:
		// rmmovq %rA, D(%rB)
		err = argCount(args, 2)
		if err != nil {
			return
		}
		var ra, rb Register
		var disp int64
		ra, err = asm.registerOf(args[0])
		if err != nil {
			return
		}
		disp, rb, err = asm.memoryOf(args[1])
		if err != nil {
			return
		}
		code = MakeCodeMem(op, ra, rb, disp)
	case op == OP_MRMOVQ:
		// mrmovq D(%rB), %rA
		err = argCount(args, 2)
		if err != nil {
			return
		}
		var ra, rb Register
		var disp int64
		disp, rb, err = asm.memoryOf(args[0])
		if err != nil {
			return
		}
		ra, err = asm.registerOf(args[1])
		if err != nil {
			return
		}
		code = MakeCodeMem(op, ra, rb, disp)
	case op == OP_PUSHQ || op == OP_POPQ:
		err = argCount(args, 1)
		if err != nil {
			return
		}
		var ra Register
		ra, err = asm.registerOf(args[0])
		if err != nil {
			return
		}
		code = MakeCodeReg(op, ra)
	case op.Form() == FORM_REGS:
		err = argCount(args, 2)
		if err != nil {
			return
		}
		var ra, rb Register
		ra, err = asm.registerOf(args[0])
		if err != nil {
			return
		}
		rb, err = asm.registerOf(args[1])
		if err != nil {
			return
		}
		code = MakeCodeRegs(op, ra, rb)
	case op.Form() == FORM_DEST:
		err = argCount(args, 1)
		if err != nil {
			return
		}
		var dest int64
		dest, label, err = asm.valueOrLabel(args[0])
		if err != nil {
			err = ErrTargetInvalid
			return
		}
		code = MakeCodeDest(op, dest)
	default:
		err = argCount(args, 0)
		if err != nil {
			return
		}
		code = MakeCode(op)
	}

	codes = append(codes, code)

	return
}
