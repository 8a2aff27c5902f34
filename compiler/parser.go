package compiler

import (
	"fmt"

	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
)

// parser is a recursive-descent, single-pass parser/codegen: every rule
// emits directly into the current funcState rather than building an
// intermediate AST, matching the reference language's own front end
// shape (see the package doc comment for why there is no literal
// original_source/ file to port instead).
type parser struct {
	lex  *lexer
	tok  token
	peek *token
	fs   *funcState
}

// Parse compiles source into a runtime vm.Proto for a vararg top-level
// chunk named chunkName (the conventional "main function" every script
// compiles to).
func Parse(source, chunkName string) (proto *vm.Proto, err error) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(parseError); ok {
				err = fmt.Errorf("%s:%d: %s", chunkName, pe.line, pe.msg)
				return
			}
			panic(r)
		}
	}()

	p := &parser{lex: newLexer(source)}
	p.advance()

	p.fs = newFuncState(nil, chunkName)
	p.fs.isVararg = true
	p.block()
	p.expect(tokEOF, "")
	p.fs.emit(vm.OpReturn, 0, 1, 0)

	return p.fs.toProto(0, true, 0), nil
}

type parseError struct {
	line int
	msg  string
}

func (p *parser) fail(format string, args ...any) {
	panic(parseError{line: p.tok.line, msg: fmt.Sprintf(format, args...)})
}

func (p *parser) advance() {
	if p.peek != nil {
		p.tok = *p.peek
		p.peek = nil
		return
	}
	t, err := p.lex.next()
	if err != nil {
		panic(parseError{line: p.lex.line, msg: err.Error()})
	}
	p.tok = t
}

func (p *parser) peekTok() token {
	if p.peek == nil {
		t, err := p.lex.next()
		if err != nil {
			panic(parseError{line: p.lex.line, msg: err.Error()})
		}
		p.peek = &t
	}
	return *p.peek
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok.kind == tokKeyword && p.tok.text == kw
}

func (p *parser) isSymbol(sym string) bool {
	return p.tok.kind == tokSymbol && p.tok.text == sym
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) acceptSymbol(sym string) bool {
	if p.isSymbol(sym) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectSymbol(sym string) {
	if !p.acceptSymbol(sym) {
		p.fail("expected %q, got %q", sym, p.tok.text)
	}
}

func (p *parser) expectKeyword(kw string) {
	if !p.acceptKeyword(kw) {
		p.fail("expected %q, got %q", kw, p.tok.text)
	}
}

func (p *parser) expect(kind tokenKind, what string) {
	if p.tok.kind != kind {
		p.fail("expected %s, got %q", what, p.tok.text)
	}
}

func (p *parser) expectName() string {
	if p.tok.kind != tokName {
		p.fail("expected a name, got %q", p.tok.text)
	}
	name := p.tok.text
	p.advance()
	return name
}

func (p *parser) blockFollows() bool {
	if p.tok.kind == tokEOF {
		return true
	}
	if p.tok.kind == tokKeyword {
		switch p.tok.text {
		case "end", "else", "elseif", "until":
			return true
		}
	}
	return false
}

// block parses a sequence of statements up to a block-ending keyword or
// EOF as its own scope: locals declared inside it are dropped from
// funcState.locals when it ends (their registers are not freed).
func (p *parser) block() {
	savedLocals := len(p.fs.locals)
	for !p.blockFollows() {
		if p.isKeyword("return") {
			p.returnStat()
			break
		}
		if p.statement() {
			break
		}
	}
	p.fs.locals = p.fs.locals[:savedLocals]
}

// statement parses one statement, returning true if it was a
// block-terminating statement (only break; return is handled by block).
func (p *parser) statement() bool {
	switch {
	case p.acceptSymbol(";"):
		return false
	case p.isKeyword("if"):
		p.ifStat()
	case p.isKeyword("while"):
		p.whileStat()
	case p.isKeyword("do"):
		p.advance()
		p.block()
		p.expectKeyword("end")
	case p.isKeyword("for"):
		p.forStat()
	case p.isKeyword("function"):
		p.funcStat()
	case p.isKeyword("local"):
		p.localStat()
	case p.isKeyword("break"):
		p.advance()
		p.breakStat()
		return true
	default:
		p.exprStat()
	}
	return false
}

func (p *parser) breakStat() {
	if len(p.fs.breakJumps) == 0 {
		p.fail("break outside a loop")
	}
	pc := p.fs.emit(vm.OpJmp, 0, 0, 0)
	top := len(p.fs.breakJumps) - 1
	p.fs.breakJumps[top] = append(p.fs.breakJumps[top], pc)
}

func (p *parser) returnStat() {
	p.advance()
	base := p.fs.freeReg
	n := 0
	if !p.blockFollows() && !p.isSymbol(";") {
		n = p.exprList(base)
	}
	p.acceptSymbol(";")
	p.fs.emit(vm.OpReturn, base, n+1, 0)
	p.fs.freeTo(base)
}

// exprList compiles a comma-separated list of single-value expressions
// into consecutive registers starting at base, returning the count.
func (p *parser) exprList(base int) int {
	n := 0
	for {
		reg := p.fs.reserve(1)
		p.expr(reg)
		n++
		if reg != base+n-1 {
			p.fail("internal: non-contiguous expression registers")
		}
		if !p.acceptSymbol(",") {
			break
		}
	}
	return n
}

func (p *parser) ifStat() {
	p.advance()
	var exitJumps []int

	cond := p.fs.reserve(1)
	p.expr(cond)
	p.fs.freeTo(cond)
	p.expectKeyword("then")
	p.fs.emit(vm.OpTest, cond, 0, 0)
	jmpFalse := p.fs.emit(vm.OpJmp, 0, 0, 0)
	p.block()

	for p.isKeyword("elseif") || p.isKeyword("else") {
		exitJumps = append(exitJumps, p.fs.emit(vm.OpJmp, 0, 0, 0))
		p.fs.patchJumpHere(jmpFalse)

		if p.acceptKeyword("elseif") {
			cond2 := p.fs.reserve(1)
			p.expr(cond2)
			p.fs.freeTo(cond2)
			p.expectKeyword("then")
			p.fs.emit(vm.OpTest, cond2, 0, 0)
			jmpFalse = p.fs.emit(vm.OpJmp, 0, 0, 0)
			p.block()
		} else {
			p.advance() // else
			p.block()
			jmpFalse = -1
			break
		}
	}

	if jmpFalse >= 0 {
		p.fs.patchJumpHere(jmpFalse)
	}
	for _, j := range exitJumps {
		p.fs.patchJumpHere(j)
	}
	p.expectKeyword("end")
}

func (p *parser) whileStat() {
	p.advance()
	startPC := len(p.fs.code)

	cond := p.fs.reserve(1)
	p.expr(cond)
	p.fs.freeTo(cond)
	p.expectKeyword("do")
	p.fs.emit(vm.OpTest, cond, 0, 0)
	exitJmp := p.fs.emit(vm.OpJmp, 0, 0, 0)

	p.fs.breakJumps = append(p.fs.breakJumps, nil)
	p.block()
	breaks := p.fs.breakJumps[len(p.fs.breakJumps)-1]
	p.fs.breakJumps = p.fs.breakJumps[:len(p.fs.breakJumps)-1]

	p.expectKeyword("end")
	p.fs.emitJumpTo(vm.OpJmp, 0, startPC)
	p.fs.patchJumpHere(exitJmp)
	for _, b := range breaks {
		p.fs.patchJumpHere(b)
	}
}

// forStat parses the numeric for loop (for NAME = e1, e2 [, e3] do block
// end); generic for-in is out of scope (the VM has no OpTForLoop
// equivalent, matching the reduced opcode set's own scope reduction).
func (p *parser) forStat() {
	p.advance()
	name := p.expectName()
	p.expectSymbol("=")

	base := p.fs.reserve(3) // init, limit, step
	p.expr(base)
	p.expectSymbol(",")
	p.expr(base + 1)
	if p.acceptSymbol(",") {
		p.expr(base + 2)
	} else {
		stepIdx := p.fs.addConstant(constKey{"n", 1}, value.Num(1))
		p.fs.emitBx(vm.OpLoadK, base+2, stepIdx)
	}
	p.fs.reserve(1) // loop variable register, base+3

	p.expectKeyword("do")
	prepPC := p.fs.emit(vm.OpForPrep, base, 0, 0)

	savedLocals := len(p.fs.locals)
	p.fs.declareLocal(name, base+3)

	p.fs.breakJumps = append(p.fs.breakJumps, nil)
	loopStart := len(p.fs.code)
	p.block()
	breaks := p.fs.breakJumps[len(p.fs.breakJumps)-1]
	p.fs.breakJumps = p.fs.breakJumps[:len(p.fs.breakJumps)-1]

	p.fs.locals = p.fs.locals[:savedLocals]
	p.expectKeyword("end")

	p.fs.patchJumpHere(prepPC)
	p.fs.emitJumpTo(vm.OpForLoop, base, loopStart)
	for _, b := range breaks {
		p.fs.patchJumpHere(b)
	}
	p.fs.freeTo(base)
}

// localStat parses `local NAME {, NAME} [= exprlist]` and
// `local function NAME funcbody`.
func (p *parser) localStat() {
	p.advance()
	if p.acceptKeyword("function") {
		name := p.expectName()
		reg := p.fs.reserve(1)
		p.fs.declareLocal(name, reg) // declared before the body so it can recurse
		p.funcBody(reg, false)
		return
	}

	names := []string{p.expectName()}
	for p.acceptSymbol(",") {
		names = append(names, p.expectName())
	}

	base := p.fs.freeReg
	nexprs := 0
	if p.acceptSymbol("=") {
		nexprs = p.exprList(base)
	}
	for i := range names {
		reg := base + i
		if i >= nexprs {
			p.fs.reserve(1)
			p.fs.emit(vm.OpLoadNil, reg, reg, 0)
		}
		p.fs.declareLocal(names[i], reg)
	}
}

// funcStat parses `function funcname funcbody` where funcname is
// NAME{.NAME}[:NAME], desugared into an assignment of a closure to the
// named target (a global, upvalue, or table field of the outermost
// name).
func (p *parser) funcStat() {
	p.advance()
	base := p.fs.freeReg
	name := p.expectName()
	var target varTarget = p.resolveVarTarget(name)
	reg := base
	isMethod := false

	for p.isSymbol(".") || p.isSymbol(":") {
		method := p.isSymbol(":")
		p.advance()
		field := p.expectName()

		cur := p.fs.reserve(1)
		target.read(p.fs, cur)
		reg = cur

		keyIdx := p.fs.addConstant(constKey{"s", field}, value.Str(field))
		target = fieldTarget{tableReg: reg, key: p.fs.constK(keyIdx)}
		if method {
			isMethod = true
			break
		}
	}

	destReg := p.fs.reserve(1)
	p.funcBody(destReg, isMethod)
	target.write(p.fs, destReg)
	p.fs.freeTo(base)
}

// exprStat parses either a bare function-call statement or an assignment
// statement (single target only — this compiler's scope reduction; see
// DESIGN.md).
func (p *parser) exprStat() {
	base := p.fs.reserve(1)
	reg, isCall, target := p.suffixedExpr(base)
	_ = reg

	if p.acceptSymbol("=") {
		if target == nil {
			p.fail("syntax error: cannot assign to this expression")
		}
		valReg := p.fs.reserve(1)
		p.expr(valReg)
		target.write(p.fs, valReg)
		p.fs.freeTo(base)
		return
	}

	if !isCall {
		p.fail("syntax error: expression statement is not a function call")
	}
	p.fs.freeTo(base)
}
