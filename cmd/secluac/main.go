// Command secluac is the standalone precompiler (spec §6's "CLI
// surface (external collaborator, not core)"): it compiles one or more
// source chunks (or stdin, named "-") to the precompiled-chunk wire
// format implemented by the bytecode package. Flags follow spec §6
// literally: -l lists instructions instead of writing a binary, -o sets
// the output file, -p parses only (no output), -s strips debug info
// (local/upvalue names), -v prints the version, and -- terminates flag
// parsing. Grounded on cmd/gosec/main.go's flag/exit-code conventions,
// adapted from "scan packages, print issues" to "compile chunks, print
// a listing or a binary".
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/taintscript/seclua/bytecode"
	"github.com/taintscript/seclua/compiler"
	"github.com/taintscript/seclua/vm"
)

var (
	flagList    = flag.Bool("l", false, "list compiled instructions instead of writing a binary chunk")
	flagOutput  = flag.String("o", "luac.out", "output file name")
	flagParse   = flag.Bool("p", false, "parse only, produce no output")
	flagStrip   = flag.Bool("s", false, "strip debug information (local/upvalue names)")
	flagVersion = flag.Bool("v", false, "print version information")
)

const versionText = "secluac (seclua precompiler)"

func readSource(path string) (string, string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), "=stdin", err
	}
	data, err := os.ReadFile(path) // #nosec G304
	return string(data), "@" + path, err
}

func stripDebug(p *vm.Proto) {
	p.Locals = nil
	p.UpvalueNames = make([]string, p.NumUpvalues)
	for i := range p.Prototypes {
		stripDebug(p.Prototypes[i])
	}
}

func listProto(w io.Writer, p *vm.Proto, indent string) {
	fmt.Fprintf(w, "%sfunction <%s:%d> (%d instructions, %d params%s)\n",
		indent, p.Source, p.LineDefined, len(p.Code), p.NumParams, varargSuffix(p.IsVararg))
	for i, instr := range p.Code {
		fmt.Fprintf(w, "%s\t%d\t%s\tA=%d B=%d C=%d\n", indent, i+1, opName(instr.Op), instr.A, instr.B, instr.C)
	}
	for _, sub := range p.Prototypes {
		listProto(w, sub, indent+"  ")
	}
}

func varargSuffix(isVararg bool) string {
	if isVararg {
		return ", vararg"
	}
	return ""
}

func opName(op vm.Opcode) string {
	names := [...]string{
		"LOADK", "LOADBOOL", "LOADNIL", "MOVE", "GETGLOBAL", "SETGLOBAL",
		"GETUPVAL", "SETUPVAL", "GETTABLE", "SETTABLE", "SELF", "NEWTABLE",
		"SETLIST", "ADD", "SUB", "MUL", "DIV", "MOD", "POW", "UNM", "NOT",
		"LEN", "CONCAT", "EQ", "LT", "LE", "JMP", "TEST", "TESTSET", "CALL",
		"TAILCALL", "RETURN", "VARARG", "CLOSURE", "FORPREP", "FORLOOP", "CLOSE",
	}
	if int(op) < len(names) {
		return names[op]
	}
	return "UNKNOWN"
}

func compileOne(path string) (*vm.Proto, error) {
	source, chunkName, err := readSource(path)
	if err != nil {
		return nil, err
	}
	proto, err := compiler.Parse(source, chunkName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return proto, nil
}

func run() error {
	flag.Parse()

	if *flagVersion {
		fmt.Println(versionText)
		return nil
	}

	paths := flag.Args()
	if len(paths) == 0 {
		paths = []string{"-"}
	}

	protos := make([]*vm.Proto, 0, len(paths))
	for _, path := range paths {
		proto, err := compileOne(path)
		if err != nil {
			return err
		}
		protos = append(protos, proto)
	}

	if *flagParse {
		return nil
	}

	if *flagStrip {
		for _, p := range protos {
			stripDebug(p)
		}
	}

	if *flagList {
		w := bufio.NewWriter(os.Stdout)
		defer w.Flush()
		for _, p := range protos {
			listProto(w, p, "")
		}
		return nil
	}

	out, err := os.Create(*flagOutput) // #nosec G304
	if err != nil {
		return err
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	for _, p := range protos {
		if err := bytecode.Dump(w, p.ToChunk()); err != nil {
			return err
		}
	}
	return w.Flush()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
