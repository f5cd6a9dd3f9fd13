// Command oomph compiles a single oomph source file down to C and,
// unless told otherwise, hands the result to the system C compiler
// (cc) and runs it, reporting the exit code or the signal that killed
// the program. No build cache is kept: every run recompiles the
// translation unit.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hashicorp/logutils"

	"oomph"
)

func main() {
	var (
		valgrind = flag.Bool("valgrind", false, "wrap the resulting executable with valgrind")
		cCodeOut = flag.Bool("c-code", false, "print generated C to stdout and exit, without compiling it")
		verbose  = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	filter := &logutils.LevelFilter{
		Levels:   []logutils.LogLevel{"DEBUG", "INFO", "WARN", "ERROR"},
		MinLevel: "INFO",
		Writer:   os.Stderr,
	}
	if *verbose {
		filter.MinLevel = "DEBUG"
	}
	log.SetOutput(filter)
	log.SetFlags(0)

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: oomph [--valgrind] [--c-code] [-v] <input.oomph>")
		os.Exit(2)
	}
	inputPath := flag.Arg(0)

	cSource, err := compileToC(inputPath)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	if *cCodeOut {
		fmt.Print(cSource)
		return
	}

	exitCode, err := buildAndRun(inputPath, cSource, *valgrind)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

// compileToC runs the full lex -> parse -> type -> emit pipeline
// (spec.md §4) over one source file.
func compileToC(inputPath string) (string, error) {
	src, err := os.ReadFile(inputPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", inputPath, err)
	}
	log.Printf("[DEBUG] lexing %s", inputPath)

	cfg := oomph.NewConfig()
	lexer := oomph.NewLexer(string(src), cfg.GetInt("lexer.indent_width"))
	toks, err := lexer.Tokenize()
	if err != nil {
		return "", reportCompileError(inputPath, err)
	}

	log.Printf("[DEBUG] parsing %s (%d tokens)", inputPath, len(toks))
	p := oomph.NewParser(toks, cfg.GetInt("lexer.indent_width"))
	file, err := p.ParseFile()
	if err != nil {
		return "", reportCompileError(inputPath, err)
	}

	if err := resolveImports(inputPath, file); err != nil {
		return "", err
	}

	log.Printf("[DEBUG] typing %s", inputPath)
	typer := oomph.NewTyper()
	unit, err := typer.TypeFile(file)
	if err != nil {
		return "", reportCompileError(inputPath, err)
	}

	log.Printf("[DEBUG] emitting C for %s", inputPath)
	return oomph.EmitC(unit), nil
}

// importCycleError reports the chain of import paths that closes a
// cycle, innermost file last.
type importCycleError struct {
	cycle []string
}

func (e *importCycleError) Error() string {
	return fmt.Sprintf("import cycle detected: %s", strings.Join(e.cycle, " -> "))
}

// resolveImports walks the transitive import graph rooted at file,
// re-lexing and re-parsing each imported path only far enough to read
// its own import list, and fails the moment a path reappears on the
// current walk's stack. Spec.md §1 asks only for cycle detection, not
// a full module system, so a resolved import's declarations are never
// folded into the caller's AST -- multi-file compilation units stay
// out of scope.
func resolveImports(inputPath string, file *oomph.File) error {
	cfg := oomph.NewConfig()
	indentWidth := cfg.GetInt("lexer.indent_width")
	visited := map[string]bool{}

	var visit func(path string, f *oomph.File, stack []string) error
	visit = func(path string, f *oomph.File, stack []string) error {
		for _, imp := range f.Imports {
			importPath, err := importFilePath(path, imp.Path)
			if err != nil {
				return err
			}
			for _, s := range stack {
				if s == importPath {
					return &importCycleError{cycle: append(append([]string{}, stack...), importPath)}
				}
			}
			if visited[importPath] {
				continue
			}
			visited[importPath] = true

			src, err := os.ReadFile(importPath)
			if err != nil {
				return fmt.Errorf("resolving import %q from %s: %w", imp.Path, path, err)
			}
			toks, err := oomph.NewLexer(string(src), indentWidth).Tokenize()
			if err != nil {
				return reportCompileError(importPath, err)
			}
			impFile, err := oomph.NewParser(toks, indentWidth).ParseFile()
			if err != nil {
				return reportCompileError(importPath, err)
			}
			if err := visit(importPath, impFile, append(stack, importPath)); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(inputPath, file, []string{inputPath})
}

// importFilePath turns a dotted import path like "foo.bar.baz" into a
// file path relative to the directory of the importing file: each dot
// is a path separator and the final component names the .oomph file,
// the same shape grammar_import_loaders.go resolves for "./foo/bar".
func importFilePath(parentPath, importPath string) (string, error) {
	if importPath == "" {
		return "", fmt.Errorf("empty import path")
	}
	rel := strings.ReplaceAll(importPath, ".", string(filepath.Separator)) + ".oomph"
	return filepath.Join(filepath.Dir(parentPath), rel), nil
}

func reportCompileError(inputPath string, err error) error {
	if ce, ok := err.(*oomph.CompileError); ok {
		return fmt.Errorf("%s: %s", inputPath, ce.Error())
	}
	return fmt.Errorf("%s: %w", inputPath, err)
}

// externalCompiler is the seam between this driver and a system C
// toolchain; ccCompiler shells out to cc. No cache sits in front of
// it, so unchanged sources are recompiled on every run.
type externalCompiler interface {
	compile(cSource, binaryPath string) error
}

type ccCompiler struct{}

func (ccCompiler) compile(cSource, binaryPath string) error {
	tmp, err := os.CreateTemp("", "oomph-*.c")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(cSource); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	libDir := filepath.Join(filepath.Dir(os.Args[0]), "lib")
	cmd := exec.Command("cc", "-O2", "-Wall", "-I", libDir, tmp.Name(), filepath.Join(libDir, "oomph.c"), "-o", binaryPath)
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// buildAndRun compiles cSource to a temporary executable and runs it,
// mirroring the exit code / signal-name reporting spec.md §6 asks of
// the driver.
func buildAndRun(inputPath, cSource string, valgrind bool) (int, error) {
	binaryPath, err := os.CreateTemp("", "oomph-bin-*")
	if err != nil {
		return 1, err
	}
	binaryPath.Close()
	defer os.Remove(binaryPath.Name())

	var compiler externalCompiler = ccCompiler{}
	if err := compiler.compile(cSource, binaryPath.Name()); err != nil {
		return 1, fmt.Errorf("compiling generated C for %s: %w", inputPath, err)
	}

	var cmd *exec.Cmd
	if valgrind {
		cmd = exec.Command("valgrind", binaryPath.Name())
	} else {
		cmd = exec.Command(binaryPath.Name())
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	err = cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			sig := status.Signal()
			fmt.Fprintf(os.Stderr, "Program killed by signal %d (%s)\n", int(sig), strings.ToUpper(sig.String()))
			return 128 + int(sig), nil
		}
		return exitErr.ExitCode(), nil
	}
	return 1, err
}
