// Package main implements jmmc, a tool for the Jmm back end's textual IR.
//
// It reads a class in textual IR, runs liveness and register allocation,
// and prints the result. Source parsing and bytecode emission live elsewhere.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/compiler"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/config"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/interp"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/ir"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/liveness"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/logger"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	cmd := os.Args[1]
	switch cmd {
	case "alloc":
		err = alloc(os.Args[2:])
	case "liveness":
		err = live(os.Args[2:])
	case "run":
		err = run(os.Args[2:])
	case "version":
		fmt.Printf("jmmc version %s\n", version)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`jmmc - Jmm back-end IR tool

Usage:
    jmmc alloc <class.ir> [flags]           Allocate registers and print the IR
    jmmc liveness <class.ir> [flags]        Print per-instruction liveness sets
    jmmc run <class.ir> <method> [ints...]  Interpret a static method
    jmmc version                            Show version
    jmmc help                               Show this help message

Flags:
    -r <n>          Register budget (0: minimum, -1: skip allocation)
    -config <file>  Settings file (default: jmmc.toml)
    -min            Report the minimum budget when allocation fails
    -v              Verbose output`)
}

type common struct {
	fs         *flag.FlagSet
	configPath string
	registers  int
	minimum    bool
	verbose    bool
}

func newCommon(name string) *common {
	c := &common{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	c.fs.StringVar(&c.configPath, "config", config.FileName, "settings file")
	c.fs.IntVar(&c.registers, "r", 0, "register budget")
	c.fs.BoolVar(&c.minimum, "min", false, "report the minimum budget on failure")
	c.fs.BoolVar(&c.verbose, "v", false, "verbose output")
	return c
}

// setup parses args, loads settings, starts logging and reads the IR file
// named by the first positional argument
func (c *common) setup(args []string) (*config.Config, *ir.Class, error) {
	if err := c.fs.Parse(flagArgs(args)); err != nil {
		return nil, nil, err
	}
	if c.fs.NArg() == 0 {
		return nil, nil, errors.New("no input file")
	}
	path := c.fs.Arg(0)

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	c.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "r":
			cfg.Registers = c.registers
		case "min":
			cfg.ReportMinimum = c.minimum
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if c.verbose {
		logger.InitDev()
	} else if err := logger.Init(cfg.Logger()); err != nil {
		return nil, nil, err
	}
	logger.LogCompilerStart(os.Args[1:])

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	class, err := ir.Parse(string(src))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, class, nil
}

func alloc(args []string) error {
	c := newCommon("alloc")
	cfg, class, err := c.setup(args)
	if err != nil {
		return err
	}

	start := time.Now()
	unit, err := compiler.CompileIR(class, cfg.Options())
	logger.LogCompilerComplete(err == nil, time.Since(start).String())

	if perr := ir.Print(os.Stdout, class); perr != nil {
		return perr
	}
	for _, mu := range unit.Methods {
		state := "allocated"
		if !mu.Allocated {
			state = "fallback"
		}
		fmt.Fprintf(os.Stderr, "%s: %d locals (%s)\n", mu.Method.Name, mu.Locals, state)
	}
	return err
}

func live(args []string) error {
	c := newCommon("liveness")
	_, class, err := c.setup(args)
	if err != nil {
		return err
	}
	for _, m := range class.Methods {
		r := liveness.Analyze(m)
		fmt.Printf("%s: %d passes\n", m.Name, r.Passes)
		labels := m.LabelsAt()
		for i, inst := range m.Insts {
			for _, l := range labels[i] {
				fmt.Printf("  %s:\n", l)
			}
			fmt.Printf("  %3d  %-40s in=%v out=%v\n", i, ir.FormatInst(inst), r.In[i].Sorted(), r.Out[i].Sorted())
		}
	}
	return nil
}

func run(args []string) error {
	c := newCommon("run")
	cfg, class, err := c.setup(args)
	if err != nil {
		return err
	}
	if c.fs.NArg() < 2 {
		return errors.New("usage: jmmc run <class.ir> <method> [ints...]")
	}
	method := c.fs.Arg(1)
	var params []any
	for _, a := range c.fs.Args()[2:] {
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return fmt.Errorf("argument %q: %w", a, err)
		}
		params = append(params, n)
	}

	if _, err := compiler.CompileIR(class, cfg.Options()); err != nil && !compiler.IsInfeasible(err) {
		return err
	}
	m := interp.New(class, interp.HostFunc(printHost))
	m.MaxSteps = 10_000_000
	res, err := m.Call(method, nil, params...)
	if err != nil {
		return err
	}
	if res != nil {
		fmt.Println(res)
	}
	return nil
}

// flagArgs moves flags ahead of positional arguments, which may then start
// with a minus sign
func flagArgs(args []string) []string {
	var flags, rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if len(a) > 1 && a[0] == '-' && (a[1] < '0' || a[1] > '9') {
			flags = append(flags, a)
			if !strings.Contains(a, "=") && a != "-min" && a != "-v" && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
			continue
		}
		rest = append(rest, a)
	}
	return append(append(flags, "--"), rest...)
}

// printHost stands in for imported library classes: every static call prints
// its arguments and returns 0
func printHost(class, method string, args []any) (any, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	fmt.Printf("%s.%s(%s)\n", class, method, strings.Join(parts, ", "))
	return int64(0), nil
}
