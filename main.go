package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hadrian-reppas/tml/tml"
)

type options struct {
	maxMoves      uint64
	hideTape      bool
	hideDecimal   bool
	decimalRadix  int
	decimalStart  int
	decimalStride int
	noColor       bool
	allowTabs     bool
	dumpBytecode  bool
	time          bool
	terminalWidth int
	verbose       bool
}

func main() {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "tml MACHINE [TAPE]",
		Short:         "Compile and run a Turing machine",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, args)
		},
	}

	flags := cmd.Flags()
	flags.Uint64VarP(&opts.maxMoves, "max-moves", "m", math.MaxUint64, "maximum number of moves")
	flags.BoolVar(&opts.hideTape, "hide-tape", false, "don't print the final tape")
	flags.BoolVar(&opts.hideDecimal, "hide-decimal", false, "don't print the decimal interpretation of the final tape")
	flags.IntVarP(&opts.decimalRadix, "decimal-radix", "r", 2, "radix for the final decimal (2-36)")
	flags.IntVarP(&opts.decimalStart, "decimal-start", "s", 2, "start position for the final decimal")
	flags.IntVarP(&opts.decimalStride, "decimal-stride", "S", 2, "stride for the final decimal")
	flags.BoolVar(&opts.noColor, "no-color", false, "don't color output")
	flags.BoolVar(&opts.allowTabs, "allow-tabs", false, "allow tab characters in machine and tape files")
	flags.BoolVarP(&opts.dumpBytecode, "dump-bytecode", "d", false, "dump bytecode")
	flags.BoolVarP(&opts.time, "time", "t", false, "time compilation and execution")
	flags.IntVarP(&opts.terminalWidth, "terminal-width", "w", 0, "maximum width when printing the final tape")
	flags.BoolVar(&opts.verbose, "verbose", false, "log compiler internals")

	if err := cmd.Execute(); err != nil {
		if cerr, ok := err.(*tml.Error); ok {
			cerr.Print(os.Stdout, opts.noColor)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(opts *options, args []string) error {
	if opts.decimalRadix < 2 || opts.decimalRadix > 36 {
		return fmt.Errorf("decimal radix must be between 2 and 36, got %d", opts.decimalRadix)
	}
	if opts.decimalStride < 1 {
		return fmt.Errorf("decimal stride must be at least 1, got %d", opts.decimalStride)
	}
	if opts.decimalStart < 0 {
		return fmt.Errorf("decimal start must not be negative, got %d", opts.decimalStart)
	}
	if opts.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	color.NoColor = color.NoColor || opts.noColor

	start := time.Now()

	lexer, cerr := tml.NewLexerFromFile(args[0], opts.allowTabs)
	if cerr != nil {
		return cerr
	}
	unit, cerr := tml.Parse(lexer)
	if cerr != nil {
		return cerr
	}

	var tapeSymbols []string
	if len(args) == 2 {
		tapeLexer, cerr := tml.NewLexerFromFile(args[1], opts.allowTabs)
		if cerr != nil {
			return cerr
		}
		tapeSymbols, cerr = tml.ParseTape(tapeLexer)
		if cerr != nil {
			return cerr
		}
	}

	compiled, cerr := tml.Compile(unit, tapeSymbols)
	if cerr != nil {
		return cerr
	}
	compileTime := time.Since(start)

	logrus.WithFields(logrus.Fields{
		"states":  len(compiled.StateNames),
		"bytes":   len(compiled.Bytes),
		"symbols": compiled.Symbols.Len(),
		"tape":    len(compiled.Tape),
	}).Debug("compiled")

	if opts.dumpBytecode {
		if cerr := tml.Dump(os.Stdout, compiled.Bytes, opts.noColor); cerr != nil {
			return cerr
		}
	}

	start = time.Now()
	result, cerr := tml.Run(compiled.Bytes, compiled.Tape, opts.maxMoves)
	if cerr != nil {
		return cerr
	}
	execTime := time.Since(start)

	label := color.New(color.Bold, color.FgGreen)
	if opts.noColor {
		label.DisableColor()
	}

	if opts.time {
		label.Print("compile time:")
		fmt.Printf(" %v\n", compileTime)
		label.Print("execution time:")
		fmt.Printf(" %v\n\n", execTime)
	}

	tape := make([]string, len(result.Tape))
	for i, id := range result.Tape {
		tape[i] = compiled.Symbols.Text(id)
	}

	if !opts.hideTape {
		width := opts.terminalWidth
		if width == 0 {
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				width = w
			} else {
				width = 80
			}
		}
		label.Println("final tape:")
		tml.RenderTape(os.Stdout, tape, width)
	}

	if !opts.hideDecimal {
		label.Print("decimal:")
		fmt.Printf(" %s\n\n", tml.FormatDecimal(tape, opts.decimalRadix, opts.decimalStart, opts.decimalStride))
	}

	fmt.Println("moves:", result.Moves)
	fmt.Println("tape head:", result.Head)
	fmt.Printf("final state: %s (%d)\n", compiled.StateName(result.FinalAddress), result.FinalAddress)
	return nil
}
