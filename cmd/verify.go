package main

import (
	"fmt"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
	"github.com/spf13/cobra"

	"wpcheck/internal/checker"
	"wpcheck/internal/ir"
)

var (
	ProgramFile string
	opts        checker.Options
)

var verifyCommand = &cobra.Command{
	Use:   "verify",
	Short: "verify a property of one binary",
	Long:  ``,
	Run: func(*cobra.Command, []string) {
		if err := verifyExec(); err != nil {
			fmt.Printf("service err: %v\n", err)
		}
	},
}

func init() {
	addCommonFlags(verifyCommand)
	verifyCommand.Flags().StringVar(&ProgramFile, "file", "", "lifted CFG dump (json)")
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&opts.Func, "func", "", "subroutine to analyze")
	cmd.Flags().StringVar(&opts.Precond, "precond", "", "literal precondition, solver syntax")
	cmd.Flags().StringVar(&opts.Postcond, "postcond", "", "literal postcondition, solver syntax")
	cmd.Flags().IntVar(&opts.NumUnroll, "num-unroll", 0, "loop unroll bound (default 5)")
	cmd.Flags().BoolVar(&opts.CheckNullDeref, "check-null-deref", false, "emit non-null obligations for memory accesses")
	cmd.Flags().BoolVar(&opts.CheckOutOfBounds, "check-out-of-bounds", false, "emit stack/heap bounds obligations for memory accesses")
	cmd.Flags().StringVar(&opts.Inline, "inline", "", "inline callees matching regex")
	cmd.Flags().Uint64Var(&opts.StackBase, "stack-base", 0, "stack region base address")
	cmd.Flags().Uint64Var(&opts.StackSize, "stack-size", 0, "stack region size")
	cmd.Flags().Uint64Var(&opts.HeapBase, "heap-base", 0, "heap region base address")
	cmd.Flags().Uint64Var(&opts.HeapSize, "heap-size", 0, "heap region size")
	cmd.Flags().BoolVar(&opts.UseFunInputRegs, "use-fun-input-regs", false, "chaos summaries take only input registers")
	cmd.Flags().IntVar(&opts.Models, "models", 1, "number of countermodels to enumerate")
}

func verifyExec() error {
	yices2.Init()
	defer yices2.Exit()

	ck, err := checker.New(&opts, false)
	if err != nil {
		return err
	}
	program, err := ir.LoadProgram(ProgramFile)
	if err != nil {
		return err
	}
	result, err := ck.VerifySub(program)
	if err != nil {
		return err
	}
	fmt.Println(result)
	return nil
}
