package main

import (
	"fmt"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
	"github.com/spf13/cobra"

	"wpcheck/internal/checker"
	"wpcheck/internal/ir"
)

var (
	OrigFile string
	ModFile  string
)

var compareCommand = &cobra.Command{
	Use:   "compare",
	Short: "compare a subroutine across two binaries",
	Long:  ``,
	Run: func(*cobra.Command, []string) {
		if err := compareExec(); err != nil {
			fmt.Printf("service err: %v\n", err)
		}
	},
}

func init() {
	addCommonFlags(compareCommand)
	compareCommand.Flags().StringVar(&OrigFile, "orig", "", "original binary CFG dump (json)")
	compareCommand.Flags().StringVar(&ModFile, "mod", "", "modified binary CFG dump (json)")
	compareCommand.Flags().StringSliceVar(&opts.ComparePreRegs, "compare-pre-reg-values", nil, "registers assumed equal at entry")
	compareCommand.Flags().StringSliceVar(&opts.ComparePostRegs, "compare-post-reg-values", nil, "registers required equal at exit")
	compareCommand.Flags().BoolVar(&opts.CompareFuncCalls, "compare-func-calls", false, "require the call symbol set to be preserved")
	compareCommand.Flags().StringSliceVar(&opts.PointerRegs, "pointer-reg-list", nil, "registers hypothesized to hold equal valid pointers")
	compareCommand.Flags().BoolVar(&opts.CompareSPBounds, "sp-bounds", false, "hypothesize stack pointers stay in the stack region")
	compareCommand.Flags().BoolVar(&opts.CompareMemEq, "mem-eq", false, "hypothesize byte-exact memory equality at entry")
	compareCommand.Flags().Int64Var(&opts.MemOffset, "mem-offset", 0, "address offset of the modified binary")
}

func compareExec() error {
	yices2.Init()
	defer yices2.Exit()

	ck, err := checker.New(&opts, true)
	if err != nil {
		return err
	}
	origProgram, err := ir.LoadProgram(OrigFile)
	if err != nil {
		return err
	}
	modProgram, err := ir.LoadProgram(ModFile)
	if err != nil {
		return err
	}
	result, err := ck.CompareSubs(origProgram, modProgram)
	if err != nil {
		return err
	}
	fmt.Println(result)
	return nil
}
