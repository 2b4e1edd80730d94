package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wpcheck/internal/ir"
)

var liftFile string

var liftCommand = &cobra.Command{
	Use:   "lift",
	Short: "print the lifted CFG dump in canonical text form",
	Long:  ``,
	Run: func(*cobra.Command, []string) {
		if err := liftExec(); err != nil {
			fmt.Printf("service err: %v\n", err)
		}
	},
}

func init() {
	liftCommand.Flags().StringVar(&liftFile, "file", "", "lifted CFG dump (json)")
	liftCommand.Flags().StringVar(&opts.Func, "func", "", "print only this subroutine")
}

func liftExec() error {
	program, err := ir.LoadProgram(liftFile)
	if err != nil {
		return err
	}
	subs := program.Subs
	if opts.Func != "" {
		sub, err := program.Sub(opts.Func)
		if err != nil {
			return err
		}
		subs = []*ir.Sub{sub}
	}
	for _, sub := range subs {
		fmt.Printf("sub %s @ 0x%x (entry %s)\n", sub.Name, sub.Addr, sub.Entry)
		for _, b := range sub.Blocks {
			fmt.Printf("  %s:\n", b.ID)
			for _, s := range b.Stmts {
				fmt.Printf("    %s: %s\n", s.TID(), ir.StmtString(s))
			}
		}
	}
	return nil
}
