package main

import (
	"fmt"

	"github.com/JohnDoe117/mjit/internal/jitcode"
	"github.com/spf13/cobra"
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <program>",
		Short: "Assemble a demo guest program into jitcode and print its disassembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := lookupProgram(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), jitcode.Disassemble(p.build()))
			return nil
		},
	}
	return cmd
}
