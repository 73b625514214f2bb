package main

import (
	"fmt"

	"github.com/JohnDoe117/mjit/internal/guestdemo"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var n, tag int64
	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Run a guest program under the meta-interpreter without ever compiling a loop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := lookupProgram(args[0])
			if err != nil {
				return err
			}
			// A threshold past any realistic loop trip count keeps this
			// subcommand purely interpreted, mirroring bfcc's own "run"
			// which never touches the codegen backends at all.
			s := guestdemo.NewSession(p.spec)
			if err := s.Driver.SetParam("threshold", 1<<30); err != nil {
				return err
			}
			result, err := s.RunToReturn(p.build(), p.initial(n, tag))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatResult(result))
			return nil
		},
	}
	cmd.Flags().Int64Var(&n, "n", 10, "loop bound (register 0)")
	cmd.Flags().Int64Var(&tag, "tag", 7, "promoted tag value (promoteloop only, register 4)")
	return cmd
}
