package main

import (
	"fmt"

	"github.com/JohnDoe117/mjit/internal/guestdemo"
	"github.com/JohnDoe117/mjit/internal/jitdriver"
	"github.com/JohnDoe117/mjit/internal/jitemit"
	"github.com/spf13/cobra"
)

func newTraceCmd() *cobra.Command {
	var n, tag int64
	var threshold int
	var traceLimit int
	var arenaSize int
	var inlining bool
	var enableOpts []string

	cmd := &cobra.Command{
		Use:   "trace <program>",
		Short: "Run a guest program with tracing enabled, compiling hot loops to native code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := lookupProgram(args[0])
			if err != nil {
				return err
			}

			emitter := jitemit.New(arenaSize)
			s := guestdemo.NewSession(p.spec, jitdriver.WithEmitter(emitter))

			for name, value := range map[string]any{
				"threshold":   threshold,
				"trace_limit": traceLimit,
				"inlining":    inlining,
				"enable_opts": enableOpts,
			} {
				if err := s.Driver.SetParam(name, value); err != nil {
					return err
				}
			}

			result, err := s.RunToReturn(p.build(), p.initial(n, tag))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatResult(result))

			compiled := 0
			for _, token := range s.Driver.Tokens() {
				if token.CompiledAt != 0 {
					compiled++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "compiled loops: %d\n", compiled)
			return nil
		},
	}

	cmd.Flags().Int64Var(&n, "n", 10000, "loop bound (register 0)")
	cmd.Flags().Int64Var(&tag, "tag", 7, "promoted tag value (promoteloop only, register 4)")
	cmd.Flags().IntVar(&threshold, "threshold", 10, "backward-branch count before tracing starts")
	cmd.Flags().IntVar(&traceLimit, "trace-limit", 4096, "max ops recorded before a trace is abandoned")
	cmd.Flags().IntVar(&arenaSize, "arena-size", 1<<16, "bytes reserved in the native code arena")
	cmd.Flags().BoolVar(&inlining, "inlining", false, "enable guest call inlining while tracing")
	cmd.Flags().StringSliceVar(&enableOpts, "enable-opts", nil, "optimizer passes to enable beyond the defaults")
	return cmd
}
