package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "mjit",
		Short: "Drive the rtgc guest demo through the meta-tracing runtime",
		Long: `mjit runs the bundled guestdemo programs through the meta-tracing
JIT: plain interpretation (run), trace-and-compile (trace), or a bytecode
disassembly of the program itself (dump).`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newTraceCmd(), newDumpCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
