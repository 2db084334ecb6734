package main

import (
	"os"

	"github.com/edirooss/streambed-server/pkg/fmtt"
)

func main() {
	opts := &rootOptions{}
	if err := newRootCommand(opts).Execute(); err != nil {
		if opts.Verbose {
			fmtt.PrintErrChainDebug(os.Stderr, err)
		} else {
			fmtt.PrintErrChain(os.Stderr, err)
		}
		os.Exit(1)
	}
}
