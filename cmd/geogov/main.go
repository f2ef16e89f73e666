// geogov runs the decision pipeline and evidence tools from the command line.
//
// Usage:
//
//	geogov analyze --feature-id F1 --title ... --description ... [--tag t]
//	geogov batch cases.yaml [--json]
//	geogov export [--feature-id F1] [--from RFC3339] [--to RFC3339] [-o bundle.zip] [--publish]
//	geogov verify [--root hex] [--bundle bundle.zip]
//	geogov policy [rules.yaml]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
