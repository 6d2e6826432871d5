package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgellow/resumescan/internal/log"
)

var BuildVersion = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// execute runs one command line. The session's store is closed and metrics
// are flushed whether or not the command succeeds.
func execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	log.SetOutput(errOut)
	root, c := newRootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if cerr := c.close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
