// Command forthline runs the forthline interpreter.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/jcorbin/forthline/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
