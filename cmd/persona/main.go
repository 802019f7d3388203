// Package main provides the persona command, the entry point the host
// plugin calls for lifecycle hooks and persona tool requests.
//
// Hooks read the host event from stdin and never fail the host: errors are
// logged and the command exits 0. Tool commands print Markdown for the
// model by default, or JSON with --format json.
package main

import (
	"context"
	"fmt"
	"os"
)

// version is set at build time.
var version = "0.1.0"

func main() {
	env := defaultEnvironment()
	cmd := newRootCmd(env)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(env.stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
