// ABOUTME: CLI entrypoint for playgraph: serve a live track graph, inspect a snapshot, replay a recorded session.
// ABOUTME: Commands are built with cobra; main only maps the command's outcome to an exit code.
package main

import (
	"os"
)

var version = "dev"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
