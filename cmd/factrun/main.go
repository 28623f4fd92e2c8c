// Package main provides the entry point for the factrun CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/felixgeelhaar/factrun/example/hello"
	"github.com/felixgeelhaar/factrun/interfaces/cli"
)

func main() {
	app := cli.New()
	app.RegisterAgent("hello", hello.Spec)

	if err := app.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
