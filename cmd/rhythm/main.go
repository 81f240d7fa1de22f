/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package main

import (
	"fmt"
	"os"

	"github.com/dapr/kit/signals"

	"github.com/diagridio/go-rhythm/internal/cli"
)

func main() {
	if err := cli.NewCommand().ExecuteContext(signals.Context()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
