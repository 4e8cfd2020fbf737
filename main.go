package main

import (
	"context"
	"os"

	"github.com/weiwangfds/sharedrop/cmd"
)

func main() {
	if err := cmd.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
