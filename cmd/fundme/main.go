package main

import (
	"fmt"
	"os"

	"github.com/fundme-labs/fundme/cmd/fundme/cmd"
)

func main() {
	if err := cmd.NewRootCmd(cmd.DefaultEnv()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
