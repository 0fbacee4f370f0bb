package main

import (
	"fmt"
	"os"

	"github.com/claimstore/agent/internal/cmd"
	"github.com/claimstore/agent/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.IsFatal(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
