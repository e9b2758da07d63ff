package main

import (
	"fmt"
	"os"

	"github.com/kerbonaut11/muna/cmd/muna/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
