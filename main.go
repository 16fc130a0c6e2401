package main

import (
	"os"
	_ "time/tzdata"

	"github.com/mgenrique/ess-controller/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
