package main

import (
	"awkref/internal/cliapp"
	"os"
)

func main() {
	os.Exit(cliapp.Run(os.Args[1:]))
}
