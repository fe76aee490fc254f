package main

import "github.com/thatsimonsguy/array-controller/cmd/array-debug/cmd"

func main() {
	cmd.Execute()
}
