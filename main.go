// The main package for the pricewatch executable.
package main

import (
	"github.com/pricewatch/pricewatch/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
