// The main package for the sitediscovery executable.
package main

import (
	"github.com/JakeFAU/sitediscovery/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
