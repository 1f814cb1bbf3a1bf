// Command swell plans work items into waves, resolves file conflicts up
// front, dispatches each wave to parallel workers, and gates every wave on
// verification before the next begins.
package main

import (
	"fmt"
	"os"

	"github.com/tidelab/swell/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
