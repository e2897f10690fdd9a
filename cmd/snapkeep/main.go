// Command snapkeep autosaves a project file on a fixed cadence and keeps the
// crash recovery records that let an interrupted session be restored.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/snapkeep/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
