package main

import (
	"errors"
	"fmt"
	"os"

	virtualenvtools "github.com/psolyca/virtualenv-tools/cmd/virtualenv-tools"
	"github.com/psolyca/virtualenv-tools/pkg/style"
)

func main() {
	rootCmd := virtualenvtools.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		// Contract messages have already been printed on stdout; only
		// unreported failures get an error line.
		if !errors.Is(err, virtualenvtools.ErrReported) {
			msg := fmt.Sprintf("Error: %v", err)
			fmt.Fprintln(os.Stderr, style.Render(style.Error, msg, os.Stderr))
		}
		os.Exit(1)
	}
}
