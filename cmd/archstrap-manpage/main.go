package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra/doc"

	"github.com/arthur-debert/archstrap/cmd/archstrap"
	"github.com/arthur-debert/archstrap/internal/version"
)

func main() {
	rootCmd := archstrap.NewRootCmd()

	header := &doc.GenManHeader{
		Title:   "ARCHSTRAP",
		Section: "8",
		Source:  "archstrap " + version.Version,
		Manual:  "archstrap manual",
	}

	if err := doc.GenMan(rootCmd, header, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating man page: %v\n", err)
		os.Exit(1)
	}
}
