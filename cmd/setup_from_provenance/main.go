package main

import (
	"fmt"
	"os"

	"github.com/mapclient-tools/provenance-setup/internal/cli"
	"github.com/mapclient-tools/provenance-setup/internal/report"
)

func main() {
	cmd := cli.NewRootCommand(&cli.Options{})
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(int(report.CodeOf(err)))
	}
}
