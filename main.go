package main

import (
	"os"

	"github.com/seo-optimizer/siteanalyzer/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
