// Package main is the entry point for the oauth2login CLI.
package main

import (
	"os"

	"github.com/b4fun/oauth2login/cmd/oauth2login/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
