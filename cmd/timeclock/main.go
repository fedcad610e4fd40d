package main

import (
	"os"

	"timeclock/internal/commands"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	commands.SetVersion(version, commit)
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
