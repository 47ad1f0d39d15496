package main

import (
	"os"

	"github.com/LynnColeArt/colmean/cmd/colmean/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
