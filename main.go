package main

import (
	"errors"
	"os"

	"github.com/sszokoly/avaya/commands"
	"github.com/sszokoly/avaya/internal/data/source"
)

func main() {
	if err := commands.Execute(); err != nil {
		if errors.Is(err, source.ErrNoFiles) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
