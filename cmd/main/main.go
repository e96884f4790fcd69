package main

import (
	"context"
	"os"

	"pokedex/catalog/cmd/main/app"

	"github.com/charmbracelet/fang"
)

const version = "0.1.0"

func main() {
	root := app.NewRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
