package main

import (
	"context"
	"os"

	"moneyguard/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	app := cli.NewApp()
	err := app.RootCmd(version).ExecuteContext(context.Background())
	if cerr := app.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		os.Exit(1)
	}
}
