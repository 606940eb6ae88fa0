package main

import (
	"context"
	"os"

	"github.com/doeshing/aish/internal/infrastructure/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], cli.Options{}))
}
