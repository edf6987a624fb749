package main

import (
	"os"

	"github.com/Velvet-Capital/SwarmDeFAI/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
