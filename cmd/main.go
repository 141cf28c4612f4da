package main

import (
	"log/slog"
	"os"

	"lol-trivia-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		slog.Error("lol-trivia exited", "err", err)
		os.Exit(1)
	}
}
