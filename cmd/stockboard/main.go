package main

import (
	"os"

	"github.com/wonny/stockboard/cmd/stockboard/commands"
)

// main is the entry point for the stockboard CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/stockboard [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
