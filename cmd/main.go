package main

import (
	"os"

	"ai-quiz-tutor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
