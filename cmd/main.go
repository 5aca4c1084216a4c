package main

import (
	"os"

	"github.com/MenopausaC/quiz-funnel-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
