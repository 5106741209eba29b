package main

import (
	"os"

	"order-desk/internal/cli"
	"order-desk/internal/common/logger"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		logger.New("bootstrap").Error("fatal", err, nil)
		os.Exit(1)
	}
}
