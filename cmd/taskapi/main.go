package main

import (
	"os"

	"task-management-api/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_ = logger.Close()
		os.Exit(1)
	}
	_ = logger.Close()
}
