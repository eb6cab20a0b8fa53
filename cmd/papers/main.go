package main

import (
	"papers/cmd/cmd"
	"papers/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
