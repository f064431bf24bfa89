package main

import (
	"cloutgraph/internal/server"
	"cloutgraph/internal/util"
	"cloutgraph/pkg/logger"
	"cloutgraph/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
