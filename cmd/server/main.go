package main

import (
	"github.com/gryn010/inception/internal/server"
	"github.com/gryn010/inception/internal/util"
	"github.com/gryn010/inception/pkg/logger"
	"github.com/gryn010/inception/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		Prefix: "server",
		JSON:   util.GetEnvBool("LOG_JSON", false),
	})
	logger.Init(consoleLogger)

	server.Init()
}
