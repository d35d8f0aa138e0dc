package main

import (
	"os"

	"research-portal/internal/bootstrap"
	"research-portal/internal/shared/config"
	"research-portal/internal/shared/server"
	"research-portal/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		telemetry.Error("api.bootstrap.failed", map[string]any{"err": err.Error()})
		os.Exit(1)
	}

	addr := server.Addr(app.Config.Port)
	telemetry.Info("api.listening", map[string]any{"addr": addr})

	if err := app.Router.Run(addr); err != nil {
		telemetry.Error("api.server.failed", map[string]any{"err": err.Error()})
		os.Exit(1)
	}
}
