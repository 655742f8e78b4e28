package main

import (
	"fmt"
	"os"

	"rcmos/commons/config"
	"rcmos/commons/server"
	internalConfig "rcmos/internal/config"

	"go.uber.org/fx"
)

func main() {
	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load settings: %v\n", err)
		os.Exit(1)
	}

	fx.New(
		fx.WithLogger(config.ProvideFxLogger),
		fx.Supply(settings),
		fx.Provide(
			config.ProvideLogger,
			config.ProvideRouteDependencies,
			config.ProvideRouter,
			server.NewHTTPServer,
		),
		internalConfig.StoreModule(settings),
		internalConfig.InfraModule(settings),
		internalConfig.WorkerModule(),
		fx.Invoke(func(*server.HTTPServer) {}),
	).Run()
}
