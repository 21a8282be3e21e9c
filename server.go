package main

import (
	"log"

	"nscurve/app"
	"nscurve/internal/config"
	"nscurve/ui"
)

// runServer starts the HTTP API and blocks until it exits.
func runServer(cfg *config.Config, service *app.FitService) {
	server := ui.NewServer(cfg, service)
	log.Printf("Starting curve-fit server on port %s", cfg.Server.Port)
	log.Fatal(server.Start())
}
