// Command api runs the curve-fit HTTP server without the CLI surface.
package main

import (
	"log"

	"github.com/joho/godotenv"

	"nscurve/app"
	"nscurve/internal/config"
	"nscurve/ui"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	server := ui.NewServer(cfg, app.NewFitService(cfg))
	log.Fatal(server.Start())
}
