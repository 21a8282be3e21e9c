package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"nscurve/adapters/ingest"
	"nscurve/app"
	"nscurve/internal/config"
)

func main() {
	inputPath := flag.String("input", "", "bond list CSV or xlsx (omit to fit a synthetic dataset)")
	valueKind := flag.String("value", "auto", "value column: auto, oas, spread, or yield")
	serve := flag.Bool("serve", false, "start the HTTP API instead of a one-shot fit")
	flag.Parse()

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	service := app.NewFitService(appConfig)

	if *serve {
		runServer(appConfig, service)
		return
	}

	out, err := service.Run(context.Background(), app.RunInput{
		InputPath: *inputPath,
		ValueKind: ingest.ValueKind(*valueKind),
	})
	if err != nil {
		log.Fatalf("Fit failed: %v", err)
	}

	fmt.Println(service.SummaryText(out))

	if err := service.Export(out); err != nil {
		log.Printf("Export failed: %v", err)
		os.Exit(1)
	}
}
