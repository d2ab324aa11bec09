package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/newsletterlab/pulse/internal/app"
	"github.com/newsletterlab/pulse/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file; environment variables are used when empty")
	flag.Parse()

	// Load configuration
	var cfg config.Config
	if *configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(*configPath)
		if err != nil {
			log.Fatalf("failed to load config file: %v", err)
		}
	} else {
		cfg = config.MustLoad()
	}

	// Create root context
	ctx := context.Background()

	// Initialize application
	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	// Run application (blocks until shutdown)
	if err := application.Run(ctx); err != nil {
		log.Printf("application error: %v", err)
		os.Exit(1)
	}
}
