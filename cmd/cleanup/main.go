package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/irisdrone/pipewatch/config"
	"github.com/irisdrone/pipewatch/database"
)

func main() {
	keepRegistry := flag.Bool("keep-registry", false, "leave the defect registry in place")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// Connect to database
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	fmt.Println("Start cleanup...")

	// Delete readings, captures and snapshot history
	if err := database.NewReadingStore(database.DB).Clear(ctx); err != nil {
		log.Fatalf("Failed to delete sensor data: %v", err)
	}
	fmt.Println("✅ Deleted control-system readings, drone captures and snapshots")

	if *keepRegistry {
		fmt.Println("ℹ️  Keeping defect registry")
	} else {
		if err := database.NewDefectStore(database.DB).Clear(ctx); err != nil {
			log.Fatalf("Failed to delete defect registry: %v", err)
		}
		fmt.Println("✅ Deleted defect registry")
	}

	fmt.Println("Cleanup complete.")
}
