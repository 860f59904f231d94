package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/irisdrone/pipewatch/config"
	"github.com/irisdrone/pipewatch/database"
	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/irisdrone/pipewatch/services"
)

func main() {
	controlCount := flag.Int("control-system", services.DefaultControlSystemCount, "control-system readings to generate")
	droneCount := flag.Int("drone", services.DefaultDroneCount, "drone captures to generate")
	resetRegistry := flag.Bool("reset-registry", false, "replace the defect registry with the historical entries")
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
	fmt.Println("🌱 Starting seed...")

	created, err := database.NewUserStore(database.DB).EnsureUser(ctx, cfg.AdminUsername, cfg.AdminPassword, cfg.AdminEmail, "admin")
	if err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}
	if created {
		fmt.Printf("✅ Created admin user %s\n", cfg.AdminUsername)
	} else {
		fmt.Printf("ℹ️  Admin user %s already exists\n", cfg.AdminUsername)
	}

	defects := database.NewDefectStore(database.DB)
	existing, err := defects.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load defect registry: %v", err)
	}
	if len(existing) == 0 || *resetRegistry {
		seed := registry.Seed()
		if err := defects.Replace(ctx, seed); err != nil {
			log.Fatalf("Failed to seed defect registry: %v", err)
		}
		fmt.Printf("✅ Seeded %d registry entries\n", len(seed))
	} else {
		fmt.Printf("ℹ️  Registry already holds %d entries, skipping\n", len(existing))
	}

	gen := services.NewSampleGenerator(detection.NewSeededRand(cfg.SimulationSeed), nil)
	cs, ds, err := gen.Regenerate(ctx, database.NewReadingStore(database.DB), *controlCount, *droneCount)
	if err != nil {
		log.Fatalf("Failed to generate sample data: %v", err)
	}
	fmt.Printf("✅ Created %d control-system readings and %d drone captures\n", cs, ds)
	fmt.Println("🎉 Seed complete")
}
