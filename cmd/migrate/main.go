package main

import (
	"flag"

	"github.com/Varun5711/shortqr/internal/bootstrap"
	"github.com/Varun5711/shortqr/internal/config"
	"github.com/Varun5711/shortqr/internal/database"
	"github.com/Varun5711/shortqr/internal/logger"
)

func main() {
	down := flag.Bool("down", false, "roll back the most recent migration")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.New("migrate").Fatal("Failed to load config: %v", err)
	}

	log := bootstrap.NewLogger("migrate", cfg.Log)
	defer log.Sync()

	m, err := database.NewMigrator(cfg.Database.PrimaryDSN, log)
	if err != nil {
		log.Fatal("%v", err)
	}
	defer m.Close()

	if *down {
		if err := m.Down(); err != nil {
			log.Fatal("%v", err)
		}
		log.Info("Rolled back one migration")
		return
	}

	if err := m.Up(); err != nil {
		log.Fatal("%v", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		log.Warn("Could not read schema version: %v", err)
		return
	}
	log.Info("Schema at version %d (dirty=%t)", version, dirty)
}
