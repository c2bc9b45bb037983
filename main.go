package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"markme-server-go/config"
	"markme-server-go/db"
	"markme-server-go/handlers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var opts []db.Option
	if cfg.RedisAddr != "" {
		redisClient, err := db.InitializeRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Printf("Warning: %v. Continuing without the Redis mirror.", err)
		} else {
			defer redisClient.Close()
			opts = append(opts, db.WithMirror(db.NewRedisMirror(redisClient)))
		}
	}

	store, err := db.NewAttendanceStore(cfg.DataDir, opts...)
	if err != nil {
		log.Fatalf("Failed to open attendance store: %v", err)
	}
	defer store.Close()

	if cfg.Seed {
		seeded, err := store.Seed()
		if err != nil {
			log.Fatalf("Failed to seed default classes: %v", err)
		}
		if !seeded {
			log.Printf("Found existing class data in %s. Skipping defaults.", cfg.DataDir)
		}
	}

	if problems := store.CheckIndices(); len(problems) > 0 {
		log.Printf("Warning: attendance indices disagree on %d records; POST /api/admin/indices/rebuild to repair", len(problems))
	}

	apiHandler := handlers.NewAPIHandler(store)

	router := gin.Default()
	apiHandler.RegisterRoutes(router.Group("/api"))

	log.Printf("Starting server on port %s (data in %s)", cfg.Port, cfg.DataDir)
	if err := router.Run(cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
