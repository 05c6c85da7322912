package main

import (
	"context"
	"log"
	"os"
	"time"

	"docuchat/internal/api"
	"docuchat/internal/auth"
	"docuchat/internal/config"
	"docuchat/internal/redis"
	"docuchat/internal/service/conversation"
	"docuchat/internal/storage"
	"docuchat/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("DOCUCHAT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := storage.Migrate(db, cfg.Database.Driver); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// Redis is optional; without it token and extraction caching degrade to
	// database lookups.
	rdb, err := redis.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("redis unavailable, running without cache: %v", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	svc := conversation.NewService(db)
	authService := auth.NewService(db, rdb, 24*time.Hour)

	manager := worker.NewManager(svc, rdb)
	dispatcher := worker.NewDispatcher(
		cfg.Worker.MinWorkers,
		cfg.Worker.MaxWorkers,
		cfg.Worker.QueueSize,
		manager,
		cfg.Worker.IdleTimeout(),
	)

	cleanCtx, cleanCancel := context.WithCancel(context.Background())
	defer cleanCancel()
	svc.StartUploadCleaner(cleanCtx, conversation.DefaultUploadCleanupInterval, manager.InvalidateUpload)

	handlers := api.NewHandler(svc, authService, dispatcher, rdb,
		cfg.Uploads.BaseDir, cfg.Uploads.TTL(), cfg.Uploads.MaxSizeMB)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	if err := router.Run(cfg.BasicConfig.ServerAddress); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
