package main

import (
	"context"
	"log"
	"time"

	"github.com/dev1d123/CyberDOJO/internal/audit"
	"github.com/dev1d123/CyberDOJO/internal/catalog"
	"github.com/dev1d123/CyberDOJO/internal/config"
	"github.com/dev1d123/CyberDOJO/internal/db"
	"github.com/dev1d123/CyberDOJO/internal/game"
	"github.com/dev1d123/CyberDOJO/internal/httpapi"
	"github.com/dev1d123/CyberDOJO/internal/ledger"
	"github.com/dev1d123/CyberDOJO/internal/models"
	"github.com/dev1d123/CyberDOJO/internal/scanner"
	"github.com/dev1d123/CyberDOJO/internal/store/rabbitmq"
	"github.com/dev1d123/CyberDOJO/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	if err := gdb.AutoMigrate(
		&models.User{},
		&catalog.Scenario{},
		&scanner.DetectionRule{},
		&game.GameSession{},
		&game.ChatMessage{},
		&ledger.CreditTransaction{},
		&audit.SessionAudit{},
	); err != nil {
		log.Fatalf("automigrate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := catalog.Seed(ctx, gdb); err != nil {
		log.Fatalf("seed scenarios: %v", err)
	}
	if err := scanner.Seed(ctx, gdb); err != nil {
		log.Fatalf("seed detection rules: %v", err)
	}
	cancel()

	// Redis is an optional cache; run without it if unreachable.
	cache := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := cache.Ping(pingCtx); err != nil {
		log.Printf("redis unavailable, catalog cache disabled: %v", err)
		cache = nil
	}
	pingCancel()

	// Outcome events are best effort as well.
	var events game.OutcomePublisher
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("rabbitmq unavailable, outcome events disabled: %v", err)
	} else {
		defer pub.Close()
		events = pub
	}

	r := httpapi.NewRouter(gdb, cfg, cache, events)

	log.Printf("server listening addr=%s max_attempts=%d", cfg.HTTPAddr, cfg.MaxAttempts)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
