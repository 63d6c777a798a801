package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parley/chat-app/internal/auth"
	"github.com/parley/chat-app/internal/channel"
	"github.com/parley/chat-app/internal/config"
	"github.com/parley/chat-app/internal/presence"
	"github.com/parley/chat-app/internal/store"
	"github.com/parley/chat-app/internal/ws"
)

func main() {
	config.Load()

	serverConfig := ws.DefaultServerConfig()
	serverConfig.ListenAddr = config.String("LISTEN_ADDR", serverConfig.ListenAddr)
	serverConfig.MaxConnections = config.Int("MAX_CONNECTIONS", serverConfig.MaxConnections)
	serverConfig.WriteTimeout = config.Duration("WRITE_TIMEOUT", serverConfig.WriteTimeout)

	jwtSecret := config.MustString("JWT_SECRET")

	// --- NATS ---
	natsConfig := channel.DefaultConfig()
	natsConfig.URL = config.String("NATS_URL", natsConfig.URL)
	natsConfig.Name = "parley-gateway"
	natsClient, err := channel.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}
	defer natsClient.Close()

	// --- Postgres (room membership checks) ---
	var membership ws.Membership
	databaseURL := config.String("DATABASE_URL", "")
	if databaseURL == "" {
		log.Printf("DATABASE_URL not set, membership checks disabled")
	} else {
		db, err := store.Open(databaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()
		membership = store.New(db)
	}

	// --- Redis (presence) ---
	redisAddr := config.String("REDIS_ADDR", "localhost:6379")
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	var pres *presence.Store
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Printf("redis unavailable at %s, presence disabled: %v", redisAddr, err)
	} else {
		pres = presence.NewStore(redisClient)
	}
	cancel()

	tokens := auth.NewTokenIssuer(jwtSecret, 0)
	server := ws.NewServer(serverConfig, tokens, natsClient, membership, pres)

	log.Printf("Parley gateway starting")
	log.Printf("  listen_addr:     %s", serverConfig.ListenAddr)
	log.Printf("  max_connections: %d", serverConfig.MaxConnections)
	log.Printf("  nats_url:        %s", natsConfig.URL)
	log.Printf("  redis_addr:      %s", redisAddr)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("gateway error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	if err := server.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
