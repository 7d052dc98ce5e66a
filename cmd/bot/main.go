package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"flamekeeper/bot/internal/app"
	"flamekeeper/bot/internal/bridge"
	"flamekeeper/bot/internal/chain/celorpc"
	"flamekeeper/bot/internal/chat"
	"flamekeeper/bot/internal/command"
	"flamekeeper/bot/internal/config"
	"flamekeeper/bot/internal/discord"
	"flamekeeper/bot/internal/guardians"
	"flamekeeper/bot/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	if err := sync.ValidateStructure(sync.Structure, sync.Roles); err != nil {
		log.Fatalf("structure validation failed: %v", err)
	}

	var store guardians.Store
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := guardians.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()
		if err := guardians.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		log.Printf("Using PostgreSQL for guardian applications")
		store = guardians.NewPostgresStore(db)
	} else {
		log.Printf("Using in-memory guardian application store")
		store = guardians.NewMemoryStore()
	}

	var dedup bridge.Deduper
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisDedup, err := bridge.NewRedisDeduper(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisDedup.Close()
		log.Printf("Using Redis for donation deduplication")
		dedup = redisDedup
	} else {
		log.Printf("Using in-memory donation deduplication")
		dedup = bridge.NewMemoryDeduper()
	}

	chainClient := celorpc.New(cfg.CeloRPC, cfg.DonationContract, cfg.RegistryContract, cfg.HealthIDContract)
	restClient := discord.NewClient(cfg.DiscordToken, cfg.GuildID)
	donationBridge := bridge.New(chainClient, restClient, dedup)

	service := app.New(cfg, restClient, restClient, store)
	httpServer := app.NewHTTPServer(service)

	router := command.NewRouter(cfg.CommandPrefix, restClient)
	router.Register("impact", command.Impact(donationBridge, restClient))
	router.Register("verify", command.Verify(chainClient, restClient))
	router.Register("linkwallet", command.LinkWallet(restClient))
	router.Register("assignrole", command.AssignRole(restClient))
	router.Register("syncstructure", command.SyncStructure(service, restClient))

	gatewayCtx, cancelGateway := context.WithCancel(ctx)
	defer cancelGateway()
	gateway := discord.NewGateway(cfg.DiscordToken, func(msg chat.Message) {
		router.Dispatch(gatewayCtx, msg)
	})
	go func() {
		if err := gateway.Run(gatewayCtx); err != nil && gatewayCtx.Err() == nil {
			log.Printf("gateway stopped: %v", err)
		}
	}()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("FlameKeeper listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	cancelGateway()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
