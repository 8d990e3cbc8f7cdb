package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"visionlink/audit"
	"visionlink/config"
	"visionlink/engine"
	"visionlink/events"
	"visionlink/nodeclient"
	"visionlink/nodestate"
	"visionlink/rpc"
	"visionlink/store"
	"visionlink/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "visionlink.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("visionlink", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Database
	gateway, err := rpc.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer gateway.Close()
	log.Printf("visionlink: database open (%s:%d/%s)", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	st := store.New(gateway)

	// Redis
	var redisStore *nodestate.RedisStore
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("visionlink: redis not available (%v), running without cache", err)
	} else {
		log.Printf("visionlink: redis connected (%s)", cfg.Redis.Address)
		redisStore = nodestate.NewRedisStore(redisClient)
	}
	cancel()
	defer redisClient.Close()

	nodeStateMgr := nodestate.NewManager(st, redisStore)

	// Audit sink
	auditSink, err := audit.New(cfg.Audit.Dir)
	if err != nil {
		log.Fatalf("open audit sink: %v", err)
	}
	defer auditSink.Close()
	log.Printf("visionlink: audit log open (%s)", auditSink.Path())

	// Event outbox and publisher
	outbox, err := events.OpenOutbox(cfg.Events.OutboxPath)
	if err != nil {
		log.Fatalf("open event outbox: %v", err)
	}
	defer outbox.Close()

	publisher, err := events.NewPublisher(&cfg.Events)
	if err != nil {
		log.Printf("visionlink: event publisher unavailable (%v), events stay queued", err)
	} else {
		if cfg.Events.Backend != "none" {
			log.Printf("visionlink: event publisher connected (%s)", cfg.Events.Backend)
		}
		defer publisher.Close()

		drainer := events.NewDrainer(outbox, publisher, cfg.Events.DrainInterval.Std())
		drainer.Start()
		defer drainer.Stop()
	}

	// Node client
	nodeClient := nodeclient.New(cfg.Node.Port, cfg.Node.Timeout.Std())

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		Gateway:    gateway,
		Store:      st,
		NodeState:  nodeStateMgr,
		Audit:      auditSink,
		Outbox:     outbox,
		NodeClient: nodeClient,
	})
	eng.Start()
	defer eng.Stop()

	// Web server
	handler := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("visionlink: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("visionlink: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("visionlink: shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("visionlink: stopped")
}
