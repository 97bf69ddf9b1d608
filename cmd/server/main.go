package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pokemart/config"
	"pokemart/internal/api"
	"pokemart/internal/broker"
	"pokemart/internal/chain"
	"pokemart/internal/pokeapi"
	"pokemart/internal/redisclient"
	"pokemart/internal/service"
	"pokemart/internal/store"
	"pokemart/internal/util"
	"pokemart/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting pokemart service")

	tp, err := util.InitTracer("pokemart", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	verifier, err := chain.Dial(cfg.Chain.RPCURL, cfg.Business.AmountToleranceBP, cfg.Chain.MinConfirmations)
	if err != nil {
		// The verifier itself fails closed (or soft-passes when
		// configured); an unreachable RPC at boot must not keep the
		// catalog and pokedex down.
		log.Printf("Chain RPC unavailable at startup: %v", err)
		verifier = chain.NewVerifier(nil, cfg.Business.AmountToleranceBP, cfg.Chain.MinConfirmations)
	}
	log.Printf("Chain verifier initialized: rpc=%s", cfg.Chain.RPCURL)

	speciesClient := pokeapi.NewClient(redisClient)

	catalogService := service.NewCatalogService(db)
	trainerService := service.NewTrainerService(db)
	orderService := service.NewOrderService(
		db,
		verifier,
		eventPublisher,
		cfg.Chain.PaymentRecipient,
		time.Duration(cfg.Business.ConfirmWindowSeconds)*time.Second,
		cfg.Chain.FailOpen,
	)
	catchService := service.NewCatchService(
		db,
		speciesClient,
		eventPublisher,
		redisClient,
		time.Duration(cfg.Business.CatchCooldownSeconds)*time.Second,
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	notifyConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	notifyWorker := worker.NewNotificationWorker(notifyConsumer, db)
	go func() {
		if err := notifyWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, catalogService, catchService, trainerService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	notifyWorker.Stop()

	log.Println("Server exited")
}
