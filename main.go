package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"reviewbot/aggregate"
	"reviewbot/analytics"
	"reviewbot/api"
	"reviewbot/artifacts"
	"reviewbot/catalog"
	"reviewbot/common"
	"reviewbot/config"
	"reviewbot/generation"
	"reviewbot/kafka"
	"reviewbot/monitor"
	"reviewbot/policy"
	"reviewbot/registry"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := common.NewS3(ctx, common.S3Config{
		Region:       cfg.S3Region,
		Profile:      cfg.S3Profile,
		UsePathStyle: cfg.S3UsePathStyle,
	})
	if err != nil {
		log.Fatalf("❌ Failed to initialize object store: %v", err)
	}
	sourceBucket := common.NewBucket(store, cfg.SourceBucket)
	productsBucket := common.NewBucket(store, cfg.ProductsBucket)

	db, err := analytics.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("❌ Failed to connect to analytical store: %v", err)
	}

	gen, err := generation.NewClient(generation.Config{
		APIKey:    cfg.CohereAPIKey,
		Model:     cfg.GenerationModel,
		MaxTokens: cfg.GenerationMaxTokens,
	})
	if err != nil {
		log.Fatalf("❌ Failed to initialize generation client: %v", err)
	}

	var reg registry.Registry
	if cfg.RedisAddr != "" {
		redisReg, err := registry.NewRedis(registry.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}, nil)
		if err != nil {
			log.Fatalf("❌ Failed to connect to Redis registry: %v", err)
		}
		log.Printf("✅ Using Redis pending registry at %s", cfg.RedisAddr)
		reg = redisReg
	} else {
		log.Println("Using in-memory pending registry (sweeper fallback covers restarts)")
		reg = registry.NewMemory(nil)
	}

	index := catalog.New(sourceBucket)
	prober := artifacts.NewProber(sourceBucket)
	evaluator := &policy.Evaluator{
		Index:  index,
		Prober: prober,
		Policy: policy.Policy{
			WaitWindow:        cfg.WaitWindow,
			MinCompletionRate: cfg.MinCompletionRate,
		},
	}

	guard := analytics.NewGuard(db, cfg.StalenessThreshold)
	aggregator := aggregate.New(
		artifacts.NewReader(sourceBucket),
		productsBucket,
		db,
		guard,
		gen,
		aggregate.Options{
			MinReviewsPerProduct: cfg.MinReviewsPerProduct,
			MaxPromptChars:       cfg.MaxPromptChars,
		},
	)

	mon := monitor.New(reg, index, evaluator, aggregator, monitor.Options{
		SourceBucket:  cfg.SourceBucket,
		WaitWindow:    cfg.WaitWindow,
		SweepInterval: cfg.SweepInterval,
	})

	go mon.RunSweeper(ctx)

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
			Sink:    mon,
		})
		if err != nil {
			log.Fatalf("❌ Failed to create Kafka consumer: %v", err)
		}
		if err := consumer.Start(ctx); err != nil {
			log.Fatalf("❌ Failed to start Kafka consumer: %v", err)
		}
		defer consumer.Close()
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewRouter(mon, &cfg),
	}

	go func() {
		log.Printf("Starting API server on %s", addr)
		log.Println("API endpoints available:")
		log.Println("  GET  /health")
		log.Println("  POST /process")
		log.Println("  GET  /pending")
		log.Println("  POST /force-process")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if err := db.Close(); err != nil {
		log.Printf("analytical store close: %v", err)
	}
}
