package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sentinel-hub/classification-app-backend/internal/config"
	"github.com/sentinel-hub/classification-app-backend/internal/eventbus"
	"github.com/sentinel-hub/classification-app-backend/internal/objstore"
	"github.com/sentinel-hub/classification-app-backend/internal/provider"
	"github.com/sentinel-hub/classification-app-backend/services/taskservice"
)

func main() {
	cfg := taskservice.Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		KafkaBrokers: getEnvList("KAFKA_BROKERS", nil),
		TaskBucket:   getEnv("TASK_BUCKET", "sampling-tasks"),
		WorkerBuffer: getEnvInt("WORKER_BUFFER", 4),
		WorkerRetry:  getEnvDuration("WORKER_RETRY", 30*time.Second),
	}

	catalog, err := config.Load(getEnv("SOURCE_CATALOG", "sources.yaml"))
	if err != nil {
		log.Fatalf("Failed to load source catalog: %v", err)
	}

	providers, store := buildProviders()

	var bus *eventbus.EventBus
	if len(cfg.KafkaBrokers) > 0 {
		bus = eventbus.NewEventBus(cfg.KafkaBrokers)
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	service, err := taskservice.NewService(cfg, catalog, providers, bus, store, rnd)
	if err != nil {
		log.Fatalf("Failed to build task service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down sampling service...")
		cancel()
	}()

	service.Start(ctx)
	<-ctx.Done()
	service.Stop()
	log.Println("Sampling service stopped.")
}

func buildProviders() (taskservice.Providers, *objstore.Client) {
	var providers taskservice.Providers

	if base := os.Getenv("TILE_INDEX_URL"); base != "" {
		providers.Index = provider.NewIndexClient(base, nil)
	}
	if base := os.Getenv("FEATURE_SERVICE_URL"); base != "" {
		providers.Features = provider.NewFeatureServiceClient(base)
	}
	if base := os.Getenv("LAYER_SERVICE_URL"); base != "" {
		providers.Layers = provider.NewLayerClient(base)
	}

	httpFetcher := provider.NewRasterClient()

	var store *objstore.Client
	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		var err error
		store, err = objstore.NewClient(objstore.Config{
			Endpoint:        endpoint,
			AccessKeyID:     getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:          getEnv("MINIO_USE_SSL", "false") == "true",
			Region:          os.Getenv("MINIO_REGION"),
		})
		if err != nil {
			log.Printf("Warning: Failed to create object store client: %v", err)
		}
	}

	if store != nil {
		providers.Rasters = &objstore.MultiFetcher{HTTP: httpFetcher, S3: store}
	} else {
		providers.Rasters = httpFetcher
	}
	return providers, store
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		items := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				items = append(items, trimmed)
			}
		}
		if len(items) > 0 {
			return items
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
