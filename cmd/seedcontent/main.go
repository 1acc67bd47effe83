package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/hopeana/dispatcher/internal/config"
	"github.com/hopeana/dispatcher/internal/metrics"
	"github.com/hopeana/dispatcher/internal/models"
	"github.com/hopeana/dispatcher/internal/repository/cache"
	"github.com/hopeana/dispatcher/internal/repository/sqlite"
	"github.com/hopeana/dispatcher/internal/seed"
	"github.com/hopeana/dispatcher/internal/services/content"
	"github.com/hopeana/dispatcher/pkg/logger"
)

func main() {
	file := flag.String("file", "data/quotes.yaml", "seed file (.yaml, .yml or .json)")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	cfg, err := config.NewStorageConfig()
	if err != nil {
		log.Panicf("failed to load configuration: %v", err)
	}

	l, err := logger.NewLogger("", "seedcontent", cfg.Logs.Level)
	if err != nil {
		log.Panicf("failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	entries, err := seed.Load(*file)
	if err != nil {
		l.Fatal().Err(err).Str("file", *file).Msg("failed to read seed file")
	}

	db, err := sqlite.Open(ctx, cfg.DB.Driver, cfg.DB.Source)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to open database")
	}
	defer func() { _ = db.Close() }()
	if err := sqlite.Migrate(db, cfg.DB.Dialect); err != nil {
		l.Fatal().Err(err).Msg("failed to migrate database")
	}

	repo := sqlite.NewContentRepository(db, l, metrics.NewMetrics("seedcontent"))

	var seeder *seed.Seeder
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer func() { _ = rdb.Close() }()
		seeder = seed.NewSeeder(repo, cache.NewRedisClient[[]models.ContentItem](rdb, l, cfg.Redis.ContentTTL), l)
	} else {
		seeder = seed.NewSeeder(repo, nil, l)
	}

	res, err := seeder.Run(ctx, entries, content.PoolCacheKey)
	if err != nil {
		l.Fatal().Err(err).Msg("seeding failed")
	}
	l.Info().Int("created", res.Created).Int("skipped", res.Skipped).Str("file", *file).Msg("done")
}
