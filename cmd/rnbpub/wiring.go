package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leonkenneth/RNB-coeur/internal/config"
	"github.com/leonkenneth/RNB-coeur/internal/export"
	"github.com/leonkenneth/RNB-coeur/internal/portal"
	"github.com/leonkenneth/RNB-coeur/internal/publish"
	"github.com/leonkenneth/RNB-coeur/internal/storage"
	"github.com/leonkenneth/RNB-coeur/internal/tasks"
)

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

func newPipeline(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*publish.Pipeline, error) {
	uploader, err := storage.New(ctx, storage.Config{
		Endpoint:        cfg.Storage.EndpointURL,
		Region:          cfg.Storage.Region,
		Bucket:          cfg.Storage.Bucket,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Directory:       cfg.Storage.Directory,
		PublicBaseURL:   cfg.Storage.PublicBaseURL,
		MaxParts:        cfg.Storage.MaxParts,
		WaitTimeout:     cfg.Storage.WaitTimeout,
	})
	if err != nil {
		return nil, err
	}

	client := portal.NewClient(cfg.Portal.BaseURL, cfg.Portal.APIKey, &http.Client{Timeout: 5 * time.Minute})

	return publish.NewPipeline(
		export.NewExporter(pool, cfg.Database.StatementTimeout),
		uploader,
		portal.NewClientPublisher(cfg.Portal.DatasetID, client),
		cfg.Publish.WorkDir,
	), nil
}

func openQueue(cfg config.QueueConfig) (tasks.Queue, error) {
	switch strings.ToLower(cfg.Backend) {
	case "redis":
		return tasks.NewRedisQueue(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Name, cfg.PollTimeout), nil
	case "amqp":
		return tasks.NewAMQPQueue(cfg.AMQPURL, cfg.Name, cfg.PollTimeout)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}
