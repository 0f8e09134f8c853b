package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"deal-assistant/internal/common/aws"
	"deal-assistant/internal/common/config"
	"deal-assistant/internal/common/database"
	"deal-assistant/internal/common/logger"
	"deal-assistant/internal/common/observability"
	"deal-assistant/internal/dealchat"
	"deal-assistant/internal/events"
	"deal-assistant/internal/genai"
	"deal-assistant/internal/store"
)

// app holds the shared dependencies of serve and worker.
type app struct {
	db    *database.PostgresClient
	store *store.Postgres
	redis *database.RedisClient
	obs   *observability.Observability
	svc   *dealchat.Service
}

func connectPostgres(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (*database.PostgresClient, error) {
	var db *database.PostgresClient
	err := retryWithBackoff(ctx, func() error {
		client, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx); err != nil {
			client.Close()
			return err
		}
		db = client
		return nil
	}, 5, time.Second, zapLog, "PostgreSQL connection")
	return db, err
}

func newApp(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, log logger.Logger) (*app, error) {
	db, err := connectPostgres(ctx, cfg, zapLog)
	if err != nil {
		return nil, err
	}
	log.Info("Connected to PostgreSQL", map[string]interface{}{"host": cfg.Database.Postgres.Host})

	a := &app{
		db:    db,
		store: store.NewPostgres(db, log, 0),
	}

	if rdb := database.NewRedis(cfg.Database.Redis); rdb != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn("Redis unavailable, reply cache disabled", map[string]interface{}{"error": err.Error()})
			rdb.Close()
		} else {
			a.redis = rdb
		}
	}

	a.obs, err = observability.New(cfg.App.Name)
	if err != nil {
		log.Warn("OpenTelemetry meter unavailable", map[string]interface{}{"error": err.Error()})
		a.obs = observability.NewNoop()
	}

	kw, err := loadKeywords(cfg.Dialog)
	if err != nil {
		a.close()
		return nil, err
	}

	publisher, err := newPublisher(ctx, cfg, log)
	if err != nil {
		a.close()
		return nil, err
	}

	engine, err := dealchat.NewEngine(dealchat.Options{
		Store:          a.store,
		Keywords:       kw,
		Publisher:      publisher,
		Logger:         log,
		Observability:  a.obs,
		MaxCandidates:  cfg.Dialog.MaxCandidates,
		MinTitleLength: cfg.Dialog.MinTitleLength,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.svc = dealchat.NewService(engine, a.newGenerator(cfg, log), log)
	return a, nil
}

func loadKeywords(cfg config.DialogConfig) (*dealchat.Keywords, error) {
	if cfg.KeywordsFile == "" {
		return dealchat.DefaultKeywords()
	}
	kw, err := dealchat.LoadKeywords(cfg.KeywordsFile)
	if err != nil {
		return nil, fmt.Errorf("load keywords from %s: %w", cfg.KeywordsFile, err)
	}
	return kw, nil
}

func newPublisher(ctx context.Context, cfg *config.Config, log logger.Logger) (dealchat.DealPublisher, error) {
	sns := cfg.Notifications.SNS
	if !sns.Enabled {
		return events.NoopPublisher{}, nil
	}
	client, err := aws.NewSNSClient(ctx, sns.Region)
	if err != nil {
		return nil, fmt.Errorf("create SNS client: %w", err)
	}
	log.Info("Publishing deal events to SNS", map[string]interface{}{"topicArn": sns.TopicARN})
	return events.NewSNSPublisher(client, sns.TopicARN, log), nil
}

func (a *app) newGenerator(cfg *config.Config, log logger.Logger) dealchat.ReplyGenerator {
	if cfg.LLM.APIKey == "" {
		log.Warn("llm.api_key is empty, every reply will be the fallback message", nil)
	}
	client := genai.NewClient(cfg.LLM, log)
	if a.redis == nil || cfg.LLM.CacheTTL <= 0 {
		return client
	}
	return genai.NewCachedGenerator(client, a.redis, client.Model(), time.Duration(cfg.LLM.CacheTTL)*time.Second, log)
}

func (a *app) close() {
	if a.obs != nil {
		a.obs.Shutdown()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
