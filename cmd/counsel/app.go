package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/zoobzio/counsel"
	"github.com/zoobzio/counsel/internal/config"
	"go.uber.org/zap"
)

// app holds the wired orchestrator and everything that must be released with it.
type app struct {
	orchestrator *counsel.Orchestrator
	logger       *zap.Logger
	closers      []func() error
}

// newApp wires the orchestrator from cfg. Postgres and NATS are optional:
// without DATABASE_URL retrieval is a placeholder and there is no history;
// without NATS_URL interactions are not published.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{logger: logger}
	a.closers = append(a.closers, bridgeSignals(logger))

	provider := counsel.NewOpenAIProvider(cfg.OpenAIAPIKey,
		counsel.WithModel(cfg.OpenAIModel),
		counsel.WithBaseURL(cfg.OpenAIBaseURL),
	)
	registry, err := counsel.NewRegistry(counsel.DefaultCapabilities(provider))
	if err != nil {
		a.Close()
		return nil, err
	}

	var retriever counsel.Retriever = counsel.StaticRetriever{}
	var history counsel.HistoryProvider
	var sinks counsel.MultiSink

	if cfg.DatabaseURL != "" {
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		memory, err := counsel.NewSoyMemory(db)
		if err != nil {
			_ = db.Close()
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, memory.Close)
		memory.WithHistoryWindow(cfg.HistoryWindow)

		embedder := counsel.NewOpenAIEmbedder(cfg.OpenAIAPIKey, counsel.WithEmbedderBaseURL(cfg.OpenAIBaseURL))
		soyRetriever, err := counsel.NewSoyRetriever(db, embedder)
		if err != nil {
			a.Close()
			return nil, err
		}

		retriever = soyRetriever
		history = memory
		sinks = append(sinks, memory)
		logger.Info("storage enabled", zap.Int("history_window", cfg.HistoryWindow))
	}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("counsel"), nats.Timeout(5*time.Second))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.closers = append(a.closers, nc.Drain)
		sinks = append(sinks, counsel.NewNATSSink(nc, &counsel.NATSSinkOpts{Subject: cfg.NATSSubject}))
		logger.Info("interaction events enabled", zap.String("subject", cfg.NATSSubject))
	}

	o, err := counsel.New(provider, retriever, registry)
	if err != nil {
		a.Close()
		return nil, err
	}
	o.WithTimeouts(cfg.Timeouts()).WithHistory(history)
	if len(sinks) > 0 {
		o.WithSink(sinks)
	}
	a.orchestrator = o

	logger.Info("orchestrator ready", zap.String("model", provider.Model()))
	return a, nil
}

// Close drains in-flight deliveries, then releases connections in reverse order.
func (a *app) Close() {
	if a.orchestrator != nil {
		_ = a.orchestrator.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("shutdown", zap.Error(err))
		}
	}
	a.closers = nil
}
