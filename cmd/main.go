package main

import (
	"context"
	"expvar"
	"log"
	"runtime"
	"time"

	"github.com/sketchdash/sketchdash/internal/domain"
	"github.com/sketchdash/sketchdash/internal/infrastructure/configs"
	"github.com/sketchdash/sketchdash/internal/infrastructure/events"
	"github.com/sketchdash/sketchdash/internal/infrastructure/logging"
	"github.com/sketchdash/sketchdash/internal/infrastructure/messaging"
	"github.com/sketchdash/sketchdash/internal/infrastructure/metrics"
	"github.com/sketchdash/sketchdash/internal/infrastructure/prompts"
	"github.com/sketchdash/sketchdash/internal/infrastructure/ratelimiter"
	"github.com/sketchdash/sketchdash/internal/infrastructure/repository"
	"github.com/sketchdash/sketchdash/internal/infrastructure/tracing"
	"github.com/sketchdash/sketchdash/internal/persistence/db"
	persistencerepo "github.com/sketchdash/sketchdash/internal/persistence/repository"
	"github.com/sketchdash/sketchdash/internal/presentation/api"
	"github.com/sketchdash/sketchdash/internal/presentation/handler/health"
	"github.com/sketchdash/sketchdash/internal/presentation/handler/realtime"
	"github.com/sketchdash/sketchdash/internal/presentation/handler/rooms"
	typingHandler "github.com/sketchdash/sketchdash/internal/presentation/handler/typing"
	"github.com/sketchdash/sketchdash/internal/session"
)

const (
	serviceName = "sketchdash-relay"
)

func main() {
	tracerCfg := tracing.NewDefaultConfig(serviceName)

	sh, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sh(ctx)

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Logger,
	})
	logger.Init()

	roomRepository, mongoCleanup, err := buildRoomStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	if mongoCleanup != nil {
		defer mongoCleanup()
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Messaging.Enabled {
		rabbitmq, err := messaging.NewRabbitMQ(cfg.Messaging.URI)
		if err != nil {
			log.Fatal(err)
		}
		defer rabbitmq.Close()

		logger.Info(logging.RabbitMQ, logging.Startup, "RabbitMQ connected", nil)
		publisher = events.NewRoomPublisher(rabbitmq)

		roomConsumer := events.NewRoomConsumer(rabbitmq)
		go roomConsumer.Listen()
	}

	m := metrics.New()
	promptSource := prompts.NewStaticSource(time.Now().UnixNano())

	core := session.NewCore(session.Options{
		RoundCount: cfg.Typing.RoundCount,
		TimeLimit:  cfg.Typing.TimeLimit,
		InputSlack: cfg.Typing.InputSlack,
	}, roomRepository, promptSource, publisher, m, logger)
	go core.Run(ctx)

	roomHandler := rooms.NewHandler(roomRepository, publisher)
	healthHandler := health.NewHandler()
	typingRoomHandler := typingHandler.NewHandler(core)
	realtimeHandler := realtime.NewHandler(core)

	rl := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})
	app := api.NewApplication(*cfg, roomHandler, typingRoomHandler, realtimeHandler, healthHandler, logger, rl)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Fatal(logging.General, logging.Shutdown, "server failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}

func buildRoomStore(ctx context.Context, cfg *configs.Config) (domain.RoomRepository, func(), error) {
	if cfg.Store.Backend != "mongo" {
		return repository.NewRoomRepository(cfg.Store.Capacity, cfg.Store.IdleRoomExpiry), nil, nil
	}

	mongoCfg := &db.MongoConfig{
		URI:               cfg.Store.MongoURI,
		Database:          cfg.Store.MongoDatabase,
		ConnectionTimeout: db.DefaultConnectionTimeout,
	}
	client, err := db.NewMongoClient(ctx, mongoCfg)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := db.DisconnectMongo(context.Background(), client); err != nil {
			log.Printf("mongodb disconnect: %v", err)
		}
	}
	return persistencerepo.NewRoomRepository(db.GetDatabase(client, mongoCfg)), cleanup, nil
}
