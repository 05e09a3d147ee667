package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sketchdash/sketchdash/internal/infrastructure/configs"
	"github.com/sketchdash/sketchdash/internal/infrastructure/logging"
	"github.com/sketchdash/sketchdash/internal/infrastructure/ratelimiter"
	healthHandler "github.com/sketchdash/sketchdash/internal/presentation/handler/health"
	realtimeHandler "github.com/sketchdash/sketchdash/internal/presentation/handler/realtime"
	roomHandler "github.com/sketchdash/sketchdash/internal/presentation/handler/rooms"
	typingHandler "github.com/sketchdash/sketchdash/internal/presentation/handler/typing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Application struct {
	config          configs.Config
	roomHandler     *roomHandler.Handler
	typingHandler   *typingHandler.Handler
	realtimeHandler *realtimeHandler.Handler
	healthHandler   *healthHandler.Handler
	logger          logging.Logger
	ratelimiter     ratelimiter.Limiter
}

func NewApplication(
	config configs.Config,
	roomHandler *roomHandler.Handler,
	typingHandler *typingHandler.Handler,
	realtimeHandler *realtimeHandler.Handler,
	healthHandler *healthHandler.Handler,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
) *Application {
	return &Application{
		config:          config,
		roomHandler:     roomHandler,
		typingHandler:   typingHandler,
		realtimeHandler: realtimeHandler,
		healthHandler:   healthHandler,
		logger:          logger,
		ratelimiter:     ratelimiter,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(app.enableCors)
	r.Use(app.loggerMiddleware)

	r.Route("/api", func(r chi.Router) {
		// The websocket endpoint is long-lived; no request timeout here.
		r.Get("/ws", app.realtimeHandler.ConnectHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Use(app.rateLimiterMiddleware)

			r.Route("/rooms", func(r chi.Router) {
				r.Post("/", app.roomHandler.CreateRoomHandler)
				r.Get("/{roomId}", app.roomHandler.GetRoomHandler)
			})

			r.Route("/typing-rooms", func(r chi.Router) {
				r.Post("/", app.typingHandler.CreateRoomHandler)
				r.Get("/{roomId}", app.typingHandler.GetRoomHandler)
			})
		})

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
	})

	r.Handle("/metrics", promhttp.Handler())

	return otelhttp.NewHandler(r, "sketchdash")
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})

		// Health checks go dark first so load balancers drain us.
		healthHandler.SetUnhealthy()

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
