package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cherrin1/remote-slack-server/config"
	"github.com/cherrin1/remote-slack-server/internal/api"
	"github.com/cherrin1/remote-slack-server/internal/oauth"
	"github.com/cherrin1/remote-slack-server/internal/registry"
	"github.com/cherrin1/remote-slack-server/internal/slack"
	"github.com/cherrin1/remote-slack-server/internal/store"
	"github.com/cherrin1/remote-slack-server/internal/tools"
	"github.com/cherrin1/remote-slack-server/internal/tracing"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if parseErr != nil {
		log.Warn().Str("configured_log_level", cfg.LogLevel).Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}

	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("public_url", cfg.PublicURL).
		Str("redis_addr", cfg.RedisAddr).
		Msg("Starting remote-slack-server")

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize TracerProvider")
	}

	ctx := context.Background()

	var kv store.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		kv = store.NewRedisStore(client, cfg.StorePrefix)
		log.Info().Msg("Using Redis store")
	} else {
		ms := store.NewMemoryStore()
		defer ms.Close()
		kv = ms
		log.Warn().Msg("REDIS_ADDR not set, using in-memory store; registrations will not survive a restart")
	}

	slackClient := slack.NewClient(cfg.SlackAPIURL)
	reg := registry.New(kv)
	exchange := oauth.NewExchange(kv, cfg.PublicURL+"/connect", cfg.OAuthCodeTTL)
	dispatcher := tools.NewDispatcher(slackClient)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Msg("request")
			return nil
		},
	}))

	api.New(cfg, kv, reg, exchange, dispatcher, slackClient).RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("TracerProvider shutdown failed")
	}
}
