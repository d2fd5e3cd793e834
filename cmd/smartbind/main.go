package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/binstore"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/config"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/dashboard"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/httpapi"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/ingest"
	mqttpkg "github.com/curious-vv1/IoT-Based-Smart-Bin/internal/mqtt"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/observability"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/realtime"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))
	slog.SetDefault(logger)

	shutdownObs, promHandler, tracer := observability.SetupObservability("smartbind")
	defer shutdownObs()

	var store binstore.Store
	switch cfg.StoreBackend {
	case "memory":
		store = binstore.NewMemory()
		slog.Warn("using in-memory bin store; state is lost on restart")
	default:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Error("redis init failed", "error", err)
			os.Exit(1)
		}
		store = binstore.NewRedis(rdb)
	}

	hub := realtime.NewHub()
	ctrl := dashboard.New(store)
	ctrl.OnViewChange(hub.Broadcast)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ctrl.Start(ctx); err != nil {
		slog.Error("dashboard start failed", "error", err)
		os.Exit(1)
	}
	defer ctrl.Stop()

	mClient := mqttpkg.New(cfg.MQTTBrokerURL, "smartbind")
	defer mClient.Disconnect(250)
	ing := &ingest.Ingestor{Store: store, TopicPrefix: cfg.MQTTTopicPrefix}
	if err := mClient.Subscribe(cfg.MQTTTopicPrefix+"+", func(_ paho.Client, msg mqttpkg.Message) {
		ing.HandleMessage(ctx, msg)
	}); err != nil {
		slog.Error("telemetry subscribe failed", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promHandler)
	httpapi.NewServer(ctrl, hub).Register(mux)

	handler := middleware.Recoverer(middleware.RealIP(
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		})(observability.MetricsAndTracingMiddleware(tracer, "smartbind")(mux)),
	))

	// No write timeout: the websocket feed holds its connection open.
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}

	go func() {
		slog.Info("smartbind started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("graceful shutdown failed", "error", err)
	}

	slog.Info("smartbind stopped")
}
