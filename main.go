package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"filehub/files-api/api"
	"filehub/files-api/config"
	"filehub/files-api/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	err := config.Setup()
	if err != nil {
		panic(err)
	}

	a, err := api.NewRouter()
	if err != nil {
		panic(err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     viper.GetString("redis.addr"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	}

	w := worker.NewServer(redisOpt, a.DB, a.Store)
	if err := w.Start(); err != nil {
		panic(err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", viper.GetInt("host.port")),
		Handler: a.Router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !config.WorkerOnly() {
		go func() {
			zap.L().Info("Server starting", zap.String("addr", srv.Addr))

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zap.L().Fatal("Server failed", zap.Error(err))
			}
		}()
	} else {
		zap.L().Info("Running in worker-only mode")
	}

	<-ctx.Done()
	zap.L().Info("Shutting down, draining in-flight work")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Forced server shutdown", zap.Error(err))
	}

	// Blocks until leased jobs finish so nothing gets half-processed
	w.Shutdown()
}
