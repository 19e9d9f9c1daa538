package worker

import (
	"context"

	"filehub/files-api/internal/queue"
	"filehub/files-api/internal/storage"

	"github.com/hibiken/asynq"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Server pulls jobs off the queue and dispatches them to the handler
// registered for their type. Each job is leased to a single consumer
// at a time and requeued if that consumer dies mid-flight
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

func NewServer(opt asynq.RedisClientOpt, db *gorm.DB, store storage.Store) *Server {
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: viper.GetInt("queue.concurrency"),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			zap.L().Error("Job failed",
				zap.String("type", task.Type()),
				zap.Error(err))
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(queue.TypeThumbnail, &ThumbnailHandler{DB: db, Store: store})
	mux.Handle(queue.TypeWelcome, &WelcomeHandler{DB: db})

	return &Server{
		srv: srv,
		mux: mux,
	}
}

// Start launches the consumer pool in the background
func (s *Server) Start() error {
	return s.srv.Start(s.mux)
}

// Shutdown waits for in-flight jobs to finish before returning.
// Anything still leased when the process dies gets requeued
func (s *Server) Shutdown() {
	s.srv.Shutdown()
}
