// Package api contains all endpoints available
package api

import (
	"context"
	"fmt"
	"time"

	"filehub/files-api/db"
	"filehub/files-api/internal/catalog"
	"filehub/files-api/internal/queue"
	"filehub/files-api/internal/session"
	"filehub/files-api/internal/storage"
	"filehub/files-api/middleware"
	"filehub/files-api/pkg/security"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	ginzap "github.com/gin-contrib/zap"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

var store = persist.NewMemoryStore(time.Minute)

type API struct {
	DB       *gorm.DB
	Router   *gin.Engine
	Argon    *security.ArgonHash
	Sessions *session.Store
	Store    storage.Store
	Queue    queue.Enqueuer
	Catalog  *catalog.Catalog
}

func NewRouter() (*API, error) {
	a := &API{}

	d, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	a.DB = d

	makeLogger()

	rdb := redis.NewClient(&redis.Options{
		Addr:     viper.GetString("redis.addr"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		// Sessions and jobs will fail until redis comes back, but the
		// status endpoint should keep answering
		zap.L().Warn("Redis unreachable at startup", zap.Error(err))
	}

	a.Sessions = session.New(rdb, time.Duration(viper.GetInt("session.ttl"))*time.Second)

	switch viper.GetString("storage.type") {
	case "s3":
		s, err := storage.NewS3()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage, %w", err)
		}
		a.Store = s
	default:
		l, err := storage.NewLocal(viper.GetString("storage.path"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage, %w", err)
		}
		a.Store = l
	}

	a.Queue = queue.NewClient(asynq.RedisClientOpt{
		Addr:     viper.GetString("redis.addr"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	a.Catalog = catalog.New(a.DB, a.Store, a.Queue)
	a.Argon = security.New()

	a.setup()
	return a, nil
}

// setup builds the gin engine and mounts every route. Split out of
// NewRouter so tests can wire their own dependencies first
func (a *API) setup() {
	router := gin.New()
	a.Router = router

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Token"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true

	token := middleware.NewTokenMiddleware(a.Sessions)
	maxUploadSize := viper.GetInt64("upload.max_size")

	// GET /status			-> Reports whether redis and the db answer
	router.GET("/status", a.Status)

	// GET /stats			-> Returns user and file totals
	router.GET("/stats", cacheFor(30), a.Stats)

	// POST /users			-> Registers a new user
	router.POST("/users", middleware.BodySizeLimiter(1<<20), a.UserRegister)

	// GET /connect			-> Trades Basic auth credentials for a token
	router.GET("/connect", a.UserConnect)

	// GET /disconnect		-> Destroys the presented token
	router.GET("/disconnect", token, a.UserDisconnect)

	// GET /users/me		-> Returns the authenticated user
	router.GET("/users/me", token, a.UserMe)

	files := router.Group("/files")
	{
		// POST /files			-> Creates a folder or uploads a file
		files.POST("", token, middleware.BodySizeLimiter(maxUploadSize), a.FileCreate)

		// GET /files			-> Lists the requester's files, paginated
		files.GET("", token, a.FileFetchBulk)

		// GET /files/:id		-> Returns a single record
		files.GET("/:id", token, a.FileFetch)

		// PUT /files/:id/publish	-> Makes a file publicly readable
		files.PUT("/:id/publish", token, a.FilePublish)

		// PUT /files/:id/unpublish	-> Makes a file private again
		files.PUT("/:id/unpublish", token, a.FileUnpublish)

		// GET /files/:id/data		-> Streams raw bytes, public files need no token
		files.GET("/:id/data", a.FileData)
	}
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}
