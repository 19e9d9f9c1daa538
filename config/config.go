// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	workerOnly = pflag.Bool("worker-only", false, "Runs only the background job workers without the HTTP API")

	validLogLevels    = []string{"debug", "info", "warn", "error", "fatal"}
	validStorageTypes = []string{"local", "s3"}
	validDBDrivers    = []string{"sqlite", "postgres"}
)

// WorkerOnly reports whether the process should skip the HTTP API
// and only consume jobs
func WorkerOnly() bool {
	return *workerOnly
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")

	v.BindEnv("db.driver", "db_driver")
	v.BindEnv("db.path", "db_path")
	v.BindEnv("db.dsn", "db_dsn")

	v.BindEnv("redis.addr", "redis_addr")
	v.BindEnv("redis.password", "redis_password")
	v.BindEnv("redis.db", "redis_db")

	v.BindEnv("session.ttl", "session_ttl")

	v.BindEnv("storage.type", "storage_type")
	v.BindEnv("storage.path", "folder_path")

	v.BindEnv("aws.region", "aws_region")
	v.BindEnv("aws.bucket", "aws_bucket")
	v.BindEnv("aws.access_key", "aws_access_key")
	v.BindEnv("aws.secret_access_key", "aws_secret_access_key")

	v.BindEnv("queue.concurrency", "queue_concurrency")
	v.BindEnv("queue.max_retry", "queue_max_retry")

	v.BindEnv("upload.max_size", "upload_max_size")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 5000)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "database.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Seconds. Matches the 24h session lifetime the frontend expects
	v.SetDefault("session.ttl", 86400)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "/tmp/files_manager")

	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.max_retry", 5)

	v.SetDefault("upload.max_size", 5)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file, %w", err)
		}

		// No config.toml is fine, envs and defaults cover everything
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if v.GetInt("session.ttl") <= 0 {
		return errors.New("session.ttl must be bigger than 0")
	}

	if v.GetInt("queue.concurrency") <= 0 {
		return errors.New("queue.concurrency must be bigger than 0")
	}

	if v.GetInt("queue.max_retry") < 0 {
		return errors.New("queue.max_retry can't be negative")
	}

	if v.GetInt("upload.max_size") <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	switch v.GetString("db.driver") {
	case "sqlite":
		if v.GetString("db.path") == "" {
			return errors.New("db.path can't be empty")
		}
	case "postgres":
		if v.GetString("db.dsn") == "" {
			return errors.New("db.dsn can't be empty")
		}
	default:
		return errors.New("invalid db driver provided")
	}

	switch v.GetString("storage.type") {
	case "local":
		if v.GetString("storage.path") == "" {
			return errors.New("storage.path can't be empty")
		}
	case "s3":
		{
			if v.GetString("aws.region") == "" {
				return errors.New("aws region can't be empty")
			}
			if v.GetString("aws.bucket") == "" {
				return errors.New("bucket can't be empty")
			}
			if v.GetString("aws.access_key") == "" {
				return errors.New("access key can't be empty")
			}
			if v.GetString("aws.secret_access_key") == "" {
				return errors.New("secret access key can't be empty")
			}
		}
	default:
		return errors.New("invalid storage type provided")
	}

	if !slices.Contains(validDBDrivers, v.GetString("db.driver")) {
		return errors.New("invalid db driver provided")
	}

	if !slices.Contains(validStorageTypes, v.GetString("storage.type")) {
		return errors.New("invalid storage type provided")
	}

	if v.GetString("redis.addr") == "" {
		zap.L().Warn("No redis.addr specified, falling back to localhost:6379")
		v.Set("redis.addr", "localhost:6379")
	}

	v.Set("upload.max_size", v.GetInt64("upload.max_size")<<20)
	return nil
}
