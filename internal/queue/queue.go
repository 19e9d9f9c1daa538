// Package queue defines the durable job types and the client side of
// the work queue. Each job type is just a payload plus a task name,
// consumers register themselves in the worker package
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	TypeThumbnail = "thumbnail:generate"
	TypeWelcome   = "user:welcome"
)

// ThumbnailPayload describes one image whose thumbnails should be
// generated. Immutable once enqueued
type ThumbnailPayload struct {
	UserID string `json:"userId"`
	FileID string `json:"fileId"`
}

// WelcomePayload describes a freshly registered user to greet
type WelcomePayload struct {
	UserID string `json:"userId"`
}

// Enqueuer is what producers depend on. The catalog only needs to hand
// off jobs, it never consumes them
type Enqueuer interface {
	EnqueueThumbnail(ctx context.Context, p ThumbnailPayload) error
	EnqueueWelcome(ctx context.Context, p WelcomePayload) error
}

// Client enqueues jobs onto the redis-backed queue. Delivery is
// at-least-once with bounded retries, after which a job is archived
type Client struct {
	c        *asynq.Client
	maxRetry int
}

func NewClient(opt asynq.RedisClientOpt) *Client {
	return &Client{
		c:        asynq.NewClient(opt),
		maxRetry: viper.GetInt("queue.max_retry"),
	}
}

func (c *Client) EnqueueThumbnail(ctx context.Context, p ThumbnailPayload) error {
	return c.enqueue(ctx, TypeThumbnail, p)
}

func (c *Client) EnqueueWelcome(ctx context.Context, p WelcomePayload) error {
	return c.enqueue(ctx, TypeWelcome, p)
}

func (c *Client) enqueue(ctx context.Context, typ string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload, %w", typ, err)
	}

	info, err := c.c.EnqueueContext(ctx, asynq.NewTask(typ, data), asynq.MaxRetry(c.maxRetry))
	if err != nil {
		return fmt.Errorf("failed to enqueue %s job, %w", typ, err)
	}

	zap.L().Debug("Job enqueued",
		zap.String("type", typ),
		zap.String("job_id", info.ID),
		zap.String("queue", info.Queue))

	return nil
}

func (c *Client) Close() error {
	return c.c.Close()
}
