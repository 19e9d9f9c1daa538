// Package worker contains the queue consumers that run in the
// background of the application
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"filehub/files-api/internal/queue"
	"filehub/files-api/internal/storage"
	"filehub/files-api/model"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// The fixed widths every uploaded image gets thumbnails for
var thumbnailWidths = []int{500, 250, 100}

type ThumbnailHandler struct {
	DB    *gorm.DB
	Store storage.Store
}

// ProcessTask generates the three thumbnails for one image. Malformed
// payloads and missing files fail permanently, I/O faults are left to
// the queue to retry
func (h *ThumbnailHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p queue.ThumbnailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("malformed thumbnail payload: %v: %w", err, asynq.SkipRetry)
	}

	if p.FileID == "" {
		return fmt.Errorf("missing fileId: %w", asynq.SkipRetry)
	}

	if p.UserID == "" {
		return fmt.Errorf("missing userId: %w", asynq.SkipRetry)
	}

	// The lookup has to match both the file and the claimed owner so a
	// forged or stale job can't touch another user's file
	var file model.File

	err := h.DB.
		WithContext(ctx).
		Where("id = ? AND user_id = ?", p.FileID, p.UserID).
		First(&file).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("file not found: %w", asynq.SkipRetry)
		}

		return fmt.Errorf("failed to look up file, %w", err)
	}

	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)

	for _, width := range thumbnailWidths {
		g.Go(func() error {
			_, err := h.Store.Derive(ctx, file.ContentKey, width)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, storage.ErrUnsupportedFormat) || errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		return err
	}

	zap.L().Debug("Thumbnails generated",
		zap.String("file_id", file.ID),
		zap.String("user_id", file.UserID),
		zap.Duration("took", time.Since(start)))

	return nil
}
