package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"filehub/files-api/internal/queue"
	"filehub/files-api/model"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type WelcomeHandler struct {
	DB *gorm.DB
}

// ProcessTask greets a newly registered user. Mostly here to keep the
// queue honest about being job-type agnostic, a real deployment would
// send a mail instead of logging
func (h *WelcomeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p queue.WelcomePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("malformed welcome payload: %v: %w", err, asynq.SkipRetry)
	}

	if p.UserID == "" {
		return fmt.Errorf("missing userId: %w", asynq.SkipRetry)
	}

	var user model.User

	err := h.DB.
		WithContext(ctx).
		Where("id = ?", p.UserID).
		First(&user).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user not found: %w", asynq.SkipRetry)
		}

		return fmt.Errorf("failed to look up user, %w", err)
	}

	zap.L().Info(fmt.Sprintf("Welcome %s!", user.Email), zap.String("user_id", user.ID))
	return nil
}
