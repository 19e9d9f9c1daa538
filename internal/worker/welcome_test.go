package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"filehub/files-api/internal/queue"
	"filehub/files-api/model"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func welcomeTask(t *testing.T, p queue.WelcomePayload) *asynq.Task {
	t.Helper()

	data, err := json.Marshal(p)
	require.NoError(t, err)

	return asynq.NewTask(queue.TypeWelcome, data)
}

func TestWelcome(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.Create(&model.User{
		ID:           "user-1",
		Email:        "test@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now().UnixNano(),
	}).Error)

	h := &WelcomeHandler{DB: db}

	err := h.ProcessTask(context.Background(), welcomeTask(t, queue.WelcomePayload{UserID: "user-1"}))
	require.NoError(t, err)
}

func TestWelcome_PermanentFailures(t *testing.T) {
	db := newTestDB(t)
	h := &WelcomeHandler{DB: db}

	err := h.ProcessTask(context.Background(), welcomeTask(t, queue.WelcomePayload{}))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), welcomeTask(t, queue.WelcomePayload{UserID: "ghost"}))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), asynq.NewTask(queue.TypeWelcome, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
