package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/go-equip/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Queue: "default", Type: task.Type()}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAsynqDispatcher_EnqueuesTypedTasks(t *testing.T) {
	rec := &recordingEnqueuer{}
	d := NewAsynqDispatcher(rec, testLogger())
	msg := tasks.InvitationEmailPayload{
		InvitationID: uuid.New(),
		To:           "tech@example.com",
		Role:         "TECHNICIAN",
	}

	require.NoError(t, d.InvitationCreated(context.Background(), msg))
	require.NoError(t, d.InvitationAccepted(context.Background(), msg))
	require.NoError(t, d.InvitationCanceled(context.Background(), msg))

	require.Len(t, rec.tasks, 3)
	assert.Equal(t, tasks.TypeInvitationCreated, rec.tasks[0].Type())
	assert.Equal(t, tasks.TypeInvitationAccepted, rec.tasks[1].Type())
	assert.Equal(t, tasks.TypeInvitationCanceled, rec.tasks[2].Type())

	var got tasks.InvitationEmailPayload
	require.NoError(t, json.Unmarshal(rec.tasks[0].Payload(), &got))
	assert.Equal(t, msg.InvitationID, got.InvitationID)
	assert.Equal(t, "tech@example.com", got.To)
}

func TestAsynqDispatcher_PropagatesEnqueueError(t *testing.T) {
	rec := &recordingEnqueuer{err: errors.New("redis unavailable")}
	d := NewAsynqDispatcher(rec, testLogger())

	err := d.InvitationCreated(context.Background(), tasks.InvitationEmailPayload{To: "a@example.com"})
	assert.EqualError(t, err, "redis unavailable")
}

func TestNoopDispatcher(t *testing.T) {
	var d Dispatcher = NoopDispatcher{}
	assert.NoError(t, d.InvitationCreated(context.Background(), tasks.InvitationEmailPayload{}))
}
