// Package notify hands invitation emails to the background worker.
package notify

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-equip/internal/tasks"
)

// Dispatcher enqueues invitation emails. Callers treat it as fire-and-forget:
// an error is logged by the caller and never undoes the state change that
// produced the email.
type Dispatcher interface {
	InvitationCreated(ctx context.Context, msg tasks.InvitationEmailPayload) error
	InvitationAccepted(ctx context.Context, msg tasks.InvitationEmailPayload) error
	InvitationCanceled(ctx context.Context, msg tasks.InvitationEmailPayload) error
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type AsynqDispatcher struct {
	client Enqueuer
	logger *slog.Logger
}

func NewAsynqDispatcher(client Enqueuer, logger *slog.Logger) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, logger: logger}
}

func (d *AsynqDispatcher) InvitationCreated(ctx context.Context, msg tasks.InvitationEmailPayload) error {
	return d.enqueue(ctx, tasks.NewInvitationCreatedTask, msg)
}

func (d *AsynqDispatcher) InvitationAccepted(ctx context.Context, msg tasks.InvitationEmailPayload) error {
	return d.enqueue(ctx, tasks.NewInvitationAcceptedTask, msg)
}

func (d *AsynqDispatcher) InvitationCanceled(ctx context.Context, msg tasks.InvitationEmailPayload) error {
	return d.enqueue(ctx, tasks.NewInvitationCanceledTask, msg)
}

func (d *AsynqDispatcher) enqueue(ctx context.Context, build func(tasks.InvitationEmailPayload) (*asynq.Task, error), msg tasks.InvitationEmailPayload) error {
	task, err := build(msg)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		d.logger.Warn("enqueue email failed", "kind", task.Type(), "to", msg.To, "error", err)
		return err
	}
	d.logger.Debug("email enqueued", "kind", task.Type(), "task_id", info.ID, "queue", info.Queue)
	return nil
}

// NoopDispatcher drops every message; used when Redis is not configured.
type NoopDispatcher struct{}

func (NoopDispatcher) InvitationCreated(context.Context, tasks.InvitationEmailPayload) error  { return nil }
func (NoopDispatcher) InvitationAccepted(context.Context, tasks.InvitationEmailPayload) error { return nil }
func (NoopDispatcher) InvitationCanceled(context.Context, tasks.InvitationEmailPayload) error { return nil }

var (
	_ Dispatcher = (*AsynqDispatcher)(nil)
	_ Dispatcher = NoopDispatcher{}
	_ Enqueuer   = (*asynq.Client)(nil)
)
