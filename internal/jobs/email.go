package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

const (
	EmailTypeVerification  = "verification"
	EmailTypePasswordReset = "password_reset"
)

// EmailTask asks the worker to deliver a one-time token email.
type EmailTask struct {
	Type  string `json:"type"`
	To    string `json:"to"`
	Token string `json:"token"`
}

// EmailSender is implemented by the SMTP service.
type EmailSender interface {
	SendVerificationEmail(to, token string, ttl time.Duration) error
	SendPasswordResetEmail(to, token string, ttl time.Duration) error
}

// EmailWorker drains the email queue so SMTP latency stays out of request
// handlers.
type EmailWorker struct {
	queue    *Queue
	sender   EmailSender
	tokenTTL time.Duration
}

func NewEmailWorker(queue *Queue, sender EmailSender, tokenTTL time.Duration) *EmailWorker {
	return &EmailWorker{queue: queue, sender: sender, tokenTTL: tokenTTL}
}

func (w *EmailWorker) Start(ctx context.Context) {
	slog.Info("starting email worker", "component", "jobs")

	for {
		payload, err := w.queue.Dequeue(ctx, EmailQueue)
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			slog.Info("stopping email worker", "component", "jobs")
			return
		}
		if err != nil {
			slog.Error("error dequeueing email task", "component", "jobs", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if payload == nil {
			continue
		}

		var task EmailTask
		if err := json.Unmarshal(payload, &task); err != nil {
			slog.Error("error decoding email task", "component", "jobs", "error", err)
			continue
		}

		w.process(task)
	}
}

func (w *EmailWorker) process(task EmailTask) {
	var err error
	switch task.Type {
	case EmailTypeVerification:
		err = w.sender.SendVerificationEmail(task.To, task.Token, w.tokenTTL)
	case EmailTypePasswordReset:
		err = w.sender.SendPasswordResetEmail(task.To, task.Token, w.tokenTTL)
	default:
		slog.Warn("unknown email task type", "component", "jobs", "type", task.Type)
		return
	}

	if err != nil {
		slog.Error("error sending email", "component", "jobs", "type", task.Type, "error", err)
	}
}
