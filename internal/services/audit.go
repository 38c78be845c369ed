package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/taskdeck/apiserver/internal/mq"
)

const auditChannel = "audit"

// AuditPublisher emits audit events for account and resource mutations
// to the configured message broker. It is injected explicitly wherever
// events originate; a nil broker turns publishing into a no-op.
type AuditPublisher struct {
	mq     *mq.MQ
	logger *slog.Logger
}

func NewAuditPublisher(broker *mq.MQ, logger *slog.Logger) *AuditPublisher {
	return &AuditPublisher{mq: broker, logger: logger}
}

type auditEvent struct {
	Event   string         `json:"event"`
	ActorID int            `json:"actor_id"`
	At      time.Time      `json:"at"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Emit publishes a single audit event. Publishing is best-effort:
// broker failures are logged and never surfaced to the caller.
func (p *AuditPublisher) Emit(ctx context.Context, event string, actorID int, fields map[string]any) {
	if p == nil || p.mq == nil {
		return
	}

	data, err := json.Marshal(auditEvent{
		Event:   event,
		ActorID: actorID,
		At:      time.Now().UTC(),
		Fields:  fields,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "audit event marshal failed", slog.String("event", event), slog.Any("error", err))
		return
	}

	if _, err := p.mq.Publish(ctx, auditChannel, data, map[string]string{"event": event}); err != nil {
		p.logger.WarnContext(ctx, "audit event publish failed", slog.String("event", event), slog.Any("error", err))
	}
}
