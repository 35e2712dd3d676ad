package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"stockline/internal/core/id"
	"stockline/internal/infrastructure/storage/postgres"
)

// webhookPublisher posts outbox events to an HTTP endpoint. The event id is
// sent as Idempotency-Key so receivers can drop redeliveries.
type webhookPublisher struct {
	client *resty.Client
	url    string
}

func newWebhookPublisher(url string, timeout time.Duration) *webhookPublisher {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "stockline-worker/"+version)
	return &webhookPublisher{client: client, url: url}
}

type webhookEvent struct {
	ID            id.ID           `json:"id"`
	EventType     string          `json:"eventType"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   id.ID           `json:"aggregateId"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func (p *webhookPublisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", msg.ID.String()).
		SetBody(webhookEvent{
			ID:            msg.ID,
			EventType:     msg.EventType,
			AggregateType: msg.AggregateType,
			AggregateID:   msg.AggregateID,
			Payload:       msg.Payload,
			CreatedAt:     msg.CreatedAt,
		}).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("post event %s: %w", msg.ID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("post event %s: webhook responded %d", msg.ID, resp.StatusCode())
	}
	return nil
}
