package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// ResultPublisher pushes every finished run onto a durable queue so
// reporting consumers get seeding results and shift summaries.
type ResultPublisher struct {
	ch      Channel
	queue   string
	timeout time.Duration
}

func NewResultPublisher(ch Channel, queue string, timeout time.Duration) *ResultPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ResultPublisher{ch: ch, queue: queue, timeout: timeout}
}

// RecordRun implements RunSink.
func (p *ResultPublisher) RecordRun(ctx context.Context, run Run) error {
	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.ch.PublishWithContext(
		ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         run.Job,
			Timestamp:    run.FinishedAt,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("failed to publish %s run: %w", run.Job, err)
	}
	return nil
}
