package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/finbright/bankcore/internal/infrastructure/mail"
	"github.com/segmentio/kafka-go"
)

// EmailEvent is the payload services publish to the emails topic.
type EmailEvent struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// MailConsumer drains the emails topic and hands each event to the SMTP
// sender. Delivery failures are retried a few times and then dropped; email
// is a fire-and-forget side effect of the operations that emit it.
type MailConsumer struct {
	reader *kafka.Reader
	sender mail.Sender
}

func NewMailConsumer(brokers []string, topic, groupID string, sender mail.Sender) *MailConsumer {
	return &MailConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		sender: sender,
	}
}

func (c *MailConsumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}

		var event EmailEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Error("failed to unmarshal email event", "error", err)
			continue
		}
		if event.To == "" {
			slog.Error("email event without recipient", "subject", event.Subject)
			continue
		}

		const retries = 3
		var sendErr error
		for i := 0; i < retries; i++ {
			if sendErr = c.sender.Send(event.To, event.Subject, event.Body); sendErr == nil {
				break
			}
			time.Sleep(time.Second * time.Duration(i+1))
		}
		if sendErr != nil {
			slog.Error("failed to deliver email after retries", "to", event.To, "subject", event.Subject, "error", sendErr)
			continue
		}
		slog.Info("email delivered", "to", event.To, "subject", event.Subject)
	}
}

func (c *MailConsumer) Close() error {
	return c.reader.Close()
}
