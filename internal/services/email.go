package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/finbright/bankcore/internal/infrastructure/kafka"
)

const emailsTopic = "emails"

// sendEmailAsync publishes an email event and returns immediately. Email is
// a side effect; its failure never surfaces to the operation that emitted it.
func sendEmailAsync(producer kafka.KafkaProducer, to, subject, body string) {
	if to == "" {
		return
	}
	payload, err := json.Marshal(kafka.EmailEvent{To: to, Subject: subject, Body: body})
	if err != nil {
		slog.Error("failed to marshal email event", "to", to, "error", err)
		return
	}
	go func() {
		retries := 3
		for i := 0; i < retries; i++ {
			if err := producer.Send(context.Background(), emailsTopic, time.Now().UnixNano(), payload); err == nil {
				return
			}
			time.Sleep(time.Second * time.Duration(i+1))
		}
		slog.Error("failed to publish email event after retries", "to", to, "subject", subject)
	}()
}
