package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"parishledger/internal/config"
	"parishledger/internal/queue"
	"parishledger/internal/store"
)

// Worker drains ledger events off the queue and forwards them to the
// notification collaborator's webhook. Delivery is best-effort; the ledgers
// themselves never depend on it.
func main() {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if cfg.Env != "production" && cfg.Env != "prod" {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var bus queue.Queue
	if cfg.QueueBackend == "memory" {
		bus = queue.NewInMemory(64)
	} else {
		bus = queue.NewRedisQueue(redisClient.Client, "parishledger:events")
	}

	messages, err := bus.Consume(ctx)
	if err != nil {
		log.Fatal("queue consume init failed", zap.Error(err))
	}

	client := &http.Client{Timeout: 5 * time.Second}

	log.Info("worker started, waiting for events")
	for msg := range messages {
		switch msg.Type {
		case queue.TypeAttendanceRecorded, queue.TypePaymentRecorded:
		default:
			continue
		}

		if cfg.NotifyWebhookURL == "" {
			log.Debug("no webhook configured, dropping event", zap.String("type", msg.Type))
			continue
		}
		if err := forward(ctx, client, cfg.NotifyWebhookURL, msg); err != nil {
			log.Warn("webhook delivery failed", zap.String("type", msg.Type), zap.Error(err))
			continue
		}
		log.Info("event forwarded", zap.String("type", msg.Type))
	}

	log.Info("worker stopped")
}

func forward(ctx context.Context, client *http.Client, url string, msg queue.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &httpStatusError{status: resp.StatusCode}
	}
	return nil
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.status)
}
