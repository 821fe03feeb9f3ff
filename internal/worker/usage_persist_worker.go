package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"exmora-backend/internal/model"
	"exmora-backend/internal/repository"
)

// UsagePersistWorker drains the usage queue into per-day usage rows. The
// quota decision itself happens synchronously in Redis; this worker only
// makes the accounting durable.
type UsagePersistWorker struct {
	conn      *amqp.Connection
	repo      *repository.UsageRepository
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewUsagePersistWorker(conn *amqp.Connection, repo *repository.UsageRepository, queueName string) *UsagePersistWorker {
	return &UsagePersistWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
	}
}

func (w *UsagePersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume usage queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				switch w.process(workerCtx, d.Body, d.Redelivered) {
				case outcomeAck:
					_ = d.Ack(false)
				case outcomeRequeue:
					// Hold the message briefly so a down database does
					// not turn into a hot redeliver loop.
					select {
					case <-workerCtx.Done():
					case <-time.After(requeueDelay):
					}
					_ = d.Nack(false, true)
				default:
					_ = d.Nack(false, false)
				}
			}
		}
	}()

	return nil
}

type deliveryOutcome int

const (
	outcomeAck deliveryOutcome = iota
	outcomeDrop
	outcomeRequeue
)

// requeueDelay spaces out redeliveries of a message whose persist failed.
const requeueDelay = time.Second

// process decides the fate of one delivery. Accounting is best-effort:
// an undecodable event is dropped, a persist failure is retried once
// (via requeue) and then dropped.
func (w *UsagePersistWorker) process(ctx context.Context, body []byte, redelivered bool) deliveryOutcome {
	var event model.UsageEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("worker decode usage event failed: %v", err)
		return outcomeDrop
	}
	if err := w.repo.Increment(ctx, event); err != nil {
		log.Printf("worker persist usage event failed: %v", err)
		if redelivered {
			return outcomeDrop
		}
		return outcomeRequeue
	}
	return outcomeAck
}

func (w *UsagePersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
