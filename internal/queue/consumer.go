package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewOrderLog returns a rotating writer for the order log.
func NewOrderLog(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     90,
		Compress:   true,
	}
}

// StartOrderConsumer connects to RabbitMQ, declares the order.placed queue
// and appends one line per event to out.  It reconnects with exponential
// backoff and returns only when ctx is done.
func StartOrderConsumer(ctx context.Context, url string, out io.Writer) error {
	log := zap.L().Named("order-consumer")
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("dial broker failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, out)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, out io.Writer) error {
	log := zap.L().Named("order-consumer")
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(OrderPlacedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, OrderPlacedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := HandleOrderMessage(d.Body, out); err != nil {
			log.Error("handle message failed", zap.Error(err))
			_ = d.Nack(false, false) // drop; requeueing a bad payload would loop
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// HandleOrderMessage decodes one event and writes a single log line.
func HandleOrderMessage(body []byte, out io.Writer) error {
	var ev OrderPlacedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.OrderID == 0 {
		return errors.New("event has no order id")
	}

	items := make([]string, len(ev.Items))
	for i, it := range ev.Items {
		items[i] = fmt.Sprintf("%dx%d@%d", it.ProductID, it.Quantity, it.PriceCents)
	}
	line := fmt.Sprintf("[%s] Order placed | order_id=%d | user_id=%d | email=%q | session=%s | coupon=%q | total=%d cents | items=[%s]\n",
		ev.PlacedAt, ev.OrderID, ev.UserID, ev.UserEmail, ev.StripeSessionID, ev.CouponCode, ev.TotalAmountCents, strings.Join(items, ","))
	if _, err := io.WriteString(out, line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
