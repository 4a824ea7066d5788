package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"quickpoll/internal/events"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes room events to a topic. Messages are keyed by room
// code so one room's events land on one partition, in order.
type KafkaSink struct {
	writer  messageWriter
	queue   chan events.RoomEvent
	timeout time.Duration
}

func NewKafkaSink(brokers []string, topic string, size int) *KafkaSink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  5,
		Compression:  kafka.Snappy,
	}
	return newSink(w, size)
}

func newSink(w messageWriter, size int) *KafkaSink {
	return &KafkaSink{
		writer:  w,
		queue:   make(chan events.RoomEvent, size),
		timeout: 5 * time.Second,
	}
}

// Message builds the Kafka record for a room event.
func Message(ev events.RoomEvent) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal %s event: %v", ev.Name, err)
	}
	return kafka.Message{
		Key:   []byte(ev.RoomCode),
		Value: value,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(ev.Name)},
		},
	}, nil
}

// Handle queues ev without blocking the broadcaster; events are dropped
// while the queue is full.
func (k *KafkaSink) Handle(ev events.RoomEvent) {
	select {
	case k.queue <- ev:
	default:
		log.Printf("[Kafka] Queue full, dropping %s for %s\n", ev.Name, ev.RoomCode)
	}
}

// Run writes queued events until ctx is done, then flushes what is left
// and closes the writer.
func (k *KafkaSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			k.drain()
			if err := k.writer.Close(); err != nil {
				log.Printf("[Kafka] Close error: %v\n", err)
			}
			return
		case ev := <-k.queue:
			k.publish(ev)
		}
	}
}

func (k *KafkaSink) drain() {
	for {
		select {
		case ev := <-k.queue:
			k.publish(ev)
		default:
			return
		}
	}
}

func (k *KafkaSink) publish(ev events.RoomEvent) {
	msg, err := Message(ev)
	if err != nil {
		log.Printf("[Kafka] %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("[Kafka] failed to write %s for %s: %v\n", ev.Name, ev.RoomCode, err)
	}
}
