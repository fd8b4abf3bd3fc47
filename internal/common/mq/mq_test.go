package mq

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestKafkaMessageHeadersRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	in := &Message{
		ID:         "sub-1",
		Body:       []byte(`{"language":"python"}`),
		Timestamp:  ts,
		RetryCount: 1,
		MaxRetries: 2,
		Expiration: 90 * time.Second,
	}
	in.SetHeader("trace_id", "t-1")

	km := toKafkaMessage("judge.run", in)
	if string(km.Key) != "sub-1" || km.Topic != "judge.run" {
		t.Fatalf("unexpected kafka message: %+v", km)
	}

	out := fromKafkaMessage(km)
	if out.ID != in.ID || string(out.Body) != string(in.Body) {
		t.Fatalf("payload mismatch: %+v", out)
	}
	if !out.Timestamp.Equal(ts) || out.RetryCount != 1 || out.MaxRetries != 2 || out.Expiration != 90*time.Second {
		t.Fatalf("metadata mismatch: %+v", out)
	}
	if v, ok := out.GetHeader("trace_id"); !ok || v != "t-1" {
		t.Fatalf("custom header lost: %v", out.Headers)
	}
	if _, ok := out.GetHeader(headerID); ok {
		t.Fatalf("reserved headers must not leak into Headers")
	}
}

func TestFromKafkaMessageFallsBackToKey(t *testing.T) {
	m := fromKafkaMessage(kafka.Message{Key: []byte("k-1"), Value: []byte("x")})
	if m.ID != "k-1" {
		t.Fatalf("ID = %q", m.ID)
	}
}

func TestMessageExpired(t *testing.T) {
	now := time.Now()
	m := &Message{Timestamp: now.Add(-2 * time.Minute), Expiration: time.Minute}
	if !m.Expired(now) {
		t.Fatalf("message should be expired")
	}
	m.Expiration = 0
	if m.Expired(now) {
		t.Fatalf("zero expiration never expires")
	}
}

func TestSubscribeOptionsDefaults(t *testing.T) {
	opts := SubscribeOptions{MaxRetries: -1}
	opts.SetDefaults()
	if opts.Concurrency != 1 || opts.MaxRetries != 0 || opts.RetryDelay != time.Second {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
}

func TestNewKafkaQueueRequiresBrokers(t *testing.T) {
	if _, err := NewKafkaQueue(KafkaConfig{}); err == nil {
		t.Fatalf("expected error without brokers")
	}
	q, err := NewKafkaQueue(KafkaConfig{Brokers: []string{"127.0.0.1:9092"}})
	if err != nil {
		t.Fatalf("NewKafkaQueue failed: %v", err)
	}
	if err := q.Subscribe(context.Background(), "", func(context.Context, *Message) error { return nil }, nil); err == nil {
		t.Fatalf("expected error for empty topic")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := q.Subscribe(context.Background(), "t", func(context.Context, *Message) error { return nil }, nil); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestTokenLimiter(t *testing.T) {
	l := NewTokenLimiter(2)
	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second token should be available: %v", err)
	}

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := l.Acquire(cctx); err == nil {
		t.Fatalf("Acquire should fail when ctx expires")
	}

	l.Release()
	l.Release()
	l.Release()
	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d after release: %v", i, err)
		}
	}
	cctx2, cancel2 := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel2()
	if err := l.Acquire(cctx2); err == nil {
		t.Fatalf("release must not exceed capacity")
	}
}
