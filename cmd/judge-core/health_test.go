package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codejudge/internal/common/cache"
	"codejudge/internal/common/mq"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error { return f.err }

func serveHealth(t *testing.T, checks map[string]pinger) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/healthz", healthHandler(checks, time.Second))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	return rec, body
}

func TestHealthWithoutBackends(t *testing.T) {
	rec, _ := serveHealth(t, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthPingsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	redisCache, err := cache.NewRedisCacheWithConfig(&cache.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("init redis: %v", err)
	}
	t.Cleanup(func() { _ = redisCache.Close() })
	checks := map[string]pinger{"redis": redisCache}

	rec, body := serveHealth(t, checks)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", rec.Code, body)
	}

	mr.Close()
	rec, body = serveHealth(t, checks)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after redis stops, got %d", rec.Code)
	}
	details, _ := body["details"].(map[string]interface{})
	if details["redis"] == "ok" || details["redis"] == nil {
		t.Fatalf("expected redis failure in details, got %v", body)
	}
}

func TestHealthReportsUnreachableKafka(t *testing.T) {
	q, err := mq.NewKafkaQueue(mq.KafkaConfig{Brokers: []string{"127.0.0.1:1"}, DialTimeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("init kafka queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })

	rec, body := serveHealth(t, map[string]pinger{"kafka": q, "other": fakePinger{}})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	details, _ := body["details"].(map[string]interface{})
	if details["other"] != "ok" || details["kafka"] == "ok" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestHealthFailingCheck(t *testing.T) {
	rec, _ := serveHealth(t, map[string]pinger{"x": fakePinger{err: errors.New("down")}})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
