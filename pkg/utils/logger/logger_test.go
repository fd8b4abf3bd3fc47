package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codejudge/pkg/utils/contextkey"

	"go.uber.org/zap"
)

func TestLoggerWritesContextFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "judge.log")
	if err := Init(Config{Level: "debug", Format: "json", OutputPath: path}); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	t.Cleanup(func() { globalLogger = nil })

	ctx := context.WithValue(context.Background(), contextkey.TraceID, "trace-1")
	ctx = WithSubmission(ctx, "sub-1")
	Info(ctx, "submission finished", zap.String("verdict", "AC"))
	Debug(context.Background(), "state change")
	if err := Sync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"trace_id":"trace-1"`, `"submission_id":"sub-1"`, `"verdict":"AC"`, `"msg":"state change"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %s: %s", want, out)
		}
	}
}

func TestWithSubmissionIgnoresEmptyID(t *testing.T) {
	ctx := context.Background()
	if WithSubmission(ctx, "") != ctx {
		t.Fatalf("empty id should return the same context")
	}
	if got := WithSubmission(ctx, "sub-2").Value(contextkey.SubmissionID); got != "sub-2" {
		t.Fatalf("unexpected submission id %v", got)
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, err := NewLogger(Config{Level: "loud"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
}

func TestUninitializedLoggerIsNoop(t *testing.T) {
	globalLogger = nil
	Info(context.Background(), "dropped")
	if err := Sync(); err != nil {
		t.Fatalf("sync on nil logger: %v", err)
	}
}
