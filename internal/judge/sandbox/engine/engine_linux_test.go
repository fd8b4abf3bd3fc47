//go:build linux

package engine

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codejudge/internal/judge/sandbox/spec"
	appErr "codejudge/pkg/errors"
)

func requireShell(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return path
}

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	eng, err := NewEngine(Config{StdoutStderrMaxBytes: 1 << 16})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng
}

func shellSpec(t *testing.T, script string, limits spec.ResourceLimit) spec.RunSpec {
	sh := requireShell(t)
	return spec.RunSpec{
		SubmissionID: "sub",
		TestID:       "t",
		WorkDir:      t.TempDir(),
		Cmd:          []string{sh, "-c", script},
		Limits:       limits,
	}
}

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	eng := newTestEngine(t)
	res, err := eng.Run(context.Background(), shellSpec(t, "echo out; echo err 1>&2; exit 3", spec.ResourceLimit{WallTimeMs: 5000}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit 3, got %d", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" || strings.TrimSpace(res.Stderr) != "err" {
		t.Fatalf("unexpected streams %q %q", res.Stdout, res.Stderr)
	}
	if res.TimedOut || res.OutputExceeded || res.Canceled {
		t.Fatalf("unexpected flags %+v", res)
	}
}

func TestRunRedirectsStdin(t *testing.T) {
	eng := newTestEngine(t)
	runSpec := shellSpec(t, "read a b; echo $((a+b))", spec.ResourceLimit{WallTimeMs: 5000})
	input := filepath.Join(runSpec.WorkDir, "input.txt")
	if err := os.WriteFile(input, []byte("2 3\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	runSpec.StdinPath = input
	res, err := eng.Run(context.Background(), runSpec)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "5" {
		t.Fatalf("expected 5, got %q", res.Stdout)
	}
}

func TestRunWallTimeout(t *testing.T) {
	eng := newTestEngine(t)
	start := time.Now()
	res, err := eng.Run(context.Background(), shellSpec(t, "while :; do :; done", spec.ResourceLimit{WallTimeMs: 300}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout not enforced promptly: %v", elapsed)
	}
}

func TestRunKillsWholeProcessGroup(t *testing.T) {
	eng := newTestEngine(t)
	start := time.Now()
	res, err := eng.Run(context.Background(), shellSpec(t, "sleep 30 & sleep 30; wait", spec.ResourceLimit{WallTimeMs: 200}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("expected timeout")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("background child kept the run alive: %v", elapsed)
	}
}

func TestRunOutputCeiling(t *testing.T) {
	eng := newTestEngine(t)
	res, err := eng.Run(context.Background(), shellSpec(t, "while :; do echo aaaaaaaaaaaaaaaa; done", spec.ResourceLimit{WallTimeMs: 10000, OutputBytes: 1024}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.OutputExceeded {
		t.Fatalf("expected output ceiling to trip, got %+v", res)
	}
	if res.TimedOut {
		t.Fatalf("output ceiling must kill before the wall timer")
	}
	if len(res.Stdout) != 1024 {
		t.Fatalf("expected 1024 captured bytes, got %d", len(res.Stdout))
	}
}

func TestRunContextCancel(t *testing.T) {
	eng := newTestEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	res, err := eng.Run(ctx, shellSpec(t, "sleep 30", spec.ResourceLimit{WallTimeMs: 10000}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Canceled || res.TimedOut {
		t.Fatalf("expected canceled run, got %+v", res)
	}
}

func TestRunSignalReported(t *testing.T) {
	eng := newTestEngine(t)
	res, err := eng.Run(context.Background(), shellSpec(t, "kill -SEGV $$", spec.ResourceLimit{WallTimeMs: 5000}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Signal != "SIGSEGV" {
		t.Fatalf("expected SIGSEGV, got %q (exit %d)", res.Signal, res.ExitCode)
	}
}

func TestRunSpawnFailureIsInfraError(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.Run(context.Background(), spec.RunSpec{
		WorkDir: t.TempDir(),
		Cmd:     []string{"/definitely/not/here"},
	})
	if !appErr.Is(err, appErr.ExecutionInfraError) {
		t.Fatalf("expected ExecutionInfraError, got %v", err)
	}
}

func TestRunMissingStdinIsInfraError(t *testing.T) {
	eng := newTestEngine(t)
	runSpec := shellSpec(t, "cat", spec.ResourceLimit{WallTimeMs: 1000})
	runSpec.StdinPath = filepath.Join(runSpec.WorkDir, "missing.txt")
	_, err := eng.Run(context.Background(), runSpec)
	if !appErr.Is(err, appErr.ExecutionInfraError) {
		t.Fatalf("expected ExecutionInfraError, got %v", err)
	}
}

func TestRunIsolationBetweenRuns(t *testing.T) {
	eng := newTestEngine(t)
	first, err := eng.Run(context.Background(), shellSpec(t, "exit 7", spec.ResourceLimit{WallTimeMs: 1000}))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := eng.Run(context.Background(), shellSpec(t, "exit 0", spec.ResourceLimit{WallTimeMs: 1000}))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.ExitCode != 7 || second.ExitCode != 0 {
		t.Fatalf("exit codes leaked between runs: %d %d", first.ExitCode, second.ExitCode)
	}
}

func TestCgroupHelpersOnPlainDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := applyCgroupLimits(dir, spec.ResourceLimit{MemoryMB: 64, PIDs: 16}); err != nil {
		t.Fatalf("apply limits: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "memory.max"))
	if err != nil || string(data) != "67108864" {
		t.Fatalf("unexpected memory.max %q %v", data, err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, "pids.max"))
	if string(data) != "16" {
		t.Fatalf("unexpected pids.max %q", data)
	}

	if wasOomKilled(dir) {
		t.Fatalf("no events file means no oom kill")
	}
	os.WriteFile(filepath.Join(dir, "memory.events"), []byte("low 0\nhigh 0\nmax 3\noom 1\noom_kill 1\n"), 0o644)
	if !wasOomKilled(dir) {
		t.Fatalf("expected oom kill to be detected")
	}
	os.WriteFile(filepath.Join(dir, "memory.peak"), []byte("2097152\n"), 0o644)
	if got := memoryPeakKB(dir, nil); got != 2048 {
		t.Fatalf("expected 2048 KB, got %d", got)
	}
}

func TestRunAppliesAddressSpaceLimit(t *testing.T) {
	eng := newTestEngine(t)
	// The sleep lets prlimit land before the shell reads its own limits.
	res, err := eng.Run(context.Background(), shellSpec(t, "sleep 0.2; cat /proc/$$/limits", spec.ResourceLimit{WallTimeMs: 5000, MemoryMB: 64}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var line string
	for _, l := range strings.Split(res.Stdout, "\n") {
		if strings.HasPrefix(l, "Max address space") {
			line = l
		}
	}
	if line == "" {
		t.Fatalf("no address space line in %q", res.Stdout)
	}
	fields := strings.Fields(strings.TrimPrefix(line, "Max address space"))
	if len(fields) < 2 || fields[0] != "67108864" || fields[1] != "67108864" {
		t.Fatalf("expected 64 MB soft and hard limit, got %q", line)
	}
}

func TestRunAllocationAboveMemoryLimitFails(t *testing.T) {
	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not available")
	}
	eng := newTestEngine(t)
	script := "import time\ntime.sleep(0.2)\nb = bytearray(400 * 1024 * 1024)\nprint(len(b))\n"
	run := func(memoryMB int64) (int, string, bool) {
		res, err := eng.Run(context.Background(), spec.RunSpec{
			SubmissionID: "sub",
			TestID:       "mem",
			WorkDir:      t.TempDir(),
			Cmd:          []string{python, "-c", script},
			Limits:       spec.ResourceLimit{WallTimeMs: 10000, MemoryMB: memoryMB},
		})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return res.ExitCode, res.Stderr, res.TimedOut
	}

	code, stderr, timedOut := run(128)
	if timedOut || code == 0 {
		t.Fatalf("allocation above the limit should fail, exit=%d timedOut=%v", code, timedOut)
	}
	if !strings.Contains(stderr, "MemoryError") {
		t.Fatalf("expected MemoryError, got %q", stderr)
	}

	if code, stderr, _ := run(0); code != 0 {
		t.Fatalf("same allocation without a limit should succeed, exit=%d stderr=%q", code, stderr)
	}
}

func TestRunWallTimeEndsAtProgramExit(t *testing.T) {
	eng := newTestEngine(t)
	start := time.Now()
	res, err := eng.Run(context.Background(), shellSpec(t, "sleep 30 & echo 5", spec.ResourceLimit{WallTimeMs: 5000}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "5" {
		t.Fatalf("expected 5, got %q", res.Stdout)
	}
	if res.WallTimeMs >= 300 {
		t.Fatalf("background child stretched wall time to %d ms", res.WallTimeMs)
	}
	if res.TimedOut {
		t.Fatalf("unexpected timeout")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("run blocked on the background child: %v", elapsed)
	}
}
