//go:build linux

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	defaultPathEnv = "/usr/local/bin:/usr/bin:/bin"
	// drainDelay bounds how long output pipes are read after the program exits.
	drainDelay = 500 * time.Millisecond
)

type linuxEngine struct {
	cfg Config
}

// NewEngine creates a Linux process engine.
func NewEngine(cfg Config) (Engine, error) {
	if cfg.StdoutStderrMaxBytes <= 0 {
		cfg.StdoutStderrMaxBytes = defaultStdoutStderrMaxBytes
	}
	if cfg.EnableCgroup && cfg.CgroupRoot == "" {
		return nil, fmt.Errorf("cgroup root is required when cgroup is enabled")
	}
	if cfg.PathEnv == "" {
		cfg.PathEnv = os.Getenv("PATH")
	}
	if cfg.PathEnv == "" {
		cfg.PathEnv = defaultPathEnv
	}
	return &linuxEngine{cfg: cfg}, nil
}

func (e *linuxEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.RunResult{}, appErr.Wrapf(err, appErr.ExecutionInfraError, "invalid run spec")
	}
	if ctx.Err() != nil {
		return result.RunResult{ExitCode: -1, Canceled: true}, nil
	}

	var stdin *os.File
	if runSpec.StdinPath != "" {
		f, err := os.Open(runSpec.StdinPath)
		if err != nil {
			return result.RunResult{}, appErr.Wrapf(err, appErr.ExecutionInfraError, "open stdin failed")
		}
		defer f.Close()
		stdin = f
	}

	outputLimit := runSpec.Limits.OutputBytes
	if outputLimit <= 0 {
		outputLimit = e.cfg.StdoutStderrMaxBytes
	}
	exceeded := make(chan struct{})
	var exceedOnce sync.Once
	stdout := newLimitedBuffer(outputLimit, func() {
		exceedOnce.Do(func() { close(exceeded) })
	})
	stderr := newLimitedBuffer(outputLimit, nil)

	cmd := exec.Command(runSpec.Cmd[0], runSpec.Cmd[1:]...)
	cmd.Dir = runSpec.WorkDir
	cmd.Env = e.buildEnv(runSpec)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}

	cgroupPath := ""
	if e.cfg.EnableCgroup {
		path, cleanup, err := createRunCgroup(e.cfg.CgroupRoot, runSpec.SubmissionID, runSpec.TestID)
		if err != nil {
			return result.RunResult{}, appErr.Wrapf(err, appErr.ExecutionInfraError, "create cgroup failed")
		}
		defer cleanup()
		if err := applyCgroupLimits(path, runSpec.Limits); err != nil {
			return result.RunResult{}, appErr.Wrapf(err, appErr.ExecutionInfraError, "apply cgroup limits failed")
		}
		cgroupPath = path
	}

	// Wait returns at process exit because the child writes to *os.File
	// pipes; stray children holding them open do not stretch the wall time.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return result.RunResult{}, appErr.Wrapf(err, appErr.ExecutionInfraError, "create stdout pipe failed")
	}
	defer stdoutR.Close()
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		_ = stdoutW.Close()
		return result.RunResult{}, appErr.Wrapf(err, appErr.ExecutionInfraError, "create stderr pipe failed")
	}
	defer stderrR.Close()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	start := time.Now()
	startErr := cmd.Start()
	_ = stdoutW.Close()
	_ = stderrW.Close()
	if startErr != nil {
		return result.RunResult{}, appErr.Wrapf(startErr, appErr.ExecutionInfraError, "start process failed").
			WithDetail("command", runSpec.Cmd[0])
	}
	pid := cmd.Process.Pid

	var copies sync.WaitGroup
	copies.Add(2)
	go drainPipe(&copies, stdout, stdoutR)
	go drainPipe(&copies, stderr, stderrR)

	// The limit lands just after exec; allocations in that window are not capped.
	if runSpec.Limits.MemoryMB > 0 && cgroupPath == "" {
		if err := applyMemoryLimit(pid, runSpec.Limits.MemoryMB); err != nil {
			logger.Warn(ctx, "apply memory limit failed", zap.Int("pid", pid), zap.Error(err))
		}
	}
	if cgroupPath != "" {
		if err := addProcessToCgroup(cgroupPath, pid); err != nil {
			logger.Warn(ctx, "add process to cgroup failed", zap.String("cgroup", cgroupPath), zap.Error(err))
		}
	}

	var timedOut, canceled, outputExceeded atomic.Bool
	done := make(chan struct{})
	go func() {
		var wallTimer <-chan time.Time
		if wallLimit := durationFromMs(runSpec.Limits.WallTimeMs); wallLimit > 0 {
			timer := time.NewTimer(wallLimit)
			defer timer.Stop()
			wallTimer = timer.C
		}
		select {
		case <-ctx.Done():
			canceled.Store(true)
			killProcessGroup(pid)
		case <-wallTimer:
			timedOut.Store(true)
			killProcessGroup(pid)
		case <-exceeded:
			outputExceeded.Store(true)
			killProcessGroup(pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	wallTime := time.Since(start)
	close(done)
	// Reap anything the program left running in its group.
	killProcessGroup(pid)
	awaitDrain(&copies, stdoutR, stderrR)

	state := cmd.ProcessState
	if state == nil {
		return result.RunResult{}, appErr.Wrapf(waitErr, appErr.ExecutionInfraError, "wait process failed")
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		logger.Warn(ctx, "process wait returned error", zap.Int("pid", pid), zap.Error(waitErr))
	}

	return result.RunResult{
		ExitCode:       state.ExitCode(),
		Signal:         signalName(state),
		Stdout:         stdout.String(),
		Stderr:         stderr.String(),
		CPUTimeMs:      cpuTimeMs(state),
		WallTimeMs:     wallTime.Milliseconds(),
		MemoryKB:       memoryPeakKB(cgroupPath, state),
		TimedOut:       timedOut.Load(),
		OutputExceeded: outputExceeded.Load() || stdout.Exceeded(),
		OomKilled:      wasOomKilled(cgroupPath),
		Canceled:       canceled.Load(),
	}, nil
}

func (e *linuxEngine) buildEnv(runSpec spec.RunSpec) []string {
	env := []string{
		"PATH=" + e.cfg.PathEnv,
		"HOME=" + runSpec.WorkDir,
		"TMPDIR=" + runSpec.WorkDir,
		"LANG=C.UTF-8",
	}
	return append(env, runSpec.Env...)
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if len(runSpec.Cmd) == 0 || runSpec.Cmd[0] == "" {
		return fmt.Errorf("command is required")
	}
	if runSpec.WorkDir == "" {
		return fmt.Errorf("work dir is required")
	}
	return nil
}

func applyMemoryLimit(pid int, memoryMB int64) error {
	limit := uint64(memoryMB) * 1024 * 1024
	return unix.Prlimit(pid, unix.RLIMIT_AS, &unix.Rlimit{Cur: limit, Max: limit}, nil)
}

func drainPipe(wg *sync.WaitGroup, dst io.Writer, src *os.File) {
	defer wg.Done()
	_, _ = io.Copy(dst, src)
}

// awaitDrain waits for the readers, closing the pipes once drainDelay passes.
func awaitDrain(wg *sync.WaitGroup, pipes ...*os.File) {
	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	timer := time.NewTimer(drainDelay)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		for _, p := range pipes {
			_ = p.Close()
		}
		<-drained
	}
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = unix.Kill(-pid, unix.SIGKILL)
}

func signalName(state *os.ProcessState) string {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	return unix.SignalName(ws.Signal())
}

func cpuTimeMs(state *os.ProcessState) int64 {
	return (state.UserTime() + state.SystemTime()).Milliseconds()
}

func durationFromMs(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
