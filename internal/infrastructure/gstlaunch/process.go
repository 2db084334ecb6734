//go:build linux

package gstlaunch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	// killGrace is the time between SIGTERM and SIGKILL.
	killGrace = 3 * time.Second
	// pipeGrace is how long the second pipe may stay open after the first
	// one closed before the process is considered stalled.
	pipeGrace = 50 * time.Millisecond
)

// process encapsulates a supervised gst-launch command.
// Features:
//   - race-free pipe setup (stdout/stderr)
//   - line callback for every output line
//   - deterministic teardown (SIGTERM → grace → SIGKILL)
//   - idempotent Start / Close lifecycle
//
// Canonical usage:
//
//	p → Start() → lines via onLine → <-Done() → ExitErr()
type process struct {
	log    *zap.Logger
	onLine func(string)

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser

	// Closed after the process is fully reaped.
	done      chan struct{}
	closeOnce sync.Once
	exitErr   error
	pid       int
}

// newProcess allocates pipes and applies Linux-specific attributes:
//   - Setpgid: isolates the child into its own process group
//   - Pdeathsig: ensures child receives SIGKILL if the parent dies
func newProcess(log *zap.Logger, env, argv []string, onLine func(string)) (*process, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty argv")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	stdout, stderr, err := pipes(cmd)
	if err != nil {
		return nil, err
	}

	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}

	return &process{
		log:    log,
		onLine: onLine,
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		done:   make(chan struct{}),
	}, nil
}

// Start launches the command. Done() fires when the process is reaped.
func (p *process) Start() error {
	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.cmd.Path, err)
	}
	p.pid = p.cmd.Process.Pid
	p.log.Info("process started", zap.Int("cmd_pid", p.pid))
	go p.supervise()
	return nil
}

func (p *process) Done() <-chan struct{} { return p.done }

// ExitErr describes how the process ended. Valid after Done().
func (p *process) ExitErr() error { return p.exitErr }

// supervise drains both pipes, reaps the child once and fires Done().
//
// On Linux, pipe closure frequently precedes actual process exit. A
// bounded grace interval is applied before a lingering pipe is treated as
// a stalled process.
func (p *process) supervise() {
	pipeDone := make(chan struct{}, 2)
	go func() {
		p.drain(p.stdout, "stdout")
		pipeDone <- struct{}{}
	}()
	go func() {
		p.drain(p.stderr, "stderr")
		pipeDone <- struct{}{}
	}()

	<-pipeDone
	ctx, cancel := context.WithTimeout(context.Background(), pipeGrace)
	select {
	case <-pipeDone:
	case <-ctx.Done():
		p.log.Warn("second pipe did not close in grace interval; issuing shutdown")
		p.Close()
		<-pipeDone
	}
	cancel()

	err := p.cmd.Wait()
	var eerr *exec.ExitError
	switch {
	case err == nil:
		p.exitErr = errors.New("gst-launch exited")
		p.log.Info("process exited cleanly")
	case errors.As(err, &eerr):
		status := eerr.ProcessState.Sys().(syscall.WaitStatus)
		if status.Signaled() {
			p.exitErr = fmt.Errorf("gst-launch killed by %s", status.Signal())
		} else {
			p.exitErr = fmt.Errorf("gst-launch exited with status %d", status.ExitStatus())
		}
		p.log.Info("process exited with error status",
			zap.Int("exit_code", status.ExitStatus()),
			zap.Bool("signaled", status.Signaled()))
	default:
		p.exitErr = err
		p.log.Error("failed to wait for process", zap.Error(err))
	}
	close(p.done)
}

func (p *process) drain(r io.Reader, name string) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		p.onLine(strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		p.log.Error("pipe scanner failure", zap.String("pipe", name), zap.Error(err))
	}
}

// Close sends SIGTERM to the process group and escalates to SIGKILL
// after killGrace. Idempotent and concurrency-safe.
func (p *process) Close() {
	p.closeOnce.Do(func() {
		go func() {
			select {
			case <-p.done:
				return
			default:
			}

			if err := syscall.Kill(-p.pid, syscall.SIGTERM); err != nil {
				p.log.Warn("SIGTERM failed", zap.Error(err), zap.Int("cmd_pid", p.pid))
			}

			timer := time.NewTimer(killGrace)
			defer timer.Stop()

			select {
			case <-p.done:
			case <-timer.C:
				p.log.Warn("grace timeout expired; sending SIGKILL", zap.Int("cmd_pid", p.pid))
				if err := syscall.Kill(-p.pid, syscall.SIGKILL); err != nil {
					p.log.Error("SIGKILL failed", zap.Error(err), zap.Int("cmd_pid", p.pid))
				}
			}
		}()
	})
}

// pipes prepares stdout and stderr. If one pipe fails the other is
// closed so no file descriptors leak.
func pipes(cmd *exec.Cmd) (io.ReadCloser, io.ReadCloser, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe creation failure: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdout.Close()
		return nil, nil, fmt.Errorf("stderr pipe creation failure: %w", err)
	}

	return stdout, stderr, nil
}
