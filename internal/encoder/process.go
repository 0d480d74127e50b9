package encoder

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Process is a running encoder child. Exactly one goroutine consumes its
// stdout through Read; Wait reaps the child after Read returns io.EOF. The
// child gets no stdin and its stderr is discarded, so it can never block on
// anything but its stdout pipe.
type Process struct {
	binary string
	job    Job
	logger *slog.Logger

	cmd     *exec.Cmd
	stdout  io.ReadCloser
	started time.Time
	monitor *Monitor

	killed   atomic.Bool
	waitOnce sync.Once
	waitErr  error
}

// Start launches the encoder binary for the given job and returns once the
// child is running. Spawn failures surface here synchronously; everything
// after that is reported through Read and Wait.
func Start(binary string, job Job, logger *slog.Logger) (*Process, error) {
	cmd := exec.Command(binary, job.Args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("getting stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting encoder: %w", err)
	}

	p := &Process{
		binary:  binary,
		job:     job,
		logger:  logger,
		cmd:     cmd,
		stdout:  stdout,
		started: time.Now(),
		monitor: NewMonitor(cmd.Process.Pid),
	}
	p.monitor.Start()

	logger.Debug("encoder started",
		slog.Int("pid", cmd.Process.Pid),
		slog.String("command", p.String()))

	return p, nil
}

// String returns the full command line for logging.
func (p *Process) String() string {
	return p.binary + " " + strings.Join(p.job.Args(), " ")
}

// Read pulls encoded bytes from the child's stdout. It blocks until data
// arrives or the pipe closes. io.EOF alone does not mean success: a crashed
// child also closes the pipe, so the caller must consult Wait for the exit
// status.
func (p *Process) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

// Wait reaps the child and returns its exit status. It is safe to call
// more than once; later calls return the first result. Callers must drain
// stdout to io.EOF first or the child may be reaped mid-write.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		p.monitor.Stop()
	})
	return p.waitErr
}

// Kill terminates the child immediately. A pending Read unblocks with
// io.EOF or an error shortly after. Killing an already-reaped child is a
// no-op.
func (p *Process) Kill() error {
	if !p.killed.CompareAndSwap(false, true) {
		return nil
	}
	return p.cmd.Process.Kill()
}

// PID returns the child's process ID.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Duration returns how long the child has been running.
func (p *Process) Duration() time.Duration {
	return time.Since(p.started)
}

// Stats returns the latest resource usage sample for the child, or nil
// when sampling is unavailable.
func (p *Process) Stats() *ProcessStats {
	if p.monitor == nil {
		return nil
	}
	stats := p.monitor.Stats()
	return &stats
}
