package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// terminateGrace is how long Close waits for the process to exit after a
// terminate signal before killing it.
const terminateGrace = 5 * time.Second

// maxResponseSize bounds a single response line read from the bridge.
const maxResponseSize = 10 * 1024 * 1024

// SubprocessConnection runs the bridge as a child process and exchanges
// one JSON envelope per line over its stdin/stdout. Stderr is forwarded
// to the logger.
//
// Requests are serialized: one Invoke runs at a time. The bridge protocol
// answers requests in order, but responses are still matched by ID so a
// late answer to an abandoned request cannot be misattributed.
type SubprocessConnection struct {
	command string
	args    []string
	logger  *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	scanner *bufio.Scanner
	alive   bool
}

// NewSubprocessConnection creates a connection that will run the given
// command. The process is not started until Connect.
func NewSubprocessConnection(command string, args []string, logger *slog.Logger) *SubprocessConnection {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubprocessConnection{
		command: command,
		args:    args,
		logger:  logger,
	}
}

// Connect starts the bridge process. Connecting an already live session
// is a no-op, so callers can invoke it defensively before every request.
func (c *SubprocessConnection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.alive {
		return nil
	}

	cmd := exec.Command(c.command, c.args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("bridge stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("bridge stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("bridge stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start bridge process %s: %w", c.command, err)
	}

	go c.forwardStderr(stderr)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxResponseSize)

	c.cmd = cmd
	c.stdin = stdin
	c.scanner = scanner
	c.alive = true

	c.logger.Info("bridge process started",
		slog.String("command", c.command),
		slog.Int("pid", cmd.Process.Pid))

	return nil
}

// Invoke sends one request and blocks until its response arrives, the
// process dies, or the context is canceled.
func (c *SubprocessConnection) Invoke(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.alive {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := Request{
		ID:     uuid.NewString(),
		Method: method,
		Params: params,
	}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode bridge request: %w", err)
	}
	line = append(line, '\n')

	if _, err := c.stdin.Write(line); err != nil {
		c.shutdownLocked()
		return nil, fmt.Errorf("write to bridge: %w", err)
	}

	for {
		if !c.scanner.Scan() {
			c.shutdownLocked()
			if scanErr := c.scanner.Err(); scanErr != nil {
				return nil, fmt.Errorf("read from bridge: %w", scanErr)
			}
			return nil, ErrBridgeClosed
		}

		var resp Response
		if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
			c.logger.Warn("bridge emitted unparseable line",
				slog.String("line", c.scanner.Text()))
			continue
		}
		if resp.ID != req.ID {
			c.logger.Warn("bridge response for unknown request, skipping",
				slog.String("expected", req.ID),
				slog.String("got", resp.ID))
			continue
		}

		if resp.Error != nil {
			return nil, &ClientError{
				Method:  method,
				Code:    resp.Error.Code,
				Message: resp.Error.Message,
			}
		}
		return resp.Result, nil
	}
}

// Connected reports whether the bridge process is running.
func (c *SubprocessConnection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

// Close terminates the bridge process, first politely, then by force.
// Closing an already closed connection is a no-op.
func (c *SubprocessConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.alive {
		return nil
	}

	cmd := c.cmd
	c.shutdownLocked()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(terminateGrace):
		c.logger.Warn("bridge process did not exit, killing",
			slog.Int("pid", cmd.Process.Pid))
		if err := cmd.Process.Kill(); err != nil {
			return fmt.Errorf("kill bridge process: %w", err)
		}
		<-done
	}

	return nil
}

// shutdownLocked marks the session dead and closes stdin so the child
// sees EOF and can exit on its own. Callers must hold c.mu.
func (c *SubprocessConnection) shutdownLocked() {
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	c.alive = false
	c.stdin = nil
	c.scanner = nil
}

func (c *SubprocessConnection) forwardStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		c.logger.Debug("bridge stderr", slog.String("line", scanner.Text()))
	}
}
