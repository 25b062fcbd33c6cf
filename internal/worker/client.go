package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultStartTimeout bounds how long Start waits for the readiness line.
const DefaultStartTimeout = 10 * time.Second

// Client owns one worker subprocess. Correlation is positional: the Nth
// response line answers the Nth request line, so a single pending queue
// replaces request IDs. A caller that gives up on its slot abandons it
// rather than removing it, keeping later slots aligned.
type Client struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	ready Readiness

	mu      sync.Mutex
	pending []*pendingCall
	closed  bool

	done     chan struct{}
	exitErr  error
	killOnce sync.Once
}

type pendingCall struct {
	ch        chan *Response
	abandoned bool
}

// Start launches the worker command and waits for its readiness line.
// startTimeout <= 0 uses DefaultStartTimeout. The child's stderr passes
// through so its logs stay visible.
func Start(ctx context.Context, startTimeout time.Duration, command string, args ...string) (*Client, error) {
	if startTimeout <= 0 {
		startTimeout = DefaultStartTimeout
	}

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, eris.Wrap(err, "worker: stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, eris.Wrap(err, "worker: stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, eris.Wrapf(err, "worker: start %s", command)
	}

	c := &Client{
		cmd:   cmd,
		stdin: stdin,
		done:  make(chan struct{}),
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	readyCh := make(chan error, 1)
	go func() {
		if !scanner.Scan() {
			readyCh <- eris.Wrap(scanner.Err(), "worker: process exited before readiness")
			return
		}
		var ready Readiness
		if err := json.Unmarshal(scanner.Bytes(), &ready); err != nil {
			readyCh <- eris.Wrap(err, "worker: malformed readiness line")
			return
		}
		if !ready.OK || ready.Status != "ready" {
			readyCh <- eris.Errorf("worker: not ready: status %q", ready.Status)
			return
		}
		c.ready = ready
		readyCh <- nil
	}()

	select {
	case err := <-readyCh:
		if err != nil {
			c.Kill()
			return nil, err
		}
	case <-time.After(startTimeout):
		c.Kill()
		return nil, eris.Errorf("worker: no readiness line within %s", startTimeout)
	case <-ctx.Done():
		c.Kill()
		return nil, eris.Wrap(ctx.Err(), "worker: start cancelled")
	}

	go c.readLoop(scanner)
	return c, nil
}

// Ready returns the readiness line the worker announced.
func (c *Client) Ready() Readiness {
	return c.ready
}

// Call sends one request and waits for its slot's response. A cancelled
// context abandons the slot; the eventual response line is consumed and
// discarded so later calls stay correlated.
func (c *Client) Call(ctx context.Context, tool string, args any) (json.RawMessage, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, eris.Wrap(err, "worker: marshal args")
	}
	line, err := json.Marshal(Request{Tool: tool, Args: payload})
	if err != nil {
		return nil, eris.Wrap(err, "worker: marshal request")
	}

	call := &pendingCall{ch: make(chan *Response, 1)}

	// Enqueue and write under one lock so queue order matches wire order.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, c.exitError()
	}
	c.pending = append(c.pending, call)
	_, werr := c.stdin.Write(append(line, '\n'))
	if werr != nil {
		// The request never reached the wire; drop the slot so any later
		// response line cannot complete it and misalign the queue.
		c.pending = c.pending[:len(c.pending)-1]
		c.mu.Unlock()
		return nil, eris.Wrapf(werr, "worker: send %s", tool)
	}
	c.mu.Unlock()

	select {
	case resp, ok := <-call.ch:
		if !ok {
			return nil, c.exitError()
		}
		if !resp.OK {
			return nil, eris.Errorf("worker: %s: %s", tool, resp.Error)
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.mu.Lock()
		call.abandoned = true
		c.mu.Unlock()
		return nil, eris.Wrapf(ctx.Err(), "worker: %s abandoned", tool)
	}
}

// Kill terminates the worker. Safe to call more than once and after exit.
func (c *Client) Kill() {
	c.killOnce.Do(func() {
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		_ = c.stdin.Close()
	})
}

// Wait blocks until the worker's output is fully drained.
func (c *Client) Wait() error {
	<-c.done
	return c.exitErr
}

// readLoop delivers each response line to the oldest pending slot. When the
// stream ends it rejects every remaining slot with the exit status.
func (c *Client) readLoop(scanner *bufio.Scanner) {
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			zap.L().Warn("worker: discarding malformed response line", zap.Error(err))
			continue
		}

		c.mu.Lock()
		if len(c.pending) == 0 {
			c.mu.Unlock()
			zap.L().Warn("worker: response with no pending request")
			continue
		}
		call := c.pending[0]
		c.pending = c.pending[1:]
		abandoned := call.abandoned
		c.mu.Unlock()

		if abandoned {
			continue
		}
		call.ch <- &resp
	}

	waitErr := c.cmd.Wait()

	c.mu.Lock()
	c.closed = true
	if waitErr != nil {
		c.exitErr = eris.Wrap(waitErr, "worker: process exited")
	} else {
		c.exitErr = eris.New("worker: process exited")
	}
	remaining := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, call := range remaining {
		close(call.ch)
	}
	close(c.done)
}

func (c *Client) exitError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exitErr != nil {
		return c.exitErr
	}
	return eris.New("worker: process exited")
}
