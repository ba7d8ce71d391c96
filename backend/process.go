package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"Bobine/logger"
)

// EndOfResponse terminates every response of the interactive protocol.
const EndOfResponse = "<<<END_RESPONSE>>>"

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// conn speaks the line protocol: one tab-separated request line, answered by
// a JSON line followed by EndOfResponse.
type conn struct {
	w io.Writer
	r *bufio.Reader
}

func newConn(w io.Writer, r io.Reader) *conn {
	return &conn{w: w, r: bufio.NewReader(r)}
}

func encodeRequest(action string, args []string) (string, error) {
	fields := append([]string{action}, args...)
	for _, f := range fields {
		if strings.ContainsAny(f, "\t\r\n") {
			return "", fmt.Errorf("%w: %q", ErrInvalidArgument, f)
		}
	}
	return strings.Join(fields, "\t") + "\n", nil
}

func (c *conn) call(action string, args []string) (json.RawMessage, error) {
	req, err := encodeRequest(action, args)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(c.w, req); err != nil {
		return nil, fmt.Errorf("%w: write: %v", ErrBackendUnavailable, err)
	}

	var last string
	for {
		line, err := c.r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == EndOfResponse {
			break
		}
		if strings.TrimSpace(line) != "" {
			last = line
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read: %v", ErrBackendUnavailable, err)
		}
	}

	var env envelope
	if err := json.Unmarshal([]byte(last), &env); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, action, err)
	}
	if env.Error != nil {
		return nil, &ActionError{Action: action, Message: *env.Error}
	}
	return env.Result, nil
}

// Process runs the Python data processor in interactive mode and serializes
// calls to it. The process is started on first use and restarted after it
// dies or a call is cancelled mid-response.
type Process struct {
	Command []string
	Dir     string
	Env     []string

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
	conn  *conn
}

func (p *Process) start() error {
	if len(p.Command) == 0 {
		return fmt.Errorf("%w: no command configured", ErrBackendUnavailable)
	}
	cmd := exec.Command(p.Command[0], p.Command[1:]...)
	cmd.Dir = p.Dir
	cmd.Env = p.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	go func() {
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			logger.Debug("backend: %s", sc.Text())
		}
	}()

	logger.Info("backend started (pid %d)", cmd.Process.Pid)
	p.cmd = cmd
	p.stdin = stdin
	p.conn = newConn(stdin, stdout)
	return nil
}

func (p *Process) stopLocked() {
	if p.cmd == nil {
		return
	}
	_ = p.stdin.Close()
	_ = p.cmd.Process.Kill()
	_ = p.cmd.Wait()
	p.cmd = nil
	p.stdin = nil
	p.conn = nil
}

// Call sends one action and returns the "result" member of the response.
func (p *Process) Call(ctx context.Context, action string, args ...string) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.conn == nil {
		if err := p.start(); err != nil {
			return nil, err
		}
	}

	type reply struct {
		res json.RawMessage
		err error
	}
	done := make(chan reply, 1)
	c := p.conn
	go func() {
		res, err := c.call(action, args)
		done <- reply{res, err}
	}()

	select {
	case r := <-done:
		if errors.Is(r.err, ErrBackendUnavailable) || errors.Is(r.err, ErrMalformedResponse) {
			logger.WarnWithError(r.err, "backend %s failed, restarting on next call", action)
			p.stopLocked()
		}
		return r.res, r.err
	case <-ctx.Done():
		logger.Warn("backend %s cancelled, stopping process", action)
		p.stopLocked()
		<-done
		return nil, ctx.Err()
	}
}

// Running reports whether the process is currently started.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil
}

// Close stops the process.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}
