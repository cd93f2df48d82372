// Package stdio implements the persistent-pipe transport: a child process
// spoken to over its stdin/stdout with newline-framed JSON messages. Closing
// the process is equivalent to closing the transport.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/toolproto/mcpc/jsonrpc"
	"github.com/toolproto/mcpc/jsonrpc/transport"
)

// Option configures a Transport.
type Option func(*Transport)

// WithArguments sets the child process arguments.
func WithArguments(args ...string) Option {
	return func(t *Transport) {
		t.args = args
	}
}

// WithEnv appends environment entries for the child process.
func WithEnv(env ...string) Option {
	return func(t *Transport) {
		t.env = env
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// Transport is a child-process pipe channel.
type Transport struct {
	command string
	args    []string
	env     []string
	logger  *slog.Logger

	cmd    *exec.Cmd
	writer io.WriteCloser

	writeMu sync.Mutex

	messages chan *jsonrpc.Message
	done     chan struct{}

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

// New creates a stdio transport that will run the given command.
func New(command string, options ...Option) *Transport {
	ret := &Transport{
		command:  command,
		logger:   slog.Default(),
		messages: make(chan *jsonrpc.Message, 16),
		done:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Open starts the child process and begins reading its stdout.
func (t *Transport) Open(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, t.command, t.args...)
	if len(t.env) > 0 {
		cmd.Env = append(cmd.Environ(), t.env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return transport.NewFailure(fmt.Errorf("failed to start %q: %w", t.command, err))
	}
	t.cmd = cmd
	t.writer = stdin
	go t.readLoop(stdout)
	return nil
}

// Send writes one newline-framed message to the child's stdin.
func (t *Transport) Send(ctx context.Context, msg *jsonrpc.Message) error {
	select {
	case <-t.done:
		return ErrOrClosed(t.Err())
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	data, err := marshalFrame(msg)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.writer.Write(data); err != nil {
		return transport.NewFailure(fmt.Errorf("failed to write frame: %w", err))
	}
	return nil
}

// Messages returns the inbound stream read from the child's stdout.
func (t *Transport) Messages() <-chan *jsonrpc.Message {
	return t.messages
}

// Err returns the terminal failure, if any.
func (t *Transport) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

// Close terminates the child process.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		if t.writer != nil {
			_ = t.writer.Close()
		}
		if t.cmd != nil && t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
			_ = t.cmd.Wait()
		}
	})
	return nil
}

func (t *Transport) readLoop(reader io.Reader) {
	defer close(t.messages)

	// bufio.Reader rather than Scanner: frames may exceed the scanner token limit.
	buffered := bufio.NewReader(reader)
	for {
		line, err := buffered.ReadBytes('\n')
		if err != nil {
			select {
			case <-t.done:
				// clean close, no terminal error
			default:
				if err != io.EOF {
					t.setErr(transport.NewFailure(fmt.Errorf("failed to read frame: %w", err)))
				} else {
					t.setErr(transport.NewFailure(fmt.Errorf("process closed its output: %w", err)))
				}
			}
			return
		}
		if len(line) <= 1 {
			continue
		}
		msg, err := jsonrpc.Parse(line)
		if err != nil {
			// Malformed inbound frames are logged and dropped, never fatal.
			t.logger.Error("dropping malformed message", "err", err)
			continue
		}
		select {
		case t.messages <- msg:
		case <-t.done:
			return
		}
	}
}

func (t *Transport) setErr(err error) {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.err == nil {
		t.err = err
	}
}

func marshalFrame(msg *jsonrpc.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return append(data, '\n'), nil
}

// ErrOrClosed prefers the terminal failure over the generic closed error.
func ErrOrClosed(err error) error {
	if err != nil {
		return err
	}
	return transport.ErrClosed
}
