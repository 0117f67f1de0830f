package stt

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// ExecEngine runs a recognizer as a child process that speaks the step
// protocol as JSON lines on stdin and stdout. Its stderr is relayed to
// the logger line by line. Each decoder gets its own process.
type ExecEngine struct {
	Command string
	Args    []string
	Env     []string
	Logger  *log.Logger
}

func (e *ExecEngine) NewDecoder(ctx context.Context, params Params) (Decoder, error) {
	if e.Command == "" {
		return nil, errors.New("exec engine: no command configured")
	}
	logger := e.Logger
	if logger == nil {
		logger = log.Default()
	}

	cmd := exec.CommandContext(ctx, e.Command, e.Args...)
	cmd.Env = append(os.Environ(), e.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", e.Command, err)
	}
	logger.Debug("engine started", "command", e.Command, "pid", cmd.Process.Pid)

	g := new(errgroup.Group)
	g.Go(func() error {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Info(scanner.Text())
		}
		return scanner.Err()
	})

	t := &pipeTransport{
		enc: json.NewEncoder(stdin),
		dec: json.NewDecoder(bufio.NewReader(stdout)),
		shutdown: func() error {
			stdin.Close()
			relayErr := g.Wait()
			if err := cmd.Wait(); err != nil {
				return fmt.Errorf("engine process: %w", err)
			}
			return relayErr
		},
	}

	dec, err := handshake(t, params)
	if err != nil {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		t.close()
		return nil, err
	}
	return dec, nil
}

// pipeTransport carries JSON lines over a pair of streams.
type pipeTransport struct {
	enc      *json.Encoder
	dec      *json.Decoder
	shutdown func() error
	closed   bool
}

func newPipeTransport(r io.Reader, w io.Writer) *pipeTransport {
	return &pipeTransport{
		enc: json.NewEncoder(w),
		dec: json.NewDecoder(r),
	}
}

func (p *pipeTransport) send(m message) error {
	return p.enc.Encode(m)
}

func (p *pipeTransport) recv() (message, error) {
	var m message
	if err := p.dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return m, errors.New("engine closed its output")
		}
		return m, err
	}
	return m, nil
}

func (p *pipeTransport) close() error {
	if p.closed || p.shutdown == nil {
		return nil
	}
	p.closed = true
	return p.shutdown()
}
