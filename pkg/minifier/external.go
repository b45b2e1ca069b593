package minifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultTimeout = 30 * time.Second

// ProcessError describes a failed run of an external compressor.
type ProcessError struct {
	Command  string
	ExitCode int
	Stderr   string
	Stdout   string
	Err      error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, strings.TrimSpace(strings.TrimSpace(e.Stderr)+"\n\n"+strings.TrimSpace(e.Stdout)))
}

func (e *ProcessError) Unwrap() error { return e.Err }

func (e *ProcessError) Is(target error) bool { return target == ErrProcess }

// External pipes source through a command such as YUI Compressor. The
// command is invoked as: <command...> --type <css|js> <options...>
type External struct {
	command []string
	options []string
	timeout time.Duration
}

func NewExternal(cfg Config) (*External, error) {
	command := strings.Fields(cfg.Command)
	if len(command) == 0 {
		return nil, fmt.Errorf("%w: %s compressor needs a command", ErrUnknownType, cfg.Type)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &External{
		command: command,
		options: strings.Fields(cfg.Options),
		timeout: timeout,
	}, nil
}

func (e *External) Minify(ctx context.Context, ct CodeType, source string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append([]string{}, e.command[1:]...)
	args = append(args, "--type", string(ct))
	args = append(args, e.options...)

	cmd := exec.CommandContext(ctx, e.command[0], args...)
	cmd.Stdin = strings.NewReader(source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// don't wait forever on grandchildren still holding the pipes
	cmd.WaitDelay = time.Second

	log.Trace().Str("command", cmd.String()).Int("bytes", len(source)).Msg("Running compressor")
	if err := cmd.Run(); err != nil {
		perr := &ProcessError{
			Command:  cmd.String(),
			ExitCode: -1,
			Stderr:   stderr.String(),
			Stdout:   stdout.String(),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			perr.ExitCode = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			perr.Err = fmt.Errorf("%w: %w", err, ctx.Err())
		}
		return "", perr
	}
	return stdout.String(), nil
}
