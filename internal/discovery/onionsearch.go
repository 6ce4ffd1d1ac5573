package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Request describes one discovery run.
type Request struct {
	Query        string
	PerEngineCap int
	ProxyAddress string
	OutputPath   string
	// Engines restricts the search; empty lets the tool decide.
	Engines []string
}

// Discoverer produces a discovery artifact at Request.OutputPath.
type Discoverer interface {
	Discover(ctx context.Context, req Request) error
}

// maxStderr caps how much tool stderr is kept for error messages.
const maxStderr = 2048

// OnionSearch runs the onionsearch command line tool.
type OnionSearch struct {
	command string
	logger  *slog.Logger
}

// NewOnionSearch returns a Discoverer invoking command (usually "onionsearch").
func NewOnionSearch(command string, logger *slog.Logger) *OnionSearch {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnionSearch{command: command, logger: logger}
}

// Args returns the tool arguments for req.
func (o *OnionSearch) Args(req Request) []string {
	args := []string{
		req.Query,
		"--proxy", req.ProxyAddress,
		"--output", req.OutputPath,
		"--limit", strconv.Itoa(req.PerEngineCap),
	}
	if len(req.Engines) > 0 {
		args = append(args, "--engines")
		args = append(args, req.Engines...)
	}
	return args
}

// Discover runs the tool and waits for it. A failure to start, a non-zero
// exit, or a missing output file is reported as ErrDiscoveryTool.
func (o *OnionSearch) Discover(ctx context.Context, req Request) error {
	cmd := exec.CommandContext(ctx, o.command, o.Args(req)...) //nolint:gosec // command comes from the operator's config
	var stderr, stdout bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stdout

	o.logger.Info("running discovery", "command", o.command, "query", req.Query, "per_engine_cap", req.PerEngineCap)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrDiscoveryTool, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w: %s exited with code %d: %s", ErrDiscoveryTool, o.command, exitErr.ExitCode(), tail(stderr.String()))
		}
		return fmt.Errorf("%w: %w", ErrDiscoveryTool, err)
	}
	o.logger.Debug("discovery finished", "stdout_bytes", stdout.Len())

	if _, err := os.Stat(req.OutputPath); err != nil {
		return fmt.Errorf("%w: no output written to %s", ErrDiscoveryTool, req.OutputPath)
	}
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = "..." + s[len(s)-maxStderr:]
	}
	return s
}
