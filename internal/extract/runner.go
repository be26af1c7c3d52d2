package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"tigrinya.news/pipeline/common/logger"
)

type Command struct {
	Name string
	Args []string
	Dir  string
}

// CommandRunner lets tests stub the poppler binaries.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands on the host and returns stdout. A failing command's
// stderr is folded into the error.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	start := time.Now()

	command := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	if cmd.Dir != "" {
		command.Dir = cmd.Dir
	}
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	err := command.Run()
	dur := time.Since(start)
	if err != nil {
		msg := logger.Truncate(strings.TrimSpace(stderr.String()), 2000)
		slog.ErrorContext(ctx, "exec failed",
			"cmd", cmd.Name,
			"args", strings.Join(cmd.Args, " "),
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", msg)
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", cmd.Name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", cmd.Name, err)
	}

	slog.DebugContext(ctx, "exec ok",
		"cmd", cmd.Name,
		"duration_ms", dur.Milliseconds(),
		"stdout_bytes", stdout.Len())
	return stdout.Bytes(), nil
}
