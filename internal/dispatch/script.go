package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tidelab/swell/internal/config"
	"github.com/tidelab/swell/internal/errors"
)

// scriptKillGrace is how long a cancelled executor command gets to exit
// before it is killed outright.
const scriptKillGrace = 5 * time.Second

// commandRunner executes a shell command with the given stdin and returns
// its stdout. It exists so tests can substitute the process boundary.
type commandRunner func(ctx context.Context, command, dir string, stdin []byte) ([]byte, error)

// defaultRunner runs commands through the system shell.
var defaultRunner commandRunner = func(ctx context.Context, command, dir string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.WaitDelay = scriptKillGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// ScriptExecutor runs a configured shell command once per work item. The
// request is written to the command's stdin as JSON and the result is read
// back from its stdout, also as JSON. A non-zero exit or undecodable output
// counts as worker failure.
//
// This is the development-mode executor. Production deployments implement
// Executor directly against whatever runs their workers.
type ScriptExecutor struct {
	command string
	workDir string
	run     commandRunner
}

// NewScriptExecutor creates an executor for the configured command.
func NewScriptExecutor(cfg config.ExecutorConfig) (*ScriptExecutor, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("%w: executor command is empty", errors.ErrInvalidInput)
	}
	return &ScriptExecutor{
		command: cfg.Command,
		workDir: cfg.WorkDir,
		run:     defaultRunner,
	}, nil
}

// Execute runs the command for one work item.
func (e *ScriptExecutor) Execute(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	out, err := e.run(ctx, e.command, e.workDir, payload)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("%w: %v", errors.ErrWorkerFailed, err)
	}

	var res Result
	if err := json.Unmarshal(bytes.TrimSpace(out), &res); err != nil {
		return Result{}, fmt.Errorf("%w: undecodable executor output: %v", errors.ErrWorkerFailed, err)
	}
	if !res.Status.IsValid() {
		return Result{}, fmt.Errorf("%w: executor reported unknown status %q", errors.ErrWorkerFailed, res.Status)
	}
	return res, nil
}

var _ Executor = (*ScriptExecutor)(nil)
