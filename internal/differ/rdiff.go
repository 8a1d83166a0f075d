package differ

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ToolError is returned when the diff tool exits with a non-zero status.
type ToolError struct {
	Tool     string
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s %s: exit status %d", e.Tool, e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s %s: %s", e.Tool, e.Command, e.Stderr)
}

// Rdiff runs the librsync `rdiff` command line tool.
type Rdiff struct {
	path string
}

func NewRdiff(path string) *Rdiff {
	if path == "" {
		path = KindRdiff
	}
	return &Rdiff{path: path}
}

func (r *Rdiff) Signature(ctx context.Context, file, signaturePath string) error {
	if err := prepareOutput(signaturePath); err != nil {
		return err
	}
	return r.run(ctx, "signature", file, signaturePath)
}

func (r *Rdiff) Delta(ctx context.Context, signaturePath, file, deltaPath string) error {
	if err := prepareOutput(deltaPath); err != nil {
		return err
	}
	return r.run(ctx, "delta", signaturePath, file, deltaPath)
}

func (r *Rdiff) Patch(ctx context.Context, basePath, deltaPath, outputPath string) error {
	if err := prepareOutput(outputPath); err != nil {
		return err
	}
	return r.run(ctx, "patch", basePath, deltaPath, outputPath)
}

func (r *Rdiff) run(ctx context.Context, command string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.path, append([]string{command}, args...)...)
	cmd.Stderr = &stderr

	slog.Debug("rdiff", "cmd", command, "args", args)
	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ToolError{
			Tool:     r.path,
			Command:  command,
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}
	// binary missing or not executable
	return fmt.Errorf("run %s %s: %w", r.path, command, err)
}
