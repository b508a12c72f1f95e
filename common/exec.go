package common

import (
	"bytes"
	"context"
	"os"
	"os/exec"
)

// Runner is the boundary for every external command the tool invokes
// (package managers, make, ldconfig, lsblk, the installed lz4 binary, the
// generated demo script). All invocations are synchronous; tests substitute
// fakes that record argv.
type Runner interface {
	// Run executes name with args, streaming output to the process's
	// stdout/stderr, and returns the command's error.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes name with args and returns captured stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct{}

func NewRunner() Runner { return execRunner{} }

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func (execRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	return out.String(), err
}
