package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
)

// CommandRunner invokes an external build tool in a working directory
// and returns its combined output. Implementations block until the
// subprocess exits; cancellation does not forcibly terminate it.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
	LookPath(name string) error
}

// NewRunner returns the exec-backed runner. When stream is true the
// subprocess output is mirrored to stdout in real time so the operator
// can act on interactive prompts.
func NewRunner(stream bool) CommandRunner {
	return &execRunner{stream: stream}
}

type execRunner struct {
	stream bool
}

func (r *execRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var buf bytes.Buffer
	if r.stream {
		cmd.Stdout = io.MultiWriter(os.Stdout, &buf)
		cmd.Stderr = io.MultiWriter(os.Stderr, &buf)
	} else {
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	}

	if err := cmd.Run(); err != nil {
		return buf.String(), fmt.Errorf("%s %v: %w", name, args, err)
	}
	return buf.String(), nil
}

func (r *execRunner) LookPath(name string) error {
	_, err := exec.LookPath(name)
	return err
}

// requireTool fails with a targeted build error when the platform's
// build tool is not installed.
func requireTool(runner CommandRunner, tool, installHint string) error {
	if err := runner.LookPath(tool); err != nil {
		return errdefs.Wrap(errdefs.KindBuild, "build.requireTool",
			tool+" was not found on PATH", err).
			WithContext("tool", tool).
			WithMitigation(installHint, "re-run the deployment after installing it")
	}
	return nil
}
