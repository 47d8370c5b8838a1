// Package build runs the platform-specific build/restore/publish steps
// and produces a publish artifact directory ready for packaging.
package build

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
	"github.com/agentlaunch-dev/agentlaunch/pkg/models"
)

// Orchestrator dispatches to a per-platform build strategy. Build
// failures are user errors and are never retried.
type Orchestrator struct {
	runner CommandRunner
	logger *zap.Logger
}

func New(runner CommandRunner, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{runner: runner, logger: logger}
}

// strategy is the closed dispatch table entry for one platform.
type strategy struct {
	build func(ctx context.Context, o *Orchestrator, dcfg models.DeploymentConfiguration) error
	plan  func(dcfg models.DeploymentConfiguration) []string
}

var strategies = map[models.Platform]strategy{
	models.PlatformDotNet: {build: buildDotNet, plan: planDotNet},
	models.PlatformNodeJs: {build: buildNodeJs, plan: planNodeJs},
	models.PlatformPython: {build: buildPython, plan: planPython},
}

// Build runs the platform strategy and returns the publish artifact
// path. With Restart set it skips every build step and requires the
// publish output to already exist; a missing artifact fails closed.
func (o *Orchestrator) Build(ctx context.Context, dcfg models.DeploymentConfiguration, p models.Platform) (string, error) {
	if dcfg.Restart {
		if _, err := os.Stat(dcfg.PublishOutputPath); err != nil {
			return "", errdefs.Wrap(errdefs.KindBuild, "build.Restart",
				"no previous build output found at "+dcfg.PublishOutputPath, err).
				WithContext("publishOutputPath", dcfg.PublishOutputPath).
				WithMitigation("run a full build first (re-run the deploy command without --restart)")
		}
		o.logger.Info("reusing existing publish output",
			zap.String("path", dcfg.PublishOutputPath))
		return dcfg.PublishOutputPath, nil
	}

	s, ok := strategies[p]
	if !ok {
		return "", errdefs.New(errdefs.KindValidation, "build.Build",
			"no build strategy for platform "+p.String())
	}

	o.logger.Info("building project",
		zap.String("platform", p.String()),
		zap.String("projectPath", dcfg.ProjectPath))

	if err := os.MkdirAll(dcfg.PublishOutputPath, 0o755); err != nil {
		return "", errdefs.Wrap(errdefs.KindBuild, "build.Build",
			"cannot create publish output directory", err).
			WithContext("publishOutputPath", dcfg.PublishOutputPath)
	}

	if err := s.build(ctx, o, dcfg); err != nil {
		return "", err
	}
	return dcfg.PublishOutputPath, nil
}

// Plan returns the ordered steps Build would execute, for --dry-run
// output. No subprocess runs.
func (o *Orchestrator) Plan(dcfg models.DeploymentConfiguration, p models.Platform) []string {
	if dcfg.Restart {
		return []string{"reuse existing publish output at " + dcfg.PublishOutputPath}
	}
	s, ok := strategies[p]
	if !ok {
		return nil
	}
	return s.plan(dcfg)
}

// wrapStep turns a tool failure into a build error naming the step that
// failed so the CLI can give targeted guidance.
func wrapStep(step, output string, err error) error {
	e := errdefs.Wrap(errdefs.KindBuild, "build."+step, step+" step failed", err).
		WithContext("step", step)
	if output != "" {
		e = e.WithContext("toolOutput", tail(output, 2000))
	}
	return e.WithMitigation(
		"fix the reported tool error in your project",
		"re-run the deployment once the project builds locally",
	)
}

// tail returns the last n bytes of s; tool output can be very long and
// only the end carries the actual error.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
