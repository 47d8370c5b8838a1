package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
	"github.com/agentlaunch-dev/agentlaunch/pkg/models"
)

// pythonEntryPoints are the agent entry-point scripts recognized for
// startup-command selection, in precedence order.
var pythonEntryPoints = []string{"app.py", "main.py", "agent.py"}

// Python projects are not compiled; the build step copies the project
// into the publish output and adjusts requirements resolution so the
// hosting runtime can install dependencies, including local wheels.
func buildPython(ctx context.Context, o *Orchestrator, dcfg models.DeploymentConfiguration) error {
	if err := copyTree(dcfg.ProjectPath, dcfg.PublishOutputPath,
		append(skipDirs(dcfg), "__pycache__", ".venv", "venv")); err != nil {
		return err
	}
	return rewriteRequirements(dcfg.PublishOutputPath)
}

func planPython(dcfg models.DeploymentConfiguration) []string {
	steps := []string{"copy project into " + dcfg.PublishOutputPath}
	if _, err := os.Stat(filepath.Join(dcfg.ProjectPath, "dist")); err == nil {
		steps = append(steps, "resolve local wheels from dist/ via --find-links")
	}
	return append(steps, "rewrite requirements.txt to allow pre-release versions")
}

// rewriteRequirements prepends pip resolver directives to the copied
// requirements.txt: pre-release versions are allowed, and a dist/ folder
// of local wheels is consulted first when present. A project without a
// requirements.txt is left alone.
func rewriteRequirements(publishPath string) error {
	reqPath := filepath.Join(publishPath, "requirements.txt")
	data, err := os.ReadFile(reqPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errdefs.Wrap(errdefs.KindBuild, "build.python",
			"cannot read requirements.txt", err).
			WithContext("publishOutputPath", publishPath)
	}

	var directives []string
	if !strings.Contains(string(data), "--pre") {
		directives = append(directives, "--pre")
	}
	if hasWheels(filepath.Join(publishPath, "dist")) && !strings.Contains(string(data), "--find-links") {
		directives = append(directives, "--find-links dist")
	}
	if len(directives) == 0 {
		return nil
	}

	rewritten := strings.Join(directives, "\n") + "\n" + string(data)
	if err := os.WriteFile(reqPath, []byte(rewritten), 0o644); err != nil {
		return errdefs.Wrap(errdefs.KindBuild, "build.python",
			"cannot rewrite requirements.txt", err).
			WithContext("publishOutputPath", publishPath)
	}
	return nil
}

func hasWheels(distPath string) bool {
	entries, err := os.ReadDir(distPath)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".whl") {
			return true
		}
	}
	return false
}

// PythonStartupCommand picks the run command for a published Python
// project from its entry-point script and declared dependencies:
// uvicorn for ASGI apps, gunicorn for WSGI apps, the raw interpreter
// otherwise.
func PythonStartupCommand(publishPath string) (string, error) {
	var entry string
	for _, candidate := range pythonEntryPoints {
		if _, err := os.Stat(filepath.Join(publishPath, candidate)); err == nil {
			entry = candidate
			break
		}
	}
	if entry == "" {
		return "", errdefs.New(errdefs.KindBuild, "build.PythonStartupCommand",
			"no agent entry-point script found").
			WithContext("publishOutputPath", publishPath).
			WithMitigation("add one of app.py, main.py, or agent.py at the project root")
	}

	module := strings.TrimSuffix(entry, ".py")
	reqs, _ := os.ReadFile(filepath.Join(publishPath, "requirements.txt"))
	deps := strings.ToLower(string(reqs))

	switch {
	case strings.Contains(deps, "uvicorn") || strings.Contains(deps, "fastapi"):
		return "python3 -m uvicorn " + module + ":app --host 0.0.0.0 --port 8000", nil
	case strings.Contains(deps, "gunicorn") || strings.Contains(deps, "flask"):
		return "python3 -m gunicorn " + module + ":app --bind 0.0.0.0:8000", nil
	default:
		return "python3 " + entry, nil
	}
}
