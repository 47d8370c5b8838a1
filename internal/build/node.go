package build

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
	"github.com/agentlaunch-dev/agentlaunch/pkg/models"
)

type packageJSON struct {
	Scripts map[string]string `json:"scripts"`
}

// hasBuildScript reports whether package.json declares a build script.
// Absence is not an error; plain JavaScript projects run as-is.
func hasBuildScript(projectPath string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(projectPath, "package.json"))
	if err != nil {
		return false, errdefs.Wrap(errdefs.KindBuild, "build.node",
			"cannot read package.json", err).
			WithContext("projectPath", projectPath)
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false, errdefs.Wrap(errdefs.KindBuild, "build.node",
			"package.json is not valid JSON", err).
			WithContext("projectPath", projectPath).
			WithMitigation("fix the JSON syntax in package.json")
	}
	_, ok := pkg.Scripts["build"]
	return ok, nil
}

func buildNodeJs(ctx context.Context, o *Orchestrator, dcfg models.DeploymentConfiguration) error {
	if err := requireTool(o.runner, "npm",
		"install Node.js (which includes npm) from https://nodejs.org"); err != nil {
		return err
	}

	if out, err := o.runner.Run(ctx, dcfg.ProjectPath, "npm", "install"); err != nil {
		return wrapStep("install", out, err)
	}

	buildDeclared, err := hasBuildScript(dcfg.ProjectPath)
	if err != nil {
		return err
	}
	if buildDeclared {
		if out, err := o.runner.Run(ctx, dcfg.ProjectPath, "npm", "run", "build"); err != nil {
			return wrapStep("build", out, err)
		}
	} else {
		o.logger.Debug("package.json declares no build script, skipping build step")
	}

	return copyTree(dcfg.ProjectPath, dcfg.PublishOutputPath, skipDirs(dcfg))
}

func planNodeJs(dcfg models.DeploymentConfiguration) []string {
	steps := []string{"npm install"}
	if declared, err := hasBuildScript(dcfg.ProjectPath); err == nil && declared {
		steps = append(steps, "npm run build")
	}
	return append(steps, "copy project into "+dcfg.PublishOutputPath)
}

func skipDirs(dcfg models.DeploymentConfiguration) []string {
	return []string{".git", filepath.Base(dcfg.PublishOutputPath)}
}
