// Package platform classifies a project directory into a build
// platform. Detection is a pure filesystem scan with no side effects.
package platform

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
	"github.com/agentlaunch-dev/agentlaunch/pkg/models"
)

var dotnetProjectSuffixes = []string{".csproj", ".fsproj", ".vbproj"}

var pythonMarkers = []string{"requirements.txt", "pyproject.toml", "setup.py"}

// Detect classifies projectPath. Precedence is fixed and total: dotnet
// project files win over package.json, which wins over Python markers.
// An Unknown result is a terminal user-facing error, never retried.
func Detect(projectPath string) (models.Platform, error) {
	entries, err := os.ReadDir(projectPath)
	if err != nil {
		return models.PlatformUnknown, errdefs.Wrap(errdefs.KindValidation, "platform.Detect",
			"cannot read project directory", err).
			WithContext("projectPath", projectPath).
			WithMitigation("check that projectPath points at your agent project")
	}

	var hasPackageJSON, hasPythonMarker bool
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		for _, suffix := range dotnetProjectSuffixes {
			if strings.HasSuffix(name, suffix) {
				return models.PlatformDotNet, nil
			}
		}
		if name == "package.json" {
			hasPackageJSON = true
		}
		if isPythonMarker(name) {
			hasPythonMarker = true
		}
	}

	if hasPackageJSON {
		return models.PlatformNodeJs, nil
	}
	if hasPythonMarker {
		return models.PlatformPython, nil
	}

	return models.PlatformUnknown, errdefs.New(errdefs.KindValidation, "platform.Detect",
		"no supported project found in "+projectPath).
		WithContext("projectPath", projectPath).
		WithMitigation(
			"check that projectPath points at the project root (a .csproj, package.json, or requirements.txt is expected)",
			"supported platforms are dotnet, nodejs, and python",
		)
}

func isPythonMarker(name string) bool {
	for _, marker := range pythonMarkers {
		if name == marker {
			return true
		}
	}
	return filepath.Ext(name) == ".py"
}
