package common

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/stoewer/go-strcase"
)

// DefaultArchiveName derives the deployment archive filename from a
// project name. Returns format: "kebab-case-name.zip".
func DefaultArchiveName(name string) string {
	return strcase.KebabCase(name) + ".zip"
}

// ValidateProjectDir checks if the provided project directory exists and is a directory.
func ValidateProjectDir(projectDir string) error {
	info, err := os.Stat(projectDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("project directory does not exist: %s", projectDir)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("project directory is not a directory: %s", projectDir)
	}
	return nil
}

// webAppNameRegex matches the hosting platform's constraint for web app names:
// - Must start with alphanumeric
// - Can contain alphanumeric and hyphens in the middle
// - Must end with alphanumeric
// - Minimum 2 characters
var webAppNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*[a-zA-Z0-9]$`)

// ValidateAppName checks if the web app name matches the required format.
// The name becomes a DNS label in the app's default hostname.
func ValidateAppName(name string) error {
	if len(name) < 2 {
		return fmt.Errorf("app name must be at least 2 characters")
	}
	if len(name) > 60 {
		return fmt.Errorf("app name must be at most 60 characters")
	}
	if !webAppNameRegex.MatchString(name) {
		return fmt.Errorf("invalid app name %q: must start and end with alphanumeric, can contain letters, numbers, and hyphens (-)", name)
	}
	return nil
}

// ResolveArchivePath returns the archive path to use based on priority:
// flag > derived from the app name.
func ResolveArchivePath(flagPath, appName string) string {
	if flagPath != "" {
		return flagPath
	}
	return DefaultArchiveName(appName)
}

// ResolvePublishPath returns the publish-output directory, defaulting to
// a "publish" directory inside the project.
func ResolvePublishPath(flagPath, projectPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return filepath.Join(projectPath, "publish")
}
