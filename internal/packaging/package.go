// Package packaging emits the hosting manifest and deployment archive
// from a publish artifact.
package packaging

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/agentlaunch-dev/agentlaunch/internal/build"
	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
	"github.com/agentlaunch-dev/agentlaunch/pkg/models"
)

// ManifestFileName is the Oryx-style manifest written at the artifact root.
const ManifestFileName = "hosting.yaml"

// Runtime versions requested from the hosting platform. These track the
// versions the agent runtime images are validated against.
const (
	dotnetRuntimeVersion = "8.0"
	nodeRuntimeVersion   = "20"
	pythonRuntimeVersion = "3.11"
)

// Options adjusts manifest generation for one deployment cycle.
type Options struct {
	// AppName is used in the dotnet run command template.
	AppName string
	// ArchivePath is the destination zip; an existing archive is
	// overwritten.
	ArchivePath string
	// ArtifactReused is true when --restart skipped the build. It is
	// the only case where the manifest's buildRequired flag is false.
	ArtifactReused bool
}

type Generator struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Generator {
	return &Generator{logger: logger}
}

// Package writes the hosting manifest into the publish artifact and zips
// the artifact into opts.ArchivePath.
func (g *Generator) Package(ctx context.Context, publishPath string, p models.Platform, opts Options) (models.HostingManifest, string, error) {
	manifest, err := buildManifest(publishPath, p, opts)
	if err != nil {
		return models.HostingManifest{}, "", err
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return models.HostingManifest{}, "", errdefs.Wrap(errdefs.KindInternal, "packaging.Package",
			"cannot marshal hosting manifest", err)
	}
	if err := os.WriteFile(filepath.Join(publishPath, ManifestFileName), data, 0o644); err != nil {
		return models.HostingManifest{}, "", errdefs.Wrap(errdefs.KindBuild, "packaging.Package",
			"cannot write hosting manifest", err).
			WithContext("publishOutputPath", publishPath)
	}

	if err := zipDirectory(ctx, publishPath, opts.ArchivePath); err != nil {
		return models.HostingManifest{}, "", err
	}

	g.logger.Info("deployment archive created",
		zap.String("archive", opts.ArchivePath),
		zap.String("platform", p.String()),
		zap.Bool("buildRequired", manifest.BuildRequired))
	return manifest, opts.ArchivePath, nil
}

// buildManifest applies the platform-specific fixed templates.
func buildManifest(publishPath string, p models.Platform, opts Options) (models.HostingManifest, error) {
	m := models.HostingManifest{
		Platform:      p.String(),
		BuildRequired: !opts.ArtifactReused,
	}

	switch p {
	case models.PlatformDotNet:
		m.PlatformVersion = dotnetRuntimeVersion
		m.RunCommand = "dotnet " + opts.AppName + ".dll"
	case models.PlatformNodeJs:
		m.PlatformVersion = nodeRuntimeVersion
		m.RunCommand = "npm start"
		m.BuildCommand = "npm run build"
	case models.PlatformPython:
		m.PlatformVersion = pythonRuntimeVersion
		run, err := build.PythonStartupCommand(publishPath)
		if err != nil {
			return models.HostingManifest{}, err
		}
		m.RunCommand = run
		m.BuildCommand = "pip install -r requirements.txt"
	default:
		return models.HostingManifest{}, errdefs.New(errdefs.KindValidation, "packaging.Package",
			"cannot package unknown platform")
	}
	return m, nil
}

// zipDirectory archives dir into archivePath, overwriting any prior
// archive. Paths inside the zip are slash-separated and relative to dir.
func zipDirectory(ctx context.Context, dir, archivePath string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return errdefs.Wrap(errdefs.KindBuild, "packaging.zipDirectory",
			"cannot create deployment archive", err).
			WithContext("archivePath", archivePath)
	}
	w := zip.NewWriter(out)
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		f, err := w.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(f, in)
		return err
	})
	if err != nil {
		_ = w.Close()
		_ = out.Close()
		return errdefs.Wrap(errdefs.KindBuild, "packaging.zipDirectory",
			"cannot write deployment archive", err).
			WithContext("archivePath", archivePath)
	}
	if err := w.Close(); err != nil {
		_ = out.Close()
		return errdefs.Wrap(errdefs.KindBuild, "packaging.zipDirectory",
			"cannot finalize deployment archive", err).
			WithContext("archivePath", archivePath)
	}
	return out.Close()
}
