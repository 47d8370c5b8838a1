package build

import (
	"io"
	"os"
	"path/filepath"

	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
)

// copyTree copies src into dst, skipping the named top-level-or-nested
// directories. dst is created when missing; existing files are
// overwritten so repeated builds converge.
func copyTree(src, dst string, skip []string) error {
	skipSet := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		skipSet[s] = struct{}{}
	}

	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if _, skipped := skipSet[d.Name()]; skipped {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(dst, rel), 0o755)
		}
		return copyFile(path, filepath.Join(dst, rel))
	})
	if err != nil {
		return errdefs.Wrap(errdefs.KindBuild, "build.copyTree",
			"cannot copy project into publish output", err).
			WithContext("projectPath", src).
			WithContext("publishOutputPath", dst)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
