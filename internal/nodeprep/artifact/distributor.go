// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kusari-oss/nodeprep/internal/core/models"
)

// StageOptions controls how an artifact lands on the target
type StageOptions struct {
	// Mode is applied to every written file. Zero keeps the mode of an
	// existing destination, or the source mode for a new one.
	Mode os.FileMode
	// Executable adds the execute bits on top of Mode
	Executable bool
	// CreateDirs creates missing parent directories of the destination
	CreateDirs bool
}

// Distributor copies artifacts from the artifact root onto a target root
type Distributor struct {
	ArtifactRoot string
	TargetRoot   string
}

// NewDistributor creates a distributor. An empty target root means the local host.
func NewDistributor(artifactRoot, targetRoot string) *Distributor {
	return &Distributor{ArtifactRoot: artifactRoot, TargetRoot: targetRoot}
}

// Source resolves a source path against the artifact root
func (d *Distributor) Source(src string) string {
	if filepath.IsAbs(src) {
		return filepath.Clean(src)
	}
	return filepath.Join(d.ArtifactRoot, src)
}

// Target resolves an absolute destination under the target root
func (d *Distributor) Target(dest string) (string, error) {
	if !filepath.IsAbs(dest) {
		return "", fmt.Errorf("%w: destination %q must be an absolute path", models.ErrDestinationUnwritable, dest)
	}
	// Cleaning the absolute path first drops leading ".." elements
	dest = filepath.Clean(dest)
	if d.TargetRoot == "" || d.TargetRoot == "/" {
		return dest, nil
	}

	root := filepath.Clean(d.TargetRoot)
	target := filepath.Join(root, dest)
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: destination %q escapes target root %s", models.ErrDestinationUnwritable, dest, root)
	}
	return target, nil
}

// Stage copies src (a file or a directory tree) to dest. The destination is
// always re-written and its mode re-applied; changed reports whether the
// content or mode differs from what was there before.
func (d *Distributor) Stage(src, dest string, opts StageOptions) (bool, error) {
	source := d.Source(src)
	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("%w: %s", models.ErrSourceNotFound, source)
		}
		return false, fmt.Errorf("error reading source %s: %w", source, err)
	}

	target, err := d.Target(dest)
	if err != nil {
		return false, err
	}

	if !info.IsDir() {
		if strings.HasSuffix(dest, "/") {
			target = filepath.Join(target, filepath.Base(source))
		}
		return stageFile(source, info, target, opts, opts.CreateDirs)
	}

	if err := ensureParent(target, opts.CreateDirs); err != nil {
		return false, err
	}

	changed := false
	err = filepath.WalkDir(source, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		out := filepath.Join(target, rel)

		if entry.IsDir() {
			if _, err := os.Stat(out); os.IsNotExist(err) {
				changed = true
			}
			if err := os.MkdirAll(out, 0755); err != nil {
				return fmt.Errorf("%w: %v", models.ErrDestinationUnwritable, err)
			}
			return nil
		}

		fileInfo, err := entry.Info()
		if err != nil {
			return err
		}
		fileChanged, err := stageFile(path, fileInfo, out, opts, true)
		if err != nil {
			return err
		}
		changed = changed || fileChanged
		return nil
	})
	if err != nil {
		return false, err
	}

	return changed, nil
}

// Write places content at dest with the same change semantics as Stage
func (d *Distributor) Write(dest string, content []byte, opts StageOptions) (bool, error) {
	target, err := d.Target(dest)
	if err != nil {
		return false, err
	}
	return writeFile(target, content, desiredMode(baseMode(target, 0644, opts), opts), opts.CreateDirs)
}

// SetMode applies permission bits to an existing file on the target
func (d *Distributor) SetMode(dest string, mode os.FileMode, executable bool) (bool, error) {
	target, err := d.Target(dest)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("%w: %s", models.ErrSourceNotFound, target)
		}
		return false, fmt.Errorf("%w: %v", models.ErrDestinationUnwritable, err)
	}

	current := info.Mode().Perm()
	wanted := desiredMode(current, StageOptions{Mode: mode, Executable: executable})

	if err := os.Chmod(target, wanted); err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrDestinationUnwritable, err)
	}
	return current != wanted, nil
}

// ParseMode reads a permission value given as an octal string such as
// "0755" or "0o755". Numbers are rejected; YAML decodes an unquoted 0755
// as 493 and an unquoted 755 as decimal.
func ParseMode(value interface{}) (os.FileMode, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case string:
		if v == "" {
			return 0, nil
		}
		n, err := strconv.ParseUint(strings.TrimPrefix(v, "0o"), 8, 32)
		if err != nil || n > 07777 {
			return 0, fmt.Errorf("%w: invalid mode %q", models.ErrInvalidParameters, v)
		}
		return os.FileMode(n).Perm(), nil
	case int, int64, uint64, float64:
		return 0, fmt.Errorf("%w: mode %v must be a quoted octal string such as \"0755\"", models.ErrInvalidParameters, v)
	default:
		return 0, fmt.Errorf("%w: invalid mode %v", models.ErrInvalidParameters, value)
	}
}

func desiredMode(base os.FileMode, opts StageOptions) os.FileMode {
	mode := base.Perm()
	if opts.Mode != 0 {
		mode = opts.Mode.Perm()
	}
	if opts.Executable {
		mode |= 0111
	}
	return mode
}

func stageFile(source string, info os.FileInfo, target string, opts StageOptions, createDirs bool) (bool, error) {
	content, err := os.ReadFile(source)
	if err != nil {
		return false, fmt.Errorf("error reading source %s: %w", source, err)
	}
	return writeFile(target, content, desiredMode(baseMode(target, info.Mode(), opts), opts), createDirs)
}

// baseMode keeps the permissions of an existing destination when no mode
// is requested, so a later file-mode step is not undone on the next run
func baseMode(target string, fallback os.FileMode, opts StageOptions) os.FileMode {
	if opts.Mode != 0 {
		return opts.Mode
	}
	if existing, err := os.Stat(target); err == nil && existing.Mode().IsRegular() {
		return existing.Mode()
	}
	return fallback
}

func ensureParent(target string, createDirs bool) error {
	parent := filepath.Dir(target)
	info, err := os.Stat(parent)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("%w: %s is not a directory", models.ErrDestinationUnwritable, parent)
	case err == nil:
		return nil
	case !os.IsNotExist(err):
		return fmt.Errorf("%w: %v", models.ErrDestinationUnwritable, err)
	case !createDirs:
		return fmt.Errorf("%w: parent directory %s does not exist", models.ErrDestinationUnwritable, parent)
	}

	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("%w: %v", models.ErrDestinationUnwritable, err)
	}
	return nil
}

// writeFile replaces target through a rename in the same directory so a
// running binary is never truncated in place
func writeFile(target string, content []byte, mode os.FileMode, createDirs bool) (bool, error) {
	if err := ensureParent(target, createDirs); err != nil {
		return false, err
	}

	changed := true
	if prior, err := os.ReadFile(target); err == nil {
		if info, err := os.Stat(target); err == nil && info.Mode().Perm() == mode && bytes.Equal(prior, content) {
			changed = false
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("%w: %v", models.ErrDestinationUnwritable, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrDestinationUnwritable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return false, fmt.Errorf("%w: %v", models.ErrDestinationUnwritable, err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrDestinationUnwritable, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrDestinationUnwritable, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrDestinationUnwritable, err)
	}

	return changed, nil
}
