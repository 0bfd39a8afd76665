// SPDX-License-Identifier: Apache-2.0

// Package defaults carries the starter artifact root written by `nodeprep init`.
package defaults

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

//go:embed templates/* plans/* inventory.yaml
var embeddedFiles embed.FS

// Manager manages access to default files
type Manager struct {
	files fs.FS
}

// NewManager creates a new defaults manager over the embedded files
func NewManager() *Manager {
	return &Manager{files: embeddedFiles}
}

// CopyDefaults copies every default file under dir, keeping the embedded
// layout. Existing files are left alone unless overwrite is set. The
// written paths are returned relative to dir.
func (m *Manager) CopyDefaults(dir string, overwrite bool) ([]string, error) {
	files, err := m.ListEmbeddedFiles()
	if err != nil {
		return nil, err
	}

	var written []string
	for _, file := range files {
		dstPath := filepath.Join(dir, filepath.FromSlash(file))

		if !overwrite {
			if _, err := os.Stat(dstPath); err == nil {
				continue
			}
		}

		if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
			return written, fmt.Errorf("error creating directory for %s: %w", dstPath, err)
		}
		if err := m.copyEmbeddedFile(file, dstPath); err != nil {
			return written, err
		}
		written = append(written, file)
	}

	return written, nil
}

// copyEmbeddedFile copies a single file from the embedded filesystem to the target path
func (m *Manager) copyEmbeddedFile(srcPath, dstPath string) error {
	src, err := m.files.Open(srcPath)
	if err != nil {
		return fmt.Errorf("error opening source file %s: %w", srcPath, err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("error creating destination file %s: %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("error copying file content: %w", err)
	}

	return nil
}

// ReadFile returns the content of one embedded file
func (m *Manager) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(m.files, name)
}

// ListEmbeddedFiles returns a sorted list of all embedded default files
func (m *Manager) ListEmbeddedFiles() ([]string, error) {
	var files []string

	err := fs.WalkDir(m.files, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			files = append(files, path)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("error walking embedded files: %w", err)
	}

	sort.Strings(files)
	return files, nil
}
