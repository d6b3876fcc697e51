// Package media handles generated image artifacts: validation, temporary
// on-disk storage and cleanup after publishing.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Artifact is one generated image written to disk for the duration of a
// publish attempt.
type Artifact struct {
	Path      string
	Format    string
	CreatedAt time.Time
}

// Dir manages the directory that holds in-flight artifacts.
type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	if root == "" {
		root = filepath.Join("data", "media")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) Root() string {
	return d.root
}

// Write stores the payload under a timestamped unique name and returns the
// artifact handle.
func (d *Dir) Write(data []byte, format string) (*Artifact, error) {
	now := time.Now()
	ext := format
	if ext == "" {
		ext = "jpg"
	}
	name := fmt.Sprintf("%s_%s.%s", now.Format("20060102_150405"), uuid.NewString()[:8], ext)
	path := filepath.Join(d.root, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	return &Artifact{
		Path:      path,
		Format:    format,
		CreatedAt: now,
	}, nil
}

// Remove deletes the artifact file. A missing file is not an error so
// cleanup can run unconditionally.
func (d *Dir) Remove(art *Artifact) error {
	if art == nil || art.Path == "" {
		return nil
	}
	err := os.Remove(art.Path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove artifact: %w", err)
	}
	return nil
}
