// Package artifact writes stamped photos to durable storage.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sweepin/internal/models"
)

const reportsDir = "reports"

type Store interface {
	// Put durably writes data under name and returns the stored path.
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, storedPath string) ([]byte, error)
}

// ArtifactName keeps the upload's basename and extension and drops any
// directory part. Two uploads with the same name land on the same path.
func ArtifactName(originalFilename string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(originalFilename, "\\", "/"))
	switch name {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: bad filename %q", models.ErrInvalidInput, originalFilename)
	}
	return name, nil
}

type Local struct {
	root string
}

// NewLocal stores artifacts under root/reports.
func NewLocal(root string) (*Local, error) {
	const op = "artifact.NewLocal"

	dir := filepath.Join(root, reportsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Local{root: root}, nil
}

func (l *Local) Dir() string { return filepath.Join(l.root, reportsDir) }

func (l *Local) Put(ctx context.Context, name string, data []byte) (string, error) {
	const op = "artifact.Local.Put"

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	name, err := ArtifactName(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	path := filepath.Join(l.Dir(), name)

	tmp, err := os.CreateTemp(l.Dir(), "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	return path, nil
}

func (l *Local) Get(ctx context.Context, storedPath string) ([]byte, error) {
	const op = "artifact.Local.Get"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	data, err := os.ReadFile(storedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w: %w", op, models.ErrImageNotFound, err)
		}
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	return data, nil
}
