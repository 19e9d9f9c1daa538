package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Local stores content as flat files under a root directory
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory, %w", err)
	}

	return &Local{root: root}, nil
}

func (l *Local) Write(_ context.Context, data []byte) (string, error) {
	key := uuid.NewString()

	err := os.WriteFile(filepath.Join(l.root, key), data, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to write content, %w", err)
	}

	return key, nil
}

func (l *Local) Read(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(l.root, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to open content, %w", err)
	}

	return f, nil
}

func (l *Local) Derive(_ context.Context, key string, width int) (string, error) {
	src, err := os.ReadFile(filepath.Join(l.root, key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}

		return "", fmt.Errorf("failed to read source content, %w", err)
	}

	thumb, err := makeThumbnail(src, width)
	if err != nil {
		return "", err
	}

	derived := DeriveKey(key, width)

	err = os.WriteFile(filepath.Join(l.root, derived), thumb, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to write thumbnail, %w", err)
	}

	return derived, nil
}
