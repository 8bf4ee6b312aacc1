package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/trainbook/internal/filex"
	"github.com/dmitrijs2005/trainbook/internal/models"
)

// FileRepository stores users as a JSON array in a single file.
type FileRepository struct {
	path string
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// LoadAll reads every user. A missing file yields an empty list.
func (r *FileRepository) LoadAll(ctx context.Context) ([]*models.User, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*models.User{}, nil
		}
		return nil, fmt.Errorf("read users file: %w", err)
	}
	if len(data) == 0 {
		return []*models.User{}, nil
	}

	var users []*models.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("decode users file: %w", err)
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

// SaveAll replaces the file contents. The new file is written next to the
// old one and renamed over it.
func (r *FileRepository) SaveAll(ctx context.Context, users []*models.User) error {
	if users == nil {
		users = []*models.User{}
	}
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}

	if err := filex.EnsureParentDir(r.path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace users file: %w", err)
	}
	return nil
}
