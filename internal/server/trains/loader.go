package trains

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/trainbook/internal/models"
)

// Loader reads a complete train list from some source.
type Loader interface {
	Load(ctx context.Context) ([]models.Train, error)
}

// FileLoader reads a JSON array of trains from a local file. A missing file
// is an empty list.
type FileLoader struct {
	Path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{Path: path}
}

func (l *FileLoader) Load(ctx context.Context) ([]models.Train, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.Train{}, nil
		}
		return nil, fmt.Errorf("open trains file: %w", err)
	}
	defer f.Close()

	return decode(f)
}

func decode(r io.Reader) ([]models.Train, error) {
	var trains []models.Train
	if err := json.NewDecoder(r).Decode(&trains); err != nil {
		if errors.Is(err, io.EOF) {
			return []models.Train{}, nil
		}
		return nil, fmt.Errorf("decode trains: %w", err)
	}
	if trains == nil {
		trains = []models.Train{}
	}
	return trains, nil
}

// Reload loads from l and replaces the store contents on success.
func Reload(ctx context.Context, l Loader, s *Store) (int, error) {
	trains, err := l.Load(ctx)
	if err != nil {
		return 0, err
	}
	s.Replace(trains)
	return len(trains), nil
}
