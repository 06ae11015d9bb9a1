package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/loan-desk/internal/model"
)

// FileStore implements Store as a single indented JSON file.
type FileStore struct {
	path string
}

// NewFile returns a FileStore backed by path. The file is created lazily.
func NewFile(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Migrate creates the parent directory and seeds an empty document.
func (s *FileStore) Migrate(ctx context.Context) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "file: create directory")
		}
	}
	_, err := s.Load(ctx)
	return err
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) Load(ctx context.Context) (*model.Document, error) {
	body, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		doc := model.NewDocument()
		if err := s.Save(ctx, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "file: read %s", s.path)
	}
	doc, err := decode(body)
	if err != nil {
		return nil, eris.Wrapf(err, "file: load %s", s.path)
	}
	return doc, nil
}

func (s *FileStore) Save(ctx context.Context, doc *model.Document) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "file: save")
	}
	body, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return eris.Wrap(err, "file: marshal document")
	}
	body = append(body, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "file: create temp")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return eris.Wrap(err, "file: write temp")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return eris.Wrap(err, "file: sync temp")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "file: close temp")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return eris.Wrapf(err, "file: replace %s", s.path)
	}
	committed = true
	return nil
}
