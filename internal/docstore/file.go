package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// FileRepository keeps the collection in one pretty-printed JSON file.
// Saves go through a temp file in the same directory and a rename, so a
// reader sees either the old document or the new one.
type FileRepository[T any] struct {
	path string
}

func NewFileRepository[T any](path string) *FileRepository[T] {
	return &FileRepository[T]{path: path}
}

func (r *FileRepository[T]) Path() string { return r.path }

func (r *FileRepository[T]) Load(ctx context.Context) ([]T, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	raw, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: read %s: %v", ErrIO, r.path, err)
	}

	records, err := decodeDocument[T](raw)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", ErrCorrupt, r.path, err)
	}
	return records, true, nil
}

func (r *FileRepository[T]) Save(ctx context.Context, records []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeDocument(records)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrIO, r.path, err)
	}

	if err := writeFileAtomic(r.path, data); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrIO, r.path, err)
	}
	return nil
}

// Ping checks that the directory holding the document is usable.
func (r *FileRepository[T]) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	st, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", ErrIO, dir, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrIO, dir)
	}
	return nil
}

func encodeDocument[T any](records []T) ([]byte, error) {
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func decodeDocument[T any](raw []byte) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty document")
	}

	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	if records == nil {
		// a literal null is not a collection
		return nil, errors.New("document is not an array")
	}
	return records, nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), filePerm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
