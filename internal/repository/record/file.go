package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/oshokin/lights-manager/internal/config"
	"github.com/oshokin/lights-manager/internal/domain/app"
)

const recordExt = ".json"

// Repository defines persistence operations for application records.
type Repository interface {
	Load(ctx context.Context, name string) (*app.Record, error)
	Save(ctx context.Context, rec *app.Record) error
	List(ctx context.Context) ([]*app.Record, error)
}

// FileRepository persists records as {dir}/{name}.json.
type FileRepository struct {
	// dir is the appdata directory.
	dir string
	// mu serialises writers of this process; other processes rely on the atomic rename.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when no record exists for the application yet.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidName is returned for names that cannot be used as a file name.
	ErrInvalidName = errors.New("invalid record name")
)

// NewFileRepository creates a repository rooted at dir.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{
		dir: filepath.Clean(dir),
	}
}

// Path returns the file that stores the record called name.
func (r *FileRepository) Path(name string) string {
	return filepath.Join(r.dir, name+recordExt)
}

// Load reads the record called name.
func (r *FileRepository) Load(_ context.Context, name string) (*app.Record, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.read(r.Path(name))
}

// Save replaces the record file with the JSON form of rec.
// The file is written next to its destination and renamed over it, so readers
// see either the old or the new document. Output is deterministic.
func (r *FileRepository) Save(_ context.Context, rec *app.Record) error {
	if rec == nil {
		return fmt.Errorf("save record: %w", ErrInvalidName)
	}

	if err := checkName(rec.Name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.Path(rec.Name)

	stored := rec.Clone()
	stored.DataPath = path

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.Name, err)
	}

	data = append(data, '\n')

	if err = writeAtomic(path, data); err != nil {
		return fmt.Errorf("write record %s: %w", rec.Name, err)
	}

	rec.DataPath = path

	return nil
}

// List loads every record in the directory, ordered by name.
// A missing directory yields an empty list.
func (r *FileRepository) List(_ context.Context) ([]*app.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("list records: %w", err)
	}

	records := make([]*app.Record, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != recordExt {
			continue
		}

		rec, err := r.read(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})

	return records, nil
}

func (r *FileRepository) read(path string) (*app.Record, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read record file: %w", err)
	}

	rec := new(app.Record)
	if err = json.Unmarshal(contents, rec); err != nil {
		return nil, fmt.Errorf("decode record file %s: %w", path, err)
	}

	rec.DataPath = path

	return rec, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()
	committed := false

	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write temp file: %w", err)
	}

	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync temp file: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err = os.Chmod(tmpName, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	committed = true

	return nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}

	return nil
}
