package deadlines

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/xeipuuv/gojsonschema"

	"github.com/david/grant-assistant/internal/apperr"
	"github.com/david/grant-assistant/internal/models"
)

//go:embed schema/deadlines.schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func storeSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	})
	return schema, schemaErr
}

// renameFile is swapped in tests to simulate a crash before commit.
var renameFile = os.Rename

// lockRetryDelay is how often a blocked writer retries the store lock.
const lockRetryDelay = 10 * time.Millisecond

// record is the on-disk shape; the grant id is the map key.
type record struct {
	DeadlineAt      time.Time             `json:"deadline_timestamp"`
	NotifyOffsets   []int                 `json:"notify_offsets"`
	Status          models.DeadlineStatus `json:"status"`
	NotifiedOffsets []int                 `json:"notified_offsets"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// FileStore keeps the whole deadline map in one JSON file, replaced
// atomically on every save. Writers in any process serialize on an advisory
// lock held on <path>.lock.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

// Lock takes the exclusive store lock, waiting until ctx is done. The
// returned func releases it.
func (s *FileStore) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, apperr.Persistence("create store directory", err)
	}
	fl := flock.New(s.path + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, apperr.Persistence("lock deadline store", err)
	}
	if !locked {
		return nil, apperr.Persistence("lock deadline store", errors.New("lock not acquired"))
	}
	return func() { _ = fl.Unlock() }, nil
}

// Stat describes the file currently at path, nil when there is none.
func (s *FileStore) Stat() (os.FileInfo, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Persistence("stat deadline store", err)
	}
	return info, nil
}

// sameFile reports whether a and b describe the same committed version of
// the store. Every save renames a new file into place.
func sameFile(a, b os.FileInfo) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return os.SameFile(a, b) && a.ModTime().Equal(b.ModTime()) && a.Size() == b.Size()
}

// Load reads the store. A missing file is an empty store.
func (s *FileStore) Load() (map[string]models.Deadline, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]models.Deadline{}, nil
	}
	if err != nil {
		return nil, apperr.Persistence("read deadline store", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]models.Deadline{}, nil
	}

	if err := validateDocument(data); err != nil {
		return nil, apperr.Persistence("validate deadline store", err)
	}

	var raw map[string]record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Persistence("decode deadline store", err)
	}

	out := make(map[string]models.Deadline, len(raw))
	for id, r := range raw {
		out[id] = models.Deadline{
			GrantID:         id,
			DeadlineAt:      r.DeadlineAt.UTC(),
			NotifyOffsets:   nonNil(r.NotifyOffsets),
			Status:          r.Status,
			NotifiedOffsets: nonNil(r.NotifiedOffsets),
			CreatedAt:       r.CreatedAt.UTC(),
			UpdatedAt:       r.UpdatedAt.UTC(),
		}
	}
	return out, nil
}

func validateDocument(data []byte) error {
	sch, err := storeSchema()
	if err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}
	result, err := sch.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("document does not match schema: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Save writes records to a temp file in the store's directory, syncs it and
// renames it over the store. Readers see either the old or the new file.
func (s *FileStore) Save(records map[string]models.Deadline) error {
	raw := make(map[string]record, len(records))
	for id, d := range records {
		raw[id] = record{
			DeadlineAt:      d.DeadlineAt.UTC(),
			NotifyOffsets:   nonNil(d.NotifyOffsets),
			Status:          d.Status,
			NotifiedOffsets: nonNil(d.NotifiedOffsets),
			CreatedAt:       d.CreatedAt.UTC(),
			UpdatedAt:       d.UpdatedAt.UTC(),
		}
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return apperr.Persistence("encode deadline store", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Persistence("create store directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return apperr.Persistence("create temp file", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return apperr.Persistence("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apperr.Persistence("sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Persistence("close temp file", err)
	}
	if err := renameFile(tmpName, s.path); err != nil {
		return apperr.Persistence("replace deadline store", err)
	}
	committed = true

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}

func nonNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	out := append([]int(nil), v...)
	sort.Ints(out)
	return out
}
