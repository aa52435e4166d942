package saved

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	flowerrors "github.com/go-drift/flowstate/pkg/errors"
)

// SnapshotVersion is written to every snapshot file.
const SnapshotVersion = "v1.0.0"

// ErrUnsupportedVersion is returned when a snapshot was written by an
// incompatible version.
var ErrUnsupportedVersion = errors.New("saved: unsupported snapshot version")

type snapshot struct {
	Version string            `yaml:"version"`
	Entries map[string]string `yaml:"entries"`
}

// FileStore is a Store persisted as a single YAML snapshot file. Every
// write rewrites the snapshot through a temporary file renamed into place,
// so a crash never leaves a partial file behind.
type FileStore struct {
	path   string
	logger zerolog.Logger

	mu      sync.Mutex // serializes snapshot writes
	entries cmap.ConcurrentMap[string, []byte]
}

var _ Store = (*FileStore)(nil)

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileLogger logs snapshot writes at debug level.
func WithFileLogger(l *zerolog.Logger) FileOption {
	return func(s *FileStore) {
		if l != nil {
			s.logger = *l
		}
	}
}

// OpenFileStore loads the snapshot at path. A missing file yields an empty
// store; the file is created on the first write.
func OpenFileStore(path string, opts ...FileOption) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		logger:  zerolog.Nop(),
		entries: cmap.New[[]byte](),
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, storeError("saved.OpenFileStore", "", err)
	}

	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, storeError("saved.OpenFileStore", "", fmt.Errorf("parse %s: %w", path, err))
	}
	if err := checkVersion(snap.Version); err != nil {
		return nil, storeError("saved.OpenFileStore", "", fmt.Errorf("%s: %w", path, err))
	}
	for k, v := range snap.Entries {
		s.entries.Set(k, []byte(v))
	}
	s.logger.Debug().Str("path", path).Int("entries", len(snap.Entries)).Msg("snapshot loaded")
	return s, nil
}

func checkVersion(v string) error {
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, v)
	}
	if semver.Major(v) != semver.Major(SnapshotVersion) {
		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, v)
	}
	return nil
}

// Path returns the snapshot location.
func (s *FileStore) Path() string { return s.path }

// Get returns a copy of the cached value stored under key.
func (s *FileStore) Get(key string) ([]byte, bool, error) {
	v, ok := s.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

// Set stores value and rewrites the snapshot. On failure the store is left
// unchanged.
func (s *FileStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.entries.Get(key)
	s.entries.Set(key, slices.Clone(value))
	if err := s.flushLocked(); err != nil {
		if had {
			s.entries.Set(key, prev)
		} else {
			s.entries.Remove(key)
		}
		return storeError("saved.FileStore.Set", key, err)
	}
	return nil
}

// Delete removes key and rewrites the snapshot.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.entries.Pop(key)
	if !had {
		return nil
	}
	if err := s.flushLocked(); err != nil {
		s.entries.Set(key, prev)
		return storeError("saved.FileStore.Delete", key, err)
	}
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *FileStore) Keys() ([]string, error) {
	keys := s.entries.Keys()
	slices.Sort(keys)
	return keys, nil
}

// flushLocked must be called with s.mu held.
func (s *FileStore) flushLocked() error {
	snap := snapshot{
		Version: SnapshotVersion,
		Entries: make(map[string]string, s.entries.Count()),
	}
	for item := range s.entries.IterBuffered() {
		snap.Entries[item.Key] = string(item.Val)
	}
	data, err := yaml.Marshal(&snap)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return err
	}
	s.logger.Debug().Str("path", s.path).Int("entries", len(snap.Entries)).Msg("snapshot written")
	return nil
}

func storeError(op, key string, err error) *flowerrors.FlowError {
	return &flowerrors.FlowError{Op: op, Kind: flowerrors.KindStore, Key: key, Err: err}
}
