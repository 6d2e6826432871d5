package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgellow/resumescan/internal/crypto"
	"github.com/dgellow/resumescan/internal/ioutil"
	"github.com/dgellow/resumescan/internal/log"
	"github.com/fsnotify/fsnotify"
)

var _ Store = (*FileStore)(nil)
var _ Watcher = (*FileStore)(nil)

// fileDocument is the on-disk layout. Exactly one of Values or Sealed is set.
type fileDocument struct {
	Values map[Key]string `json:"values,omitempty"`
	Sealed string         `json:"sealed,omitempty"`
}

// FileStore persists every key in a single JSON document. The file is re-read on
// each access so separate processes sharing the path see each other's writes.
type FileStore struct {
	mu     sync.Mutex
	path   string
	sealer crypto.Sealer
}

// FileStoreOption configures a FileStore
type FileStoreOption func(*FileStore)

// WithSealer encrypts the document at rest
func WithSealer(s crypto.Sealer) FileStoreOption {
	return func(f *FileStore) {
		f.sealer = s
	}
}

// NewFileStore creates a store backed by path. The file is created on first write.
func NewFileStore(path string, opts ...FileStoreOption) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving store path: %w", err)
	}
	s := &FileStore{path: abs}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the absolute path of the backing file
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(_ context.Context, key Key) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (s *FileStore) Set(_ context.Context, key Key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStore) Remove(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

func (s *FileStore) load() (map[Key]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[Key]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store file: %w", err)
	}
	if len(data) == 0 {
		return make(map[Key]string), nil
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing store file: %w", err)
	}

	if doc.Sealed != "" {
		if s.sealer == nil {
			return nil, fmt.Errorf("store file is encrypted but no encryption key is configured")
		}
		plain, err := s.sealer.Open(doc.Sealed)
		if err != nil {
			return nil, fmt.Errorf("decrypting store file: %w", err)
		}
		values := make(map[Key]string)
		if err := json.Unmarshal(plain, &values); err != nil {
			return nil, fmt.Errorf("parsing decrypted store: %w", err)
		}
		return values, nil
	}

	if doc.Values == nil {
		doc.Values = make(map[Key]string)
	}
	return doc.Values, nil
}

func (s *FileStore) save(values map[Key]string) error {
	var doc fileDocument
	if s.sealer != nil {
		plain, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("encoding store: %w", err)
		}
		sealed, err := s.sealer.Seal(plain)
		if err != nil {
			return fmt.Errorf("encrypting store: %w", err)
		}
		doc.Sealed = sealed
	} else {
		doc.Values = values
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}
	if err := ioutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing store file: %w", err)
	}
	return nil
}

func (s *FileStore) snapshot() map[Key]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		log.LogWarnWithFields("storage", "Failed to read store snapshot", map[string]any{
			"path":  s.path,
			"error": err.Error(),
		})
		return nil
	}
	return values
}

// Watch reports changes to the backing file made by any process, this one
// included. The directory is watched rather than the file because atomic
// writes replace the inode.
func (s *FileStore) Watch(ctx context.Context) (<-chan Change, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	last := s.snapshot()
	out := make(chan Change, 16)

	go func() {
		defer close(out)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != s.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
					continue
				}

				current := s.snapshot()
				if current == nil {
					continue
				}
				for _, c := range diff(last, current) {
					select {
					case out <- c:
					case <-ctx.Done():
						return
					}
				}
				last = current
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.LogWarnWithFields("storage", "File watcher error", map[string]any{
					"path":  s.path,
					"error": err.Error(),
				})
			}
		}
	}()

	return out, nil
}
