package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is a deterministic in-memory Provider used by tests. It simulates
// remote listings, transfers and failures without any network.
type Memory struct {
	mu       sync.RWMutex
	objects  map[string]memObject
	folders  map[string]struct{}
	failures map[string]error
}

type memObject struct {
	data    []byte
	modTime time.Time
}

func NewMemory() *Memory {
	return &Memory{
		objects:  make(map[string]memObject),
		folders:  make(map[string]struct{}),
		failures: make(map[string]error),
	}
}

// FailWith makes every subsequent call of op on exactly path return err.
// op is one of "list", "listFolders", "upload", "download",
// "createFolder", "delete", "readText", "writeText".
func (m *Memory) FailWith(op, path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op+":"+path] = err
}

func (m *Memory) failure(op, path string) error {
	if err, ok := m.failures[op+":"+path]; ok {
		return err
	}
	return nil
}

// Seed stores an object directly, bypassing Upload. For test fixtures.
func (m *Memory) Seed(key string, data []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: data, modTime: modTime}
}

// Object returns the stored bytes for key, if present.
func (m *Memory) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return obj.data, true
}

// Keys returns all stored object keys, sorted.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasFolder reports whether an explicit folder marker exists at prefix.
func (m *Memory) HasFolder(prefix string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.folders[strings.TrimSuffix(prefix, "/")]
	return ok
}

func parentOf(key string) string {
	dir := path.Dir(key)
	if dir == "." {
		return ""
	}
	return dir
}

func (m *Memory) List(_ context.Context, prefix string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failure("list", prefix); err != nil {
		return nil, err
	}

	prefix = strings.TrimSuffix(prefix, "/")
	var entries []Entry
	for key, obj := range m.objects {
		if parentOf(key) != prefix {
			continue
		}
		entries = append(entries, Entry{
			Name:         path.Base(key),
			Key:          key,
			Size:         int64(len(obj.data)),
			LastModified: obj.modTime,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (m *Memory) ListFolders(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failure("listFolders", prefix); err != nil {
		return nil, err
	}

	prefix = strings.TrimSuffix(prefix, "/")
	names := make(map[string]struct{})

	for folder := range m.folders {
		if parentOf(folder) == prefix {
			names[path.Base(folder)] = struct{}{}
		}
	}

	// like S3 common prefixes, folders are also implied by deeper keys
	for key := range m.objects {
		dir := parentOf(key)
		for dir != "" && dir != "." {
			if parentOf(dir) == prefix {
				names[path.Base(dir)] = struct{}{}
			}
			dir = parentOf(dir)
		}
	}

	folders := make([]string, 0, len(names))
	for name := range names {
		folders = append(folders, name)
	}
	sort.Strings(folders)
	return folders, nil
}

func (m *Memory) Upload(_ context.Context, localPath, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("upload", key); err != nil {
		return err
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", localPath, err)
	}

	m.objects[key] = memObject{data: data, modTime: time.Now().UTC()}
	return nil
}

func (m *Memory) Download(_ context.Context, key, localPath string) error {
	m.mu.RLock()
	if err := m.failure("download", key); err != nil {
		m.mu.RUnlock()
		return err
	}
	obj, ok := m.objects[key]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("download %q: %w", key, ErrNotFound)
	}

	return WriteFileAtomic(localPath, bytes.NewReader(obj.data))
}

func (m *Memory) CreateFolder(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("createFolder", prefix); err != nil {
		return err
	}

	m.folders[strings.TrimSuffix(prefix, "/")] = struct{}{}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("delete", key); err != nil {
		return err
	}

	delete(m.objects, key)
	return nil
}

func (m *Memory) ReadText(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failure("readText", key); err != nil {
		return "", err
	}

	obj, ok := m.objects[key]
	if !ok {
		return "", ErrNotFound
	}
	return string(obj.data), nil
}

func (m *Memory) WriteText(_ context.Context, key, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("writeText", key); err != nil {
		return err
	}

	m.objects[key] = memObject{data: []byte(content), modTime: time.Now().UTC()}
	return nil
}

var _ Provider = (*Memory)(nil)
