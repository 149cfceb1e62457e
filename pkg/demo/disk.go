package demo

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Store errors.
var (
	ErrTooLarge = errors.New("demo: file too large")
	ErrNotFound = errors.New("demo: not found")
)

// Store archives finished demos.
type Store interface {
	// Save stores the demo read from r under name and returns where it
	// ended up.
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// Meta describes an archived demo.
type Meta struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// DiskStore keeps demos in a local directory, each next to a JSON metadata
// file.
type DiskStore struct {
	dir     string
	maxSize int64
}

// NewDiskStore creates a DiskStore.
//
// Parameters:
//   - dir: directory to store demos in, created if missing
//   - maxSize: maximum demo size in bytes (0 = no limit)
func NewDiskStore(dir string, maxSize int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir, maxSize: maxSize}, nil
}

// Save writes the demo and returns its path.
func (s *DiskStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name = cleanName(name)
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".partial-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	var reader io.Reader = r
	if s.maxSize > 0 {
		reader = io.LimitReader(r, s.maxSize+1)
	}
	written, err := io.Copy(tmp, reader)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	if s.maxSize > 0 && written > s.maxSize {
		return "", ErrTooLarge
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}

	meta := &Meta{Name: name, Size: written, CreatedAt: time.Now()}
	if err := s.saveMeta(meta); err != nil {
		return "", err
	}
	return path, nil
}

// Open returns the named demo for reading.
func (s *DiskStore) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, cleanName(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// List returns the archived demos, newest first.
func (s *DiskStore) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []Meta
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".meta") {
			continue
		}
		meta, err := s.loadMeta(strings.TrimSuffix(e.Name(), ".meta"))
		if err != nil {
			continue
		}
		out = append(out, *meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Cleanup removes demos older than maxAge.
func (s *DiskStore) Cleanup(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)
	metas, err := s.List()
	if err != nil {
		return err
	}
	for _, m := range metas {
		if m.CreatedAt.Before(cutoff) {
			os.Remove(filepath.Join(s.dir, m.Name))
			os.Remove(s.metaPath(m.Name))
		}
	}
	return nil
}

func (s *DiskStore) metaPath(name string) string {
	return filepath.Join(s.dir, name+".meta")
}

func (s *DiskStore) saveMeta(meta *Meta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(s.metaPath(meta.Name), data, 0644)
}

func (s *DiskStore) loadMeta(name string) (*Meta, error) {
	data, err := os.ReadFile(s.metaPath(name))
	if err != nil {
		return nil, err
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// cleanName strips directories from name, falling back to a random name.
func cleanName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" || strings.HasPrefix(name, ".") {
		return generateName()
	}
	return name
}

func generateName() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "demo-" + hex.EncodeToString(b) + ".dm"
}
