package filetier

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-attendance-console/session"
	"github.com/pkg/errors"
)

var _ session.Tier = (*FileTier)(nil)

// FileTier is the persistent tier. Values live in a single JSON object on disk;
// every write replaces the file through a rename so readers never see half a write.
type FileTier struct {
	mu   sync.Mutex
	path string
}

// New creates a tier stored at path, creating the parent directory
func New(path string) (*FileTier, error) {
	if path == "" {
		return nil, errors.New("[filetier.New] path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "[filetier.New] create directory")
	}
	return &FileTier{path: path}, nil
}

// Path returns the backing file
func (t *FileTier) Path() string {
	return t.path
}

func (t *FileTier) Get(keys ...string) (map[string]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	all, err := t.read()
	if err != nil {
		return nil, err
	}
	found := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := all[k]; ok {
			found[k] = v
		}
	}
	return found, nil
}

func (t *FileTier) Put(values map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	all, err := t.read()
	if err != nil {
		// An unreadable file is replaced rather than blocking new sessions
		all = make(map[string]string)
	}
	for k, v := range values {
		all[k] = v
	}
	return t.write(all)
}

func (t *FileTier) Delete(keys ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	all, err := t.read()
	if err != nil {
		all = make(map[string]string)
	}
	for _, k := range keys {
		delete(all, k)
	}
	if len(all) == 0 {
		if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "[FileTier.Delete] remove")
		}
		return nil
	}
	return t.write(all)
}

func (t *FileTier) read() (map[string]string, error) {
	b, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileTier] read")
	}
	all := make(map[string]string)
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, errors.Wrap(err, "[FileTier] decode")
	}
	return all, nil
}

func (t *FileTier) write(all map[string]string) error {
	b, err := json.Marshal(all)
	if err != nil {
		return errors.Wrap(err, "[FileTier] encode")
	}
	tmp, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "[FileTier] create temp")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileTier] write temp")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[FileTier] close temp")
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		return errors.Wrap(err, "[FileTier] rename")
	}
	return nil
}
