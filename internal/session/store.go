package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// Store persists an account's cookies between runs.
type Store interface {
	// Load returns the cookies saved for account. A missing entry is not
	// an error and yields no cookies.
	Load(account string) ([]*http.Cookie, error)

	// Save replaces the cookies saved for account.
	Save(account string, cookies []*http.Cookie) error
}

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileStore keeps one JSON cookie file per account handle in a directory
// only the current user can read.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the store directory with mode 0700 if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("session store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session store %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the cookie file used for account.
func (fs *FileStore) Path(account string) string {
	name := unsafeFileChars.ReplaceAllString(account, "_")
	if name == "" {
		name = "_anonymous"
	}
	return filepath.Join(fs.dir, name+".cookies.json")
}

// Load implements Store.
func (fs *FileStore) Load(account string) ([]*http.Cookie, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.Path(account))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode cookie file %s: %w", fs.Path(account), err)
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	return cookies, nil
}

// Save implements Store. The file is replaced atomically.
func (fs *FileStore) Save(account string, cookies []*http.Cookie) error {
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	target := fs.Path(account)
	tmp, err := os.CreateTemp(fs.dir, ".cookies-*")
	if err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cookie file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cookie file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace cookie file: %w", err)
	}
	return nil
}

// MemoryStore keeps cookies in process memory only.
type MemoryStore struct {
	mu      sync.Mutex
	cookies map[string][]*http.Cookie
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cookies: make(map[string][]*http.Cookie)}
}

// Load implements Store.
func (ms *MemoryStore) Load(account string) ([]*http.Cookie, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]*http.Cookie(nil), ms.cookies[account]...), nil
}

// Save implements Store.
func (ms *MemoryStore) Save(account string, cookies []*http.Cookie) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.cookies[account] = append([]*http.Cookie(nil), cookies...)
	return nil
}
