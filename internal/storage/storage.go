package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrInvalidKey      = errors.New("invalid object key")
	ErrNotFound        = errors.New("object not found")
)

var allowedExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true, ".svg": true,
	".pdf": true, ".doc": true, ".docx": true, ".txt": true,
}

// Object is a stored attachment file.
type Object struct {
	Key  string `json:"-"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Store keeps attachment objects on an afero.Fs under "<userID>/<file>".
type Store struct {
	fs        afero.Fs
	publicURL string
	maxBytes  int64
	now       func() time.Time
}

// New returns a Store. Use afero.NewBasePathFs over an OS directory in
// production and afero.NewMemMapFs in tests.
func New(fs afero.Fs, publicURL string, maxBytes int64) *Store {
	return &Store{
		fs:        fs,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// CheckName rejects file names whose extension is not allowed.
func CheckName(name string) error {
	if !allowedExt[strings.ToLower(path.Ext(name))] {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, name)
	}
	return nil
}

// Put writes r as a new object owned by userID.
func (s *Store) Put(userID, name string, r io.Reader) (Object, error) {
	if err := CheckName(name); err != nil {
		return Object{}, err
	}
	if userID == "" || strings.ContainsAny(userID, `/\`) {
		return Object{}, ErrInvalidKey
	}

	ext := strings.ToLower(path.Ext(name))
	key := fmt.Sprintf("%s/%d-%s%s", userID, s.now().UnixMilli(), uuid.NewString(), ext)

	if err := s.fs.MkdirAll(userID, 0o755); err != nil {
		return Object{}, fmt.Errorf("creating %s: %w", userID, err)
	}

	f, err := s.fs.OpenFile(key, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Object{}, fmt.Errorf("creating %s: %w", key, err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxBytes {
		err = fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, name, s.maxBytes)
	}
	if err != nil {
		_ = s.fs.Remove(key)
		if errors.Is(err, ErrTooLarge) {
			return Object{}, err
		}
		return Object{}, fmt.Errorf("writing %s: %w", key, err)
	}

	return Object{Key: key, Name: path.Base(name), URL: s.PublicURL(key)}, nil
}

func (s *Store) Open(key string) (afero.File, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}
	f, err := s.fs.Open(key)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Remove deletes one object. Missing objects are not an error.
func (s *Store) Remove(key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	err := s.fs.Remove(key)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return nil
}

// RemoveUser deletes every object owned by userID.
func (s *Store) RemoveUser(userID string) error {
	if userID == "" || strings.ContainsAny(userID, `/\`) || userID == ".." || userID == "." {
		return ErrInvalidKey
	}
	if err := s.fs.RemoveAll(userID); err != nil {
		return fmt.Errorf("removing objects of %s: %w", userID, err)
	}
	return nil
}

func (s *Store) PublicURL(key string) string {
	return s.publicURL + "/" + key
}

// KeyFromURL returns the object key behind a public URL of this store.
func (s *Store) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.publicURL+"/")
	if !ok || !validKey(key) {
		return "", false
	}
	return key, true
}

// OwnedKey resolves url to the key of an existing object owned by userID.
func (s *Store) OwnedKey(userID, url string) (string, error) {
	key, ok := s.KeyFromURL(url)
	if !ok {
		return "", ErrInvalidKey
	}
	if !strings.HasPrefix(key, userID+"/") {
		return "", ErrNotFound
	}
	exists, err := afero.Exists(s.fs, key)
	if err != nil {
		return "", fmt.Errorf("checking %s: %w", key, err)
	}
	if !exists {
		return "", ErrNotFound
	}
	return key, nil
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return false
	}
	if path.Clean(key) != key {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return false
		}
	}
	return strings.Count(key, "/") == 1
}
