package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LocalStore keeps objects on disk and signs download links with HMAC.
// It backs development setups without a GCS bucket; the files are served
// by the /files route.
type LocalStore struct {
	dir     string
	baseURL string
	secret  []byte
	now     func() time.Time
}

func NewLocalStore(dir, baseURL, secret string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		now:     time.Now,
	}, nil
}

func (s *LocalStore) path(objectName string) (string, error) {
	clean := path.Clean("/" + objectName)
	if clean == "/" || strings.Contains(objectName, "..") {
		return "", errors.New("invalid object name")
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Upload(_ context.Context, objectName string, _ string, r io.Reader) (string, error) {
	p, err := s.path(objectName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := os.Rename(f.Name(), p); err != nil {
		return "", err
	}
	return p, nil
}

func (s *LocalStore) sign(objectName, downloadName string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(objectName + "\n" + downloadName + "\n" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedGetURL links to the /files route. The download name travels in the
// query and is covered by the signature.
func (s *LocalStore) SignedGetURL(_ context.Context, objectName, downloadName string, ttl time.Duration) (string, error) {
	exp := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(exp, 10))
	if downloadName != "" {
		q.Set("name", downloadName)
	}
	q.Set("sig", s.sign(objectName, downloadName, exp))
	return s.baseURL + "/files/" + objectName + "?" + q.Encode(), nil
}

// Open verifies a signed link and returns the file path to serve.
func (s *LocalStore) Open(objectName, downloadName, expires, sig string) (string, error) {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return "", errors.New("invalid signature")
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(objectName, downloadName, exp))) {
		return "", errors.New("invalid signature")
	}
	if s.now().Unix() > exp {
		return "", errors.New("link expired")
	}
	p, err := s.path(objectName)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return "", ErrObjectNotFound
	}
	return p, nil
}

func (s *LocalStore) Delete(_ context.Context, objectName string) error {
	p, err := s.path(objectName)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
