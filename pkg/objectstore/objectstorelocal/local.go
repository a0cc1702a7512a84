// Package objectstorelocal backs pkg/objectstore.Store with the same
// fsx.FileSystem used for local development uploads elsewhere in this
// codebase (pkg/fsx/fsxlocal), so a developer running without a bucket
// gets the identical key layout and content-type policy a production S3
// store would enforce.
package objectstorelocal

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/screencraft/api/pkg/fsx"
	"github.com/screencraft/api/pkg/objectstore"
)

// Store adapts any fsx.FileSystem (in practice fsxlocal.LocalFileSystem)
// into an objectstore.Store. Since fsx.FileSystem has no notion of
// content-type or arbitrary metadata, both are kept in a small JSON
// sidecar written next to each object.
type Store struct {
	fs        fsx.FileSystem
	secret    []byte
	publicURL string
}

type sidecar struct {
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// New wraps fs. publicURL is the base the caller's HTTP server serves
// objects from (e.g. "http://localhost:8080/local-objects"); secret signs
// the expiring download tokens returned by SignedURL.
func New(fs fsx.FileSystem, publicURL string, secret []byte) *Store {
	return &Store{fs: fs, secret: secret, publicURL: strings.TrimRight(publicURL, "/")}
}

func (s *Store) Initialize(ctx context.Context) error {
	return s.fs.CreateDir(ctx, ".")
}

func (s *Store) Upload(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (string, error) {
	if !objectstore.IsContentTypeAllowed(contentType) {
		return "", objectstore.ErrContentTypeDenied(contentType)
	}
	if err := s.fs.WriteFile(ctx, key, data); err != nil {
		return "", objectstore.ErrUploadFailed(err.Error())
	}
	meta, err := json.Marshal(sidecar{ContentType: contentType, Metadata: metadata})
	if err != nil {
		return "", objectstore.ErrUploadFailed(err.Error())
	}
	if err := s.fs.WriteFile(ctx, sidecarKey(key), meta); err != nil {
		return "", objectstore.ErrUploadFailed(err.Error())
	}
	return key, nil
}

func (s *Store) Download(ctx context.Context, key string) (objectstore.Object, error) {
	exists, err := s.fs.Exists(ctx, key)
	if err != nil {
		return objectstore.Object{}, objectstore.ErrDownloadFailed(err.Error())
	}
	if !exists {
		return objectstore.Object{}, objectstore.ErrNotFound(key)
	}
	data, err := s.fs.ReadFile(ctx, key)
	if err != nil {
		return objectstore.Object{}, objectstore.ErrDownloadFailed(err.Error())
	}
	obj := objectstore.Object{Key: key, Data: data, Size: int64(len(data))}
	if raw, err := s.fs.ReadFile(ctx, sidecarKey(key)); err == nil {
		var sc sidecar
		if json.Unmarshal(raw, &sc) == nil {
			obj.ContentType = sc.ContentType
			obj.Metadata = sc.Metadata
		}
	}
	return obj, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.fs.DeleteFile(ctx, key); err != nil {
		return objectstore.ErrUploadFailed(err.Error())
	}
	_ = s.fs.DeleteFile(ctx, sidecarKey(key))
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.fs.Exists(ctx, key)
	if err != nil {
		return false, objectstore.ErrDownloadFailed(err.Error())
	}
	return exists, nil
}

// SignedURL issues an HMAC-signed, expiring token in place of a real
// presigned URL; a local-mode HTTP route is expected to verify it with
// VerifySignedURL before serving the object.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	exp := time.Now().Add(ttl).Unix()
	sig := s.sign(key, exp)
	return fmt.Sprintf("%s/%s?exp=%d&sig=%s", s.publicURL, key, exp, sig), nil
}

func (s *Store) sign(key string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte(strconv.FormatInt(exp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignedURL checks a key/exp/sig triple produced by SignedURL.
func (s *Store) VerifySignedURL(key, sig string, exp int64) bool {
	if time.Now().Unix() > exp {
		return false
	}
	expected := s.sign(key, exp)
	return hmac.Equal([]byte(expected), []byte(sig))
}

func sidecarKey(key string) string {
	return key + ".meta.json"
}
