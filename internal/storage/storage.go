package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}

// Signer issues time-limited download links. downloadName, when set, is the
// file name the browser saves the object under.
type Signer interface {
	SignedGetURL(ctx context.Context, objectName, downloadName string, ttl time.Duration) (string, error)
}

type Deleter interface {
	Delete(ctx context.Context, objectName string) error
}

// ObjectStore is what the export pipeline needs from a bucket.
type ObjectStore interface {
	Uploader
	Signer
	Deleter
}

// ContentDisposition is the attachment header value for a download name.
func ContentDisposition(downloadName string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": downloadName})
}

// ExportObjectName is where a rendered export is stored.
func ExportObjectName(userID, exportID string) string {
	return "exports/" + userID + "/" + exportID + ".pdf"
}
